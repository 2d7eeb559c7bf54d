// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/remcon/remcon/internal/testutil"
)

func TestPortRecord_RoundTrip(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	written := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	if err := WritePortRecord(base, PortRecord{Port: 11451, PID: 42, Written: written}); err != nil {
		t.Fatalf("WritePortRecord() returned error: %v", err)
	}

	raw := testutil.MustReadFile(t, filepath.Join(base, PortRecordFile))
	if first, _, _ := strings.Cut(raw, "\n"); first != "11451" {
		t.Errorf("first line = %q, want the bare port", first)
	}

	rec, err := ReadPortRecord(base)
	if err != nil {
		t.Fatalf("ReadPortRecord() returned error: %v", err)
	}
	if rec.Port != 11451 || rec.PID != 42 || !rec.Written.Equal(written) || rec.Pending {
		t.Errorf("ReadPortRecord() = %+v", rec)
	}
}

func TestReadPortRecord_BarePort(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(base, PortRecordFile), "12000\n")

	rec, err := ReadPortRecord(base)
	if err != nil {
		t.Fatalf("ReadPortRecord() returned error: %v", err)
	}
	if rec.Port != 12000 {
		t.Errorf("Port = %d, want 12000", rec.Port)
	}
}

func TestReadPortRecord_PendingUpdate(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		recordAt    time.Time
		pendingAt   time.Time
		wantPort    int
		wantPending bool
	}{
		{"newer pending wins", t0, t0.Add(time.Second), 13000, true},
		{"older pending ignored", t0.Add(time.Second), t0, 12000, false},
		{"same instant keeps record", t0, t0, 12000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			base := t.TempDir()
			if err := WritePortRecord(base, PortRecord{Port: 12000, PID: 7, Written: tt.recordAt}); err != nil {
				t.Fatal(err)
			}
			if _, err := writePendingUpdate(base, 13000, tt.pendingAt); err != nil {
				t.Fatal(err)
			}

			rec, err := ReadPortRecord(base)
			if err != nil {
				t.Fatalf("ReadPortRecord() returned error: %v", err)
			}
			if int(rec.Port) != tt.wantPort || rec.Pending != tt.wantPending {
				t.Errorf("ReadPortRecord() = %+v, want port %d pending %v", rec, tt.wantPort, tt.wantPending)
			}
			if rec.PID != 7 {
				t.Errorf("PID = %d, want 7", rec.PID)
			}
		})
	}
}

func TestReadPortRecord_OnlyPending(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	if _, err := writePendingUpdate(base, 14000, time.Unix(100, 0)); err != nil {
		t.Fatal(err)
	}
	testutil.MustWriteFile(t, filepath.Join(base, UpdateDirName, "update_junk.txt"), "1\n")

	rec, err := ReadPortRecord(base)
	if err != nil {
		t.Fatalf("ReadPortRecord() returned error: %v", err)
	}
	if rec.Port != 14000 || !rec.Pending {
		t.Errorf("ReadPortRecord() = %+v", rec)
	}
}

func TestReadPortRecord_Missing(t *testing.T) {
	t.Parallel()

	if _, err := ReadPortRecord(t.TempDir()); !errors.Is(err, ErrNoPortRecord) {
		t.Errorf("ReadPortRecord() error = %v, want ErrNoPortRecord", err)
	}
}

func TestParseUpdateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		want   int64
		wantOK bool
	}{
		{"update_123.txt", 123, true},
		{"update_.txt", 0, false},
		{"update_12", 0, false},
		{"update_-1.txt", 0, false},
		{"other_1.txt", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseUpdateName(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseUpdateName(%q) = %d, %v; want %d, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}
