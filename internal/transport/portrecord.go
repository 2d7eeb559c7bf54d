// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/remcon/remcon/pkg/types"
)

const (
	// PortRecordFile holds the bound port under the base directory.
	PortRecordFile = "methods_port"
	// UpdateDirName holds pending rebind announcements.
	UpdateDirName = "port_update_sessions"

	updatePrefix = "update_"
	updateSuffix = ".txt"
)

// ErrNoPortRecord is returned when neither a record nor a pending update exists.
var ErrNoPortRecord = errors.New("no port record")

// PortRecord announces the socket a host listens on.
//
// The file's first line is the bare port so readers that only parse a
// number keep working; the pid and write time follow on their own lines.
type PortRecord struct {
	Port    types.ListenPort
	PID     int
	Written time.Time
	// Pending is set by ReadPortRecord when the port comes from a rebind
	// announcement that is newer than the record.
	Pending bool
}

// WritePortRecord replaces the record under base atomically.
func WritePortRecord(base string, rec PortRecord) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d\n", rec.Port)
	fmt.Fprintf(&buf, "pid=%d\n", rec.PID)
	fmt.Fprintf(&buf, "written=%s\n", rec.Written.UTC().Format(time.RFC3339Nano))
	return writeFileAtomic(filepath.Join(base, PortRecordFile), buf.Bytes())
}

// RemovePortRecord deletes the record; a missing record is not an error.
func RemovePortRecord(base string) error {
	err := os.Remove(filepath.Join(base, PortRecordFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ReadPortRecord returns the port a client should dial. A pending rebind
// announcement newer than the record wins.
func ReadPortRecord(base string) (PortRecord, error) {
	rec, recErr := readRecordFile(filepath.Join(base, PortRecordFile))
	if recErr != nil && !errors.Is(recErr, fs.ErrNotExist) {
		return PortRecord{}, recErr
	}

	pending, ok := latestPendingUpdate(base)
	if ok && (recErr != nil || pending.Written.After(rec.Written)) {
		pending.PID = rec.PID
		return pending, nil
	}
	if recErr != nil {
		return PortRecord{}, fmt.Errorf("%w in %s", ErrNoPortRecord, base)
	}
	return rec, nil
}

func readRecordFile(path string) (PortRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PortRecord{}, err
	}
	return parsePortRecord(data)
}

func parsePortRecord(data []byte) (PortRecord, error) {
	var rec PortRecord
	sc := bufio.NewScanner(bytes.NewReader(data))
	if !sc.Scan() {
		return rec, fmt.Errorf("%w: empty file", ErrNoPortRecord)
	}
	port, err := types.ParseListenPort(strings.TrimSpace(sc.Text()))
	if err != nil {
		return rec, err
	}
	rec.Port = port

	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			rec.PID, _ = strconv.Atoi(value)
		case "written":
			rec.Written, _ = time.Parse(time.RFC3339Nano, value)
		}
	}
	return rec, nil
}

// writePendingUpdate announces port before the record is replaced and
// returns the artifact path.
func writePendingUpdate(base string, port types.ListenPort, now time.Time) (string, error) {
	dir := filepath.Join(base, UpdateDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, updatePrefix+strconv.FormatInt(now.UnixNano(), 10)+updateSuffix)
	if err := writeFileAtomic(path, []byte(port.String()+"\n")); err != nil {
		return "", err
	}
	return path, nil
}

func latestPendingUpdate(base string) (PortRecord, bool) {
	dir := filepath.Join(base, UpdateDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return PortRecord{}, false
	}

	var (
		best      PortRecord
		bestNanos int64 = -1
	)
	for _, e := range entries {
		nanos, ok := parseUpdateName(e.Name())
		if !ok || nanos <= bestNanos {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		port, err := types.ParseListenPort(strings.TrimSpace(string(data)))
		if err != nil {
			continue
		}
		best = PortRecord{Port: port, Written: time.Unix(0, nanos), Pending: true}
		bestNanos = nanos
	}
	return best, bestNanos >= 0
}

func parseUpdateName(name string) (int64, bool) {
	digits, ok := strings.CutPrefix(name, updatePrefix)
	if !ok {
		return 0, false
	}
	digits, ok = strings.CutSuffix(digits, updateSuffix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
