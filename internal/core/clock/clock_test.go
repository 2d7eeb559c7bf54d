// SPDX-License-Identifier: MPL-2.0

package clock

import (
	"testing"
	"time"
)

func TestReal(t *testing.T) {
	t.Parallel()

	c := Real{}
	before := time.Now()
	now := c.Now()
	if now.Before(before) {
		t.Errorf("Real.Now() = %v, before %v", now, before)
	}

	if elapsed := c.Since(time.Now().Add(-time.Second)); elapsed < time.Second {
		t.Errorf("Real.Since() = %v, want >= 1s", elapsed)
	}

	select {
	case <-c.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Error("Real.After() did not fire")
	}
}

func TestOrReal(t *testing.T) {
	t.Parallel()

	if _, ok := OrReal(nil).(Real); !ok {
		t.Error("OrReal(nil) should return Real")
	}

	var custom Clock = Real{}
	if OrReal(custom) != custom {
		t.Error("OrReal should keep a non-nil clock")
	}
}
