// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"net"
	"testing"

	"github.com/remcon/remcon/internal/testutil"
	"github.com/remcon/remcon/pkg/types"
)

func occupyPort(t *testing.T) (net.Listener, types.ListenPort) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return ln, types.ListenPort(ln.Addr().(*net.TCPAddr).Port)
}

func freePort(t *testing.T) types.ListenPort {
	t.Helper()
	ln, port := occupyPort(t)
	testutil.MustClose(t, ln)
	return port
}

func TestIsPortAvailable(t *testing.T) {
	t.Parallel()

	_, busy := occupyPort(t)
	if IsPortAvailable("127.0.0.1", busy) {
		t.Errorf("IsPortAvailable(%d) = true for a bound port", busy)
	}
}

func TestFindAvailablePort(t *testing.T) {
	t.Parallel()

	preferred := freePort(t)
	got, err := FindAvailablePort("127.0.0.1", preferred)
	if err != nil {
		t.Fatalf("FindAvailablePort() returned error: %v", err)
	}
	if got != preferred {
		t.Errorf("FindAvailablePort() = %d, want preferred %d", got, preferred)
	}

	_, busy := occupyPort(t)
	got, err = FindAvailablePort("127.0.0.1", busy)
	if err != nil {
		t.Fatalf("FindAvailablePort() returned error: %v", err)
	}
	if got == busy || got < randomPortMin || got > randomPortMax {
		t.Errorf("FindAvailablePort(busy) = %d, want a port in %d-%d", got, randomPortMin, randomPortMax)
	}
}
