// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"errors"
	"math/rand/v2"
	"net"

	"github.com/remcon/remcon/pkg/types"
)

const (
	randomPortMin      = 20000
	randomPortMax      = 29999
	randomPortAttempts = 10
)

// ErrNoAvailablePort is returned when FindAvailablePort exhausts its attempts.
var ErrNoAvailablePort = errors.New("no available port found")

// IsPortAvailable test-binds host:port and releases it.
func IsPortAvailable(host string, port types.ListenPort) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, port.String()))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// FindAvailablePort returns preferred when it can be bound, otherwise one of
// a few random ports in 20000-29999.
func FindAvailablePort(host string, preferred types.ListenPort) (types.ListenPort, error) {
	if preferred != 0 && IsPortAvailable(host, preferred) {
		return preferred, nil
	}
	for range randomPortAttempts {
		port := types.ListenPort(randomPortMin + rand.IntN(randomPortMax-randomPortMin+1))
		if IsPortAvailable(host, port) {
			return port, nil
		}
	}
	return 0, ErrNoAvailablePort
}
