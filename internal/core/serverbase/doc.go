// SPDX-License-Identifier: MPL-2.0

// Package serverbase provides the lifecycle state machine shared by the
// console's long-running components: the socket session server, the
// file-channel broker and the metrics endpoint.
//
// Concrete components embed Base. Reads of the state are atomic and lock-free;
// transitions are compare-and-swap so concurrent Start/Stop calls are safe.
// Background goroutines are tracked with Go so Shutdown can wait for them.
package serverbase
