// SPDX-License-Identifier: MPL-2.0

// Package transport selects how a console host is reached.
//
// The Manager prefers the TCP session server and falls back to the file
// channel broker when the port cannot be bound. Both live under a base
// directory chosen by Probe, which also holds the port record clients read
// to find the socket.
package transport
