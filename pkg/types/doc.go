// SPDX-License-Identifier: MPL-2.0

// Package types defines small value types shared by the console transports
// and the CLI. Each type validates itself and reports failures through a typed
// error that wraps a package sentinel, so callers can use errors.Is.
//
// This package is a leaf dependency: it imports only the standard library.
package types
