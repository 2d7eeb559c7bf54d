// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers cover environment variables (MustSetenv), files and
// directories (MustMkdirAll, MustWriteFile, MustReadFile), resource cleanup
// (MustClose, MustStop, DeferStop), polling assertions (Eventually) and a
// controllable clock (FakeClock).
package testutil
