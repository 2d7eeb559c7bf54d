// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. The issue catalog holds longer Markdown guidance for the
// failures users hit most often with the console (unreachable server, no
// writable base directory, port contention), rendered with glamour.
package issue
