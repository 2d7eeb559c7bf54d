// SPDX-License-Identifier: MPL-2.0

// Package commands holds the console commands a remcon host registers:
// script management and evaluation, runtime diagnostics, metrics, port
// control and two demonstration commands for progress output and
// interactive input.
package commands
