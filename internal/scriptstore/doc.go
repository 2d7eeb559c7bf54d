// SPDX-License-Identifier: MPL-2.0

// Package scriptstore persists named scripts for the script command. Two
// backends exist: a directory of files and a Redis hash per script.
package scriptstore
