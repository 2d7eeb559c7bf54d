// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the remcon CLI.
//
// The CLI hosts a console (serve), talks to a running host over its socket
// or file channel (exec, attach), dispatches lines in-process (local) and
// manages the configuration file (config).
package cmd
