// SPDX-License-Identifier: MPL-2.0

// Package config handles remcon configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/remcon/config.cue (or the XDG
// equivalent on Linux, ~/Library/Application Support/remcon/config.cue on
// macOS, %APPDATA%\remcon\config.cue on Windows), falling back to
// ./config.cue. Files are validated against the embedded schema
// (config_schema.cue) and merged over the defaults from DefaultConfig.
//
// Directory values may reference environment variables ($HOME,
// ${XDG_RUNTIME_DIR:-/tmp}); they are expanded with shell semantics when the
// configuration is loaded.
package config
