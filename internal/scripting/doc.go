// SPDX-License-Identifier: MPL-2.0

// Package scripting embeds a Lua 5.1 interpreter (gopher-lua) as the
// console's script engine.
//
// Each isolation domain owns one Runner; Runners hands them out with
// exactly-once construction and keeps the system domain's runner pre-seeded.
// Globals persist between evaluations in the same domain.
//
// A gopher-lua state is not safe for concurrent use, so every Lua call,
// including work scheduled with runLater or a safe executor, holds the
// runner's mutex.
package scripting
