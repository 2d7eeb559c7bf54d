// SPDX-License-Identifier: MPL-2.0

// Package sessionserver serves the console over a line-oriented TCP socket.
//
// Each connection is a session. Every received line is one command
// invocation; interactive commands read the following lines as their input.
// The server writes plain text back, interleaved with control lines that
// start with the ASCII record separator (0x1E):
//
//	\x1eINPUT <prompt>    the command is waiting for a line
//	\x1eSECRET <prompt>   the command is waiting for a line that should not be echoed
//	\x1eEND ok|error      the command finished
//
// Closing the connection cancels the command that is running on it.
package sessionserver
