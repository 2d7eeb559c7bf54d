// SPDX-License-Identifier: MPL-2.0

package sessionserver

import (
	"strings"
)

// ControlPrefix starts every server-to-client control line.
const ControlPrefix = "\x1e"

// Control verbs.
const (
	VerbInput  = "INPUT"
	VerbSecret = "SECRET"
	VerbEnd    = "END"
)

// End statuses.
const (
	EndOK    = "ok"
	EndError = "error"
)

// Control is a decoded control line.
type Control struct {
	Verb string
	Arg  string
}

// FormatControl renders a control line, including the trailing newline.
func FormatControl(verb, arg string) string {
	return ControlPrefix + verb + " " + arg + "\n"
}

// ParseControl decodes line (without its newline). ok is false for ordinary
// output lines.
func ParseControl(line string) (c Control, ok bool) {
	rest, found := strings.CutPrefix(line, ControlPrefix)
	if !found {
		return Control{}, false
	}
	verb, arg, _ := strings.Cut(rest, " ")
	return Control{Verb: verb, Arg: arg}, true
}
