// SPDX-License-Identifier: MPL-2.0

package filechannel

import (
	"strings"

	"github.com/remcon/remcon/internal/console"
)

// Result is the content of result.txt: the status on the first line and the
// command's result text after it.
type Result struct {
	Status console.Status
	Text   string
}

// OK reports whether the command succeeded.
func (r Result) OK() bool { return r.Status == console.StatusOK }

func encodeResult(out console.Outcome) []byte {
	return []byte(string(out.Status) + "\n" + out.Text())
}

func decodeResult(data []byte) Result {
	status, text, found := strings.Cut(string(data), "\n")
	if !found {
		// Results without a status line are plain text.
		return Result{Status: console.StatusOK, Text: status}
	}
	switch s := console.Status(status); s {
	case console.StatusOK, console.StatusError, console.StatusInterrupted, console.StatusUnknown:
		return Result{Status: s, Text: text}
	default:
		return Result{Status: console.StatusOK, Text: string(data)}
	}
}
