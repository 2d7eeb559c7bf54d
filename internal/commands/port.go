// SPDX-License-Identifier: MPL-2.0

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/remcon/remcon/internal/console"
	"github.com/remcon/remcon/internal/transport"
	"github.com/remcon/remcon/pkg/types"
)

const portHelp = `port [show] | port update <port>

show prints the active transport and the port record clients read.
update moves the socket to another port (1024-65535). The new port is
bound first; if that fails nothing changes. The current session stays
connected to the old port until it ends.
`

func portCommand(t Transport) console.CommandFunc {
	return func(ctx context.Context, ec *console.ExecContext) (string, error) {
		if t == nil {
			return "", ErrNoTransport
		}
		switch ec.Arg(0) {
		case "", "show":
			return portShow(t), nil
		case "update":
			if ec.Arg(1) == "" {
				return "", usageError("port update <port>")
			}
			port, err := types.ParseListenPort(ec.Arg(1))
			if err != nil {
				return "", err
			}
			old := t.Port()
			if err := t.Rebind(ctx, port); err != nil {
				return "", err
			}
			return fmt.Sprintf("port changed from %d to %d; this session stays on %d until it disconnects", old, t.Port(), old), nil
		default:
			return "", fmt.Errorf("unknown subcommand %q\nusage: port [show] | port update <port>", ec.Arg(0))
		}
	}
}

func portShow(t Transport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "transport: %s\n", t.Mode())
	fmt.Fprintf(&b, "base dir:  %s\n", t.BaseDir())
	if t.Mode() == transport.ModeSocket {
		fmt.Fprintf(&b, "port:      %d\n", t.Port())
	}
	rec, err := transport.ReadPortRecord(t.BaseDir())
	if err != nil {
		fmt.Fprintf(&b, "record:    none (%v)", err)
		return b.String()
	}
	fmt.Fprintf(&b, "record:    port %d, pid %d, written %s", rec.Port, rec.PID, rec.Written.Local().Format("2006-01-02 15:04:05"))
	if rec.Pending {
		b.WriteString(" (pending update)")
	}
	return b.String()
}
