// SPDX-License-Identifier: MPL-2.0

package commands

import (
	"context"
	"strings"

	"github.com/remcon/remcon/internal/console"
	"github.com/remcon/remcon/internal/metrics"
)

const metricsHelp = `metrics [all|<prefix>]

Prints the console metrics in the Prometheus text format. all includes Go
runtime and process metrics; a prefix selects metric families by name.
`

func metricsCommand(m *metrics.Metrics) console.CommandFunc {
	return func(_ context.Context, ec *console.ExecContext) (string, error) {
		if m == nil {
			return "", ErrNoMetrics
		}
		prefix := "remcon_"
		switch arg := ec.Arg(0); arg {
		case "":
		case "all":
			prefix = ""
		default:
			prefix = arg
		}

		var b strings.Builder
		if err := m.WriteText(&b, prefix); err != nil {
			return "", err
		}
		return b.String(), nil
	}
}
