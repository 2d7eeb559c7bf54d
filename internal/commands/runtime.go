// SPDX-License-Identifier: MPL-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/remcon/remcon/internal/console"
	"github.com/remcon/remcon/internal/core/clock"
)

const (
	gcHelp = `gc

Runs a garbage collection, returns freed memory to the OS and reports the
heap before and after.
`
	memoryHelp = `memory

Reports Go runtime memory statistics.
`
	goroutinesHelp = `goroutines [dump]

Reports the goroutine count. With dump, prints every goroutine stack
grouped by identical traces.
`
	systemHelp = `system

Reports host, process and build information.
`
)

type runtimeCommands struct {
	started time.Time
	clock   clock.Clock
}

func (rt *runtimeCommands) gc(context.Context, *console.ExecContext) (string, error) {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	start := rt.clock.Now()
	runtime.GC()
	debug.FreeOSMemory()
	took := rt.clock.Since(start)
	runtime.ReadMemStats(&after)

	var b strings.Builder
	b.WriteString("===== garbage collection =====\n\n")
	fmt.Fprintf(&b, "heap before: %s\n", formatBytes(before.HeapAlloc))
	fmt.Fprintf(&b, "heap after:  %s\n", formatBytes(after.HeapAlloc))
	if before.HeapAlloc > after.HeapAlloc {
		fmt.Fprintf(&b, "freed:       %s\n", formatBytes(before.HeapAlloc-after.HeapAlloc))
	}
	fmt.Fprintf(&b, "took:        %s\n", took.Round(time.Microsecond))
	fmt.Fprintf(&b, "cycles:      %d", after.NumGC)
	return b.String(), nil
}

func (rt *runtimeCommands) memory(context.Context, *console.ExecContext) (string, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var b strings.Builder
	b.WriteString("===== heap =====\n\n")
	fmt.Fprintf(&b, "allocated:  %s\n", formatBytes(m.HeapAlloc))
	fmt.Fprintf(&b, "in use:     %s\n", formatBytes(m.HeapInuse))
	fmt.Fprintf(&b, "idle:       %s\n", formatBytes(m.HeapIdle))
	fmt.Fprintf(&b, "released:   %s\n", formatBytes(m.HeapReleased))
	fmt.Fprintf(&b, "objects:    %d\n", m.HeapObjects)
	if m.HeapSys > 0 {
		fmt.Fprintf(&b, "usage:      %.2f%%\n", float64(m.HeapInuse)/float64(m.HeapSys)*100)
	}

	b.WriteString("\n===== runtime =====\n\n")
	fmt.Fprintf(&b, "total from OS:   %s\n", formatBytes(m.Sys))
	fmt.Fprintf(&b, "stacks:          %s\n", formatBytes(m.StackInuse))
	fmt.Fprintf(&b, "total allocated: %s\n", formatBytes(m.TotalAlloc))
	fmt.Fprintf(&b, "next gc at:      %s\n", formatBytes(m.NextGC))
	fmt.Fprintf(&b, "gc cycles:       %d\n", m.NumGC)
	fmt.Fprintf(&b, "gc pause total:  %s\n", time.Duration(m.PauseTotalNs))
	if limit := debug.SetMemoryLimit(-1); limit < 1<<62 {
		fmt.Fprintf(&b, "memory limit:    %s\n", formatBytes(uint64(limit)))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (rt *runtimeCommands) goroutines(_ context.Context, ec *console.ExecContext) (string, error) {
	count := runtime.NumGoroutine()
	switch ec.Arg(0) {
	case "":
		return fmt.Sprintf("goroutines: %d", count), nil
	case "dump":
		var b strings.Builder
		if err := pprof.Lookup("goroutine").WriteTo(&b, 1); err != nil {
			return "", err
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("unknown argument %q\nusage: goroutines [dump]", ec.Arg(0))
	}
}

func (rt *runtimeCommands) system(context.Context, *console.ExecContext) (string, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	var b strings.Builder
	b.WriteString("===== system =====\n\n")
	fmt.Fprintf(&b, "os:          %s\n", runtime.GOOS)
	fmt.Fprintf(&b, "arch:        %s\n", runtime.GOARCH)
	fmt.Fprintf(&b, "cpus:        %d\n", runtime.NumCPU())
	fmt.Fprintf(&b, "hostname:    %s\n", host)

	b.WriteString("\n===== process =====\n\n")
	fmt.Fprintf(&b, "pid:         %d\n", os.Getpid())
	fmt.Fprintf(&b, "uptime:      %s\n", rt.clock.Since(rt.started).Round(time.Second))
	fmt.Fprintf(&b, "gomaxprocs:  %d\n", runtime.GOMAXPROCS(0))
	fmt.Fprintf(&b, "goroutines:  %d\n", runtime.NumGoroutine())

	b.WriteString("\n===== build =====\n\n")
	fmt.Fprintf(&b, "go:          %s\n", runtime.Version())
	if info, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(&b, "module:      %s %s\n", info.Main.Path, info.Main.Version)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
