// SPDX-License-Identifier: MPL-2.0

package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/remcon/remcon/internal/console"
)

const (
	defaultCountdown = 1000
	countdownTick    = 10 * time.Millisecond
)

const outputTestHelp = `output_test [n]

Counts down from n (default 1000) in 10ms steps, overwriting one line.
Closing the session or pressing Ctrl-C in the client interrupts it.
`

const interactiveTestHelp = `interactive_test

Asks for a name, an age and a password (masked where the client can) and
reports what it read. Needs a transport with interactive input.
`

func outputTest(ctx context.Context, ec *console.ExecContext) (string, error) {
	n := defaultCountdown
	if arg := ec.Arg(0); arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			return "", fmt.Errorf("invalid count %q", arg)
		}
		n = v
	}

	timer := time.NewTimer(countdownTick)
	defer timer.Stop()

	for i := n; i >= 1; i-- {
		if err := ec.Progress(fmt.Sprintf("countdown: %.2fs", float64(i)/100)); err != nil {
			return "", err
		}
		timer.Reset(countdownTick)
		select {
		case <-ctx.Done():
			return "", console.ErrInterrupted
		case <-timer.C:
		}
	}
	if err := ec.Println(""); err != nil {
		return "", err
	}
	return "output test finished", nil
}

func interactiveTest(ctx context.Context, ec *console.ExecContext) (string, error) {
	_ = ec.Println("=== interactive example ===")

	name, err := ec.ReadLine(ctx, "your name: ")
	if err != nil {
		return "", err
	}
	_ = ec.Println("hello, " + strings.TrimSpace(name) + "!")

	ageText, err := ec.ReadLine(ctx, "your age: ")
	if err != nil {
		return "", err
	}
	if age, err := strconv.Atoi(strings.TrimSpace(ageText)); err == nil {
		_ = ec.Printf("your age is %d\n", age)
	} else {
		_ = ec.Println("invalid age")
	}

	password, err := ec.ReadPassword(ctx, "password: ")
	if err != nil {
		return "", err
	}
	_ = ec.Printf("password length: %d characters\n", len([]rune(password)))
	_ = ec.Println("=== done ===")

	return "interactive test finished", nil
}
