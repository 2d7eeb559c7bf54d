// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// terminalPrompter answers input requests from the user's terminal. Secret
// prompts switch echo off when stdin is a terminal and fall back to a plain
// read otherwise.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
	// fd is stdin's descriptor, or -1 when stdin is not a terminal.
	fd int
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &terminalPrompter{in: bufio.NewReader(in), out: out, fd: fd}
}

// Prompt implements sessionserver.Prompter.
func (p *terminalPrompter) Prompt(prompt string, secret bool) (string, error) {
	fmt.Fprint(p.out, prompt)
	if secret && p.fd >= 0 {
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return p.readLine()
}

// ReadLine implements console.LineReader for in-process dispatch.
func (p *terminalPrompter) ReadLine(_ context.Context, prompt string) (string, error) {
	return p.Prompt(prompt, false)
}

// ReadPassword implements console.LineReader for in-process dispatch.
func (p *terminalPrompter) ReadPassword(_ context.Context, prompt string) (string, error) {
	return p.Prompt(prompt, true)
}

// readLine returns the next line without its terminator. A final line
// without a newline is returned before io.EOF.
func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
