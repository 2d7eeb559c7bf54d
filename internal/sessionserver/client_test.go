// SPDX-License-Identifier: MPL-2.0

package sessionserver

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedPrompter struct {
	answers []string
	asked   []string
	secret  []bool
}

func (p *scriptedPrompter) Prompt(prompt string, secret bool) (string, error) {
	p.asked = append(p.asked, prompt)
	p.secret = append(p.secret, secret)
	if len(p.answers) == 0 {
		return "", errors.New("no more answers")
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func TestConn_Execute(t *testing.T) {
	t.Parallel()

	env := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := Dial(ctx, env.srv.Address())
	if err != nil {
		t.Fatalf("Dial() returned error: %v", err)
	}
	defer conn.Close()

	var out bytes.Buffer
	ok, err := conn.Execute(ctx, "echo 1 2", &out, nil)
	if err != nil || !ok {
		t.Fatalf("Execute() = %v, %v", ok, err)
	}
	if out.String() != "1,2|system|socket\n" {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	p := &scriptedPrompter{answers: []string{"ann", "pw"}}
	ok, err = conn.Execute(ctx, "ask", &out, p)
	if err != nil || !ok {
		t.Fatalf("Execute(ask) = %v, %v", ok, err)
	}
	if out.String() != "ann/**\n" {
		t.Errorf("output = %q", out.String())
	}
	if len(p.secret) != 2 || p.secret[0] || !p.secret[1] {
		t.Errorf("secret flags = %v, want [false true]", p.secret)
	}

	out.Reset()
	ok, err = conn.Execute(ctx, "fail", &out, nil)
	if err != nil || ok {
		t.Errorf("Execute(fail) = %v, %v; want false, nil", ok, err)
	}
}

func TestConn_ExecuteWithoutPrompter(t *testing.T) {
	t.Parallel()

	env := startServer(t)
	ctx := context.Background()
	conn, err := Dial(ctx, env.srv.Address())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Execute(ctx, "ask", &bytes.Buffer{}, nil); !errors.Is(err, ErrNoPrompter) {
		t.Errorf("Execute() error = %v, want ErrNoPrompter", err)
	}
}
