// SPDX-License-Identifier: MPL-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/remcon/remcon/internal/console"
	"github.com/remcon/remcon/internal/issue"
	"github.com/remcon/remcon/internal/scripting"
	"github.com/remcon/remcon/internal/scriptstore"
)

const scriptHelp = `script <subcommand> [args...] | script <code>

Runs Lua in the domain's script runner and manages saved scripts.

Subcommands:
    run_code <code>         evaluate code
    list                    list saved scripts
    show <name>             print a saved script
    create <name> [code]    save a new script (a stub when code is omitted)
    edit <name> <code>      replace the code of a saved script
    delete <name>           delete a saved script
    run <name>              evaluate a saved script
    import <path> [name]    save a file (.lua as code, .yaml as an export)
    export <name> <path>    write a script to a file (.yaml keeps metadata)
    interactive             start the interactive interpreter

Anything else is evaluated as code. Globals persist per domain (-cl).

Built-ins:
    print(...) println(...) printf(fmt, ...)
    range(end) range(begin, end) range(begin, end, step)
    analyze(v)              describe a value as YAML
    getDomain() getHostName() getPid() getEnv(name) getContext()
    createSafeExecutor()    serialize calls on one worker: ex:submit(fn), ex(fn), ex:close()
    asRunnable(fn) asFunction(fn)
    runLater(fn)            run in the background, errors are logged
    sleep(ms)

Examples:
    script local t = {} for i in range(1, 4) do t[#t+1] = i end return #t
    script create greet println("hello " .. getDomain())
    script run greet
    script export greet /tmp/greet.yaml
`

const (
	srunHelp = `srun <code>

Evaluates code in the domain's script runner. Same as script run_code.
`
	sinteractiveHelp = `sinteractive | script_interactive

Starts the interactive interpreter for the domain. Each line is evaluated
on its own; errors are reported and the loop continues. Type exit or quit
to leave.
`
	svarsHelp = `svars

Lists the user-defined globals of the domain's script runner.
`
	sclearHelp = `sclear

Removes every user-defined global of the domain's script runner. Other
domains are untouched.
`
)

type scriptCommands struct {
	runners *scripting.Runners
	store   scriptstore.Store
}

func scriptEnv(ec *console.ExecContext) scripting.Env {
	return scripting.Env{Sink: ec.Sink(), Values: ec.Values(), Transport: ec.Transport}
}

func (s *scriptCommands) eval(ctx context.Context, ec *console.ExecContext, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", errors.New("no code given")
	}
	return s.runners.Get(ec.Domain).Eval(ctx, scriptEnv(ec), code)
}

func (s *scriptCommands) script(ctx context.Context, ec *console.ExecContext) (string, error) {
	if len(ec.Args) == 0 {
		return scriptHelp, nil
	}

	sub := ec.Args[0]
	switch sub {
	case "run_code":
		return s.eval(ctx, ec, textAfterFirst(ec.Raw))
	case "list":
		return s.list(ctx)
	case "show":
		return s.show(ctx, ec)
	case "create":
		return s.create(ctx, ec)
	case "edit":
		return s.edit(ctx, ec)
	case "delete":
		return s.delete(ctx, ec)
	case "run":
		return s.run(ctx, ec)
	case "import":
		return s.importFile(ctx, ec)
	case "export":
		return s.exportFile(ctx, ec)
	case "interactive":
		return s.interactive(ctx, ec)
	default:
		return s.eval(ctx, ec, ec.Raw)
	}
}

// startsREPL reports whether script args enter interactive mode.
func startsREPL(args []string) bool {
	return len(args) > 0 && args[0] == "interactive"
}

func (s *scriptCommands) srun(ctx context.Context, ec *console.ExecContext) (string, error) {
	return s.eval(ctx, ec, ec.Raw)
}

func (s *scriptCommands) interactive(ctx context.Context, ec *console.ExecContext) (string, error) {
	stats, err := scripting.RunREPL(ctx, s.runners.Get(ec.Domain), ec)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("interactive mode ended (%d statements, %d errors)", stats.Statements, stats.Errors), nil
}

func (s *scriptCommands) vars(_ context.Context, ec *console.ExecContext) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "(domain: %s)\n\nscript variables:\n", ec.Domain)

	vars := s.runners.Get(ec.Domain).Vars()
	if len(vars) == 0 {
		b.WriteString("  (empty)\n")
	}
	for _, v := range vars {
		fmt.Fprintf(&b, "  %s = %s (%s)\n", v.Name, v.Value, v.Type)
	}
	return b.String(), nil
}

func (s *scriptCommands) clear(_ context.Context, ec *console.ExecContext) (string, error) {
	n := s.runners.Get(ec.Domain).Reset()
	return fmt.Sprintf("cleared %d variables in domain %s; other domains are untouched", n, ec.Domain), nil
}

func (s *scriptCommands) requireStore() (scriptstore.Store, error) {
	if s.store == nil {
		return nil, ErrNoScriptStore
	}
	return s.store, nil
}

func (s *scriptCommands) list(ctx context.Context) (string, error) {
	store, err := s.requireStore()
	if err != nil {
		return "", err
	}
	names, err := store.List(ctx)
	if err != nil {
		return "", storeError("list scripts", "", err)
	}
	if len(names) == 0 {
		return "no scripts found", nil
	}

	var b strings.Builder
	b.WriteString("===== scripts =====\n\n")
	for _, name := range names {
		sc, err := store.Get(ctx, name)
		if err != nil {
			fmt.Fprintf(&b, "%s\n  (unreadable: %v)\n", name, err)
			continue
		}
		fmt.Fprintf(&b, "%s\n  size: %s\n  updated: %s\n", name,
			formatBytes(uint64(len(sc.Code))), sc.Updated.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "\ntotal: %d scripts", len(names))
	return b.String(), nil
}

func (s *scriptCommands) show(ctx context.Context, ec *console.ExecContext) (string, error) {
	sc, err := s.get(ctx, ec, "script show <name>")
	if err != nil {
		return "", err
	}
	return "===== " + sc.Name + " =====\n\n" + sc.Code, nil
}

func (s *scriptCommands) create(ctx context.Context, ec *console.ExecContext) (string, error) {
	store, err := s.requireStore()
	if err != nil {
		return "", err
	}
	name := ec.Arg(1)
	if name == "" {
		return "", usageError("script create <name> [code]")
	}
	if err := scriptstore.ValidateName(name); err != nil {
		return "", err
	}
	if _, err := store.Get(ctx, name); err == nil {
		return "", fmt.Errorf("script %q already exists", name)
	} else if !errors.Is(err, scriptstore.ErrNotFound) {
		return "", storeError("read script", name, err)
	}

	code := textAfterN(ec.Raw, 2)
	if code == "" {
		code = "-- Script: " + name + "\n"
	}
	if err := store.Put(ctx, scriptstore.Script{Name: name, Code: code}); err != nil {
		return "", storeError("save script", name, err)
	}
	return fmt.Sprintf("script %q created\nhint: use 'script edit %s <code>' to change it", name, name), nil
}

func (s *scriptCommands) edit(ctx context.Context, ec *console.ExecContext) (string, error) {
	sc, err := s.get(ctx, ec, "script edit <name> <code>")
	if err != nil {
		return "", err
	}
	code := textAfterN(ec.Raw, 2)
	if code == "" {
		return "", usageError("script edit <name> <code>")
	}
	sc.Code = code
	sc.Updated = time.Time{}
	if err := s.store.Put(ctx, sc); err != nil {
		return "", storeError("save script", sc.Name, err)
	}
	return fmt.Sprintf("script %q updated", sc.Name), nil
}

func (s *scriptCommands) delete(ctx context.Context, ec *console.ExecContext) (string, error) {
	store, err := s.requireStore()
	if err != nil {
		return "", err
	}
	name := ec.Arg(1)
	if name == "" {
		return "", usageError("script delete <name>")
	}
	if err := store.Delete(ctx, name); err != nil {
		if errors.Is(err, scriptstore.ErrNotFound) {
			return "", fmt.Errorf("script %q does not exist", name)
		}
		return "", storeError("delete script", name, err)
	}
	return fmt.Sprintf("script %q deleted", name), nil
}

func (s *scriptCommands) run(ctx context.Context, ec *console.ExecContext) (string, error) {
	sc, err := s.get(ctx, ec, "script run <name>")
	if err != nil {
		return "", err
	}
	result, err := s.eval(ctx, ec, sc.Code)
	if err != nil {
		if console.IsInterrupted(err) {
			return "", err
		}
		return "", issue.NewErrorContext().
			WithOperation("run script").
			WithResource(sc.Name).
			WithSuggestionf("Inspect the code with 'script show %s'", sc.Name).
			WithIssue(issue.ScriptFailedId).
			Wrap(err).
			BuildError()
	}
	return result, nil
}

func (s *scriptCommands) importFile(ctx context.Context, ec *console.ExecContext) (string, error) {
	store, err := s.requireStore()
	if err != nil {
		return "", err
	}
	path := ec.Arg(1)
	if path == "" {
		return "", usageError("script import <path> [name]")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sc, err := scriptstore.Import(path, data, ec.Arg(2))
	if err != nil {
		return "", err
	}
	if _, err := store.Get(ctx, sc.Name); err == nil {
		return "", fmt.Errorf("script %q already exists\nhint: use 'script delete %s' first", sc.Name, sc.Name)
	}
	if err := store.Put(ctx, sc); err != nil {
		return "", storeError("save script", sc.Name, err)
	}
	abs, _ := filepath.Abs(path)
	return fmt.Sprintf("imported %s as %q", abs, sc.Name), nil
}

func (s *scriptCommands) exportFile(ctx context.Context, ec *console.ExecContext) (string, error) {
	sc, err := s.get(ctx, ec, "script export <name> <path>")
	if err != nil {
		return "", err
	}
	path := ec.Arg(2)
	if path == "" {
		return "", usageError("script export <name> <path>")
	}

	data := []byte(sc.Code)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if data, err = scriptstore.Export(sc); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("exported %q to %s", sc.Name, path), nil
}

// get loads the script named by the first argument after the subcommand.
func (s *scriptCommands) get(ctx context.Context, ec *console.ExecContext, usage string) (scriptstore.Script, error) {
	store, err := s.requireStore()
	if err != nil {
		return scriptstore.Script{}, err
	}
	name := ec.Arg(1)
	if name == "" {
		return scriptstore.Script{}, usageError(usage)
	}
	sc, err := store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, scriptstore.ErrNotFound) {
			return scriptstore.Script{}, fmt.Errorf("script %q does not exist", name)
		}
		return scriptstore.Script{}, storeError("read script", name, err)
	}
	return sc, nil
}

func usageError(usage string) error {
	return fmt.Errorf("missing argument\nusage: %s", usage)
}

func storeError(op, name string, err error) error {
	return issue.NewErrorContext().
		WithOperation(op).
		WithResource(name).
		WithSuggestion("Check the scripts section of the configuration").
		WithIssue(issue.ScriptStoreUnavailableId).
		Wrap(err).
		BuildError()
}

// textAfterFirst drops the first whitespace-separated token of s.
func textAfterFirst(s string) string {
	return textAfterN(s, 1)
}

// textAfterN drops n whitespace-separated tokens of s and returns the rest
// unchanged apart from leading space.
func textAfterN(s string, n int) string {
	rest := strings.TrimLeft(s, " \t")
	for range n {
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[i:], " \t")
	}
	return rest
}
