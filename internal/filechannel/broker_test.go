// SPDX-License-Identifier: MPL-2.0

package filechannel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/remcon/remcon/internal/console"
	"github.com/remcon/remcon/internal/testutil"

	"github.com/charmbracelet/log"
)

func testRegistry() *console.Registry {
	r := console.NewRegistry(console.WithLogger(log.New(io.Discard)))
	r.MustRegister(
		console.NewCommand("echo", "echo - prints args\n", func(_ context.Context, ec *console.ExecContext) (string, error) {
			return strings.Join(ec.Args, " ") + "|" + ec.Domain.String() + "|" + ec.Transport, nil
		}),
		console.NewCommand("count", "count - prints progress\n", func(_ context.Context, ec *console.ExecContext) (string, error) {
			n, _ := strconv.Atoi(ec.Arg(0))
			for i := n; i > 0; i-- {
				if err := ec.Progress(strconv.Itoa(i)); err != nil {
					return "", err
				}
			}
			return "done", nil
		}),
		console.NewInteractiveCommand("ask", "ask - needs input\n", func(ctx context.Context, ec *console.ExecContext) (string, error) {
			return ec.ReadLine(ctx, "name: ")
		}),
	)
	r.Seal()
	return r
}

func startBroker(t *testing.T, cfg BrokerConfig) *Broker {
	t.Helper()
	if cfg.BaseDir == "" {
		cfg.BaseDir = t.TempDir()
	}
	if cfg.Executor == nil {
		cfg.Executor = testRegistry()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	cfg.Logger = log.New(io.Discard)

	b, err := NewBroker(cfg)
	if err != nil {
		t.Fatalf("NewBroker() returned error: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	t.Cleanup(func() { testutil.MustStop(t, b) })
	return b
}

func TestBroker_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, watchFiles := range []bool{false, true} {
		t.Run(fmt.Sprintf("watch=%v", watchFiles), func(t *testing.T) {
			t.Parallel()

			b := startBroker(t, BrokerConfig{Watch: watchFiles})
			c := NewClient(b.Layout().Base, 5*time.Millisecond)
			c.Timeout = 10 * time.Second

			var out bytes.Buffer
			res, err := c.Execute(context.Background(), "-cl pkg.x echo hi there", &out)
			if err != nil {
				t.Fatalf("Execute() returned error: %v", err)
			}
			if !res.OK() || res.Text != "hi there|pkg.x|file" {
				t.Errorf("result = %+v", res)
			}

			out.Reset()
			res, err = c.Execute(context.Background(), "count 3", &out)
			if err != nil {
				t.Fatalf("Execute() returned error: %v", err)
			}
			if res.Text != "done" || out.String() != "\r3\r2\r1" {
				t.Errorf("result = %+v, output = %q", res, out.String())
			}

			entries, err := os.ReadDir(b.Layout().SessionsDir())
			if err != nil {
				t.Fatal(err)
			}
			for _, e := range entries {
				if e.IsDir() {
					t.Errorf("session %s left behind", e.Name())
				}
			}
			testutil.Eventually(t, 5*time.Second, "both sessions counted", func() bool {
				return b.Served() == 2
			})
		})
	}
}

func TestBroker_ResultOnlyAfterInput(t *testing.T) {
	t.Parallel()

	b := startBroker(t, BrokerConfig{})
	dir := b.Layout().SessionDir(7)
	testutil.MustMkdirAll(t, dir, 0o755)
	// A partially written input is not an input.
	testutil.MustWriteFile(t, filepath.Join(dir, InputFile+tmpSuffix), "echo partial")

	time.Sleep(100 * time.Millisecond)
	for _, name := range []string{OutputFile, ResultFile} {
		if exists(filepath.Join(dir, name)) {
			t.Fatalf("%s created before input.txt was complete", name)
		}
	}

	if err := os.Rename(filepath.Join(dir, InputFile+tmpSuffix), filepath.Join(dir, InputFile)); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, 5*time.Second, "result written", func() bool {
		return exists(filepath.Join(dir, ResultFile))
	})

	input, err := os.Stat(filepath.Join(dir, InputFile))
	if err != nil {
		t.Fatal(err)
	}
	result, err := os.Stat(filepath.Join(dir, ResultFile))
	if err != nil {
		t.Fatal(err)
	}
	if result.ModTime().Before(input.ModTime()) {
		t.Errorf("result (%v) older than input (%v)", result.ModTime(), input.ModTime())
	}
	res := decodeResult([]byte(testutil.MustReadFile(t, filepath.Join(dir, ResultFile))))
	if res.Text != "partial|system|file" {
		t.Errorf("result = %+v", res)
	}
}

type countingExecutor struct {
	console.Executor
	mu    sync.Mutex
	lines []string
}

func (e *countingExecutor) Execute(ctx context.Context, line string, opts console.ExecOptions) console.Outcome {
	e.mu.Lock()
	e.lines = append(e.lines, line)
	e.mu.Unlock()
	return e.Executor.Execute(ctx, line, opts)
}

func TestBroker_DispatchSkipsFinishedSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		result     bool
		wantRuns   int
		wantResult string
	}{
		{name: "finished between scan and claim", result: true, wantRuns: 0, wantResult: "ok\nfirst run\n"},
		{name: "pending", result: false, wantRuns: 1, wantResult: "ok\nagain|"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exec := &countingExecutor{Executor: testRegistry()}
			b, err := NewBroker(BrokerConfig{BaseDir: t.TempDir(), Executor: exec, Logger: log.New(io.Discard)})
			if err != nil {
				t.Fatalf("NewBroker() returned error: %v", err)
			}

			dir := filepath.Join(b.Layout().SessionsDir(), "finished")
			testutil.MustMkdirAll(t, dir, 0o755)
			testutil.MustWriteFile(t, filepath.Join(dir, InputFile), "echo again\n")
			if tt.result {
				testutil.MustWriteFile(t, filepath.Join(dir, ResultFile), "ok\nfirst run\n")
			}

			b.dispatch(context.Background(), dir)
			if err := b.group.Wait(); err != nil {
				t.Fatalf("Wait() returned error: %v", err)
			}

			exec.mu.Lock()
			runs := len(exec.lines)
			exec.mu.Unlock()
			if runs != tt.wantRuns {
				t.Errorf("executor ran %d times, want %d", runs, tt.wantRuns)
			}
			if got := testutil.MustReadFile(t, filepath.Join(dir, ResultFile)); !strings.HasPrefix(got, tt.wantResult) {
				t.Errorf("result = %q, want prefix %q", got, tt.wantResult)
			}
			b.mu.Lock()
			claims := len(b.claimed)
			b.mu.Unlock()
			if claims != 0 {
				t.Errorf("%d claims left after dispatch", claims)
			}
		})
	}
}

func TestBroker_InteractiveUnsupported(t *testing.T) {
	t.Parallel()

	b := startBroker(t, BrokerConfig{})
	c := NewClient(b.Layout().Base, 5*time.Millisecond)
	c.Timeout = 10 * time.Second

	res, err := c.Execute(context.Background(), "ask", io.Discard)
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if res.OK() || !strings.Contains(res.Text, console.ErrNoInput.Error()) {
		t.Errorf("result = %+v, want capability error", res)
	}
}

func TestBroker_ConcurrentClients(t *testing.T) {
	t.Parallel()

	b := startBroker(t, BrokerConfig{Workers: 2})

	const n = 8
	var wg sync.WaitGroup
	results := make([]Result, n)
	errs := make([]error, n)
	for i := range n {
		wg.Go(func() {
			c := NewClient(b.Layout().Base, 5*time.Millisecond)
			c.Timeout = 20 * time.Second
			results[i], errs[i] = c.Execute(context.Background(), "echo "+strconv.Itoa(i), io.Discard)
		})
	}
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Errorf("client %d: %v", i, errs[i])
			continue
		}
		if want := strconv.Itoa(i) + "|system|file"; results[i].Text != want {
			t.Errorf("client %d got %q, want %q", i, results[i].Text, want)
		}
	}
}

func TestBroker_RemovesStaleSessions(t *testing.T) {
	t.Parallel()

	now := time.Now()
	clk := testutil.NewFakeClock(now)
	b := startBroker(t, BrokerConfig{
		Clock:         clk,
		OrphanTimeout: time.Minute,
		Retention:     time.Hour,
	})

	orphan := b.Layout().SessionDir(1)
	testutil.MustMkdirAll(t, orphan, 0o755)
	done := b.Layout().SessionDir(2)
	testutil.MustMkdirAll(t, done, 0o755)
	testutil.MustWriteFile(t, filepath.Join(done, InputFile), "echo x\n")
	testutil.MustWriteFile(t, filepath.Join(done, ResultFile), "ok\nx")

	b.Wake()
	time.Sleep(50 * time.Millisecond)
	if !exists(orphan) || !exists(done) {
		t.Fatal("sessions removed before their timeouts")
	}

	clk.Advance(2 * time.Minute)
	b.Wake()
	testutil.Eventually(t, 5*time.Second, "orphan removed", func() bool { return !exists(orphan) })
	if !exists(done) {
		t.Error("completed session removed before retention")
	}

	clk.Advance(2 * time.Hour)
	b.Wake()
	testutil.Eventually(t, 5*time.Second, "completed session removed", func() bool { return !exists(done) })
}

func TestBroker_ObserverAndResultHook(t *testing.T) {
	t.Parallel()

	obs := &countingObserver{}
	var (
		mu       sync.Mutex
		statuses []console.Status
	)
	b := startBroker(t, BrokerConfig{
		Observer: obs,
		OnResult: func(s console.Status) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		},
	})
	c := NewClient(b.Layout().Base, 5*time.Millisecond)
	c.Timeout = 10 * time.Second

	if _, err := c.Execute(context.Background(), "missing", io.Discard); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}

	testutil.Eventually(t, 5*time.Second, "result hook and observer called", func() bool {
		mu.Lock()
		defer mu.Unlock()
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return len(statuses) == 1 && obs.ended == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if statuses[0] != console.StatusUnknown {
		t.Errorf("status = %v, want unknown", statuses[0])
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.started != 1 {
		t.Errorf("observer saw %d starts, want 1", obs.started)
	}
}

func TestNewBroker_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewBroker(BrokerConfig{Executor: testRegistry()}); !errors.Is(err, ErrNoBaseDir) {
		t.Errorf("error = %v, want ErrNoBaseDir", err)
	}
	if _, err := NewBroker(BrokerConfig{BaseDir: t.TempDir()}); !errors.Is(err, ErrNoExecutor) {
		t.Errorf("error = %v, want ErrNoExecutor", err)
	}
}

type countingObserver struct {
	mu             sync.Mutex
	started, ended int
}

func (o *countingObserver) SessionStarted(string) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *countingObserver) SessionEnded(string) {
	o.mu.Lock()
	o.ended++
	o.mu.Unlock()
}
