// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/remcon/remcon/internal/console"
)

func TestRunners_SystemPreSeeded(t *testing.T) {
	t.Parallel()

	var hookTotal atomic.Int64
	rs := newTestRunners(t, WithCreateHook(func(total int) { hookTotal.Store(int64(total)) }))

	if rs.Created() != 1 {
		t.Errorf("Created() = %d, want 1", rs.Created())
	}
	if hookTotal.Load() != 1 {
		t.Errorf("create hook saw %d, want 1", hookTotal.Load())
	}
	if rs.Get(console.SystemDomain) != rs.System() {
		t.Error("Get(system) did not return the pre-seeded runner")
	}
	if got, _ := evalString(t, rs.System(), "getDomain()"); got != "system" {
		t.Errorf("getDomain() = %q, want system", got)
	}
}

func TestRunners_ConcurrentGetSameInstance(t *testing.T) {
	t.Parallel()

	rs := newTestRunners(t)

	const n = 32
	got := make([]*Runner, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			got[i] = rs.Get("pkg.a")
		})
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("Get returned distinct runners for the same domain")
		}
	}
	if rs.Created() != 2 {
		t.Errorf("Created() = %d, want 2", rs.Created())
	}
}

func TestRunners_DomainsIsolated(t *testing.T) {
	t.Parallel()

	rs := newTestRunners(t)
	a, b := rs.Get("pkg.a"), rs.Get("pkg.b")
	if a == b {
		t.Fatal("distinct domains share a runner")
	}

	evalString(t, a, "shared = 'from a'")
	if got, _ := evalString(t, b, "shared"); got != "" {
		t.Errorf("domain b sees domain a global: %q", got)
	}
	if got, _ := evalString(t, rs.System(), "shared"); got != "" {
		t.Errorf("system sees domain a global: %q", got)
	}

	domains := rs.Domains()
	if len(domains) != 3 || domains[0] != console.SystemDomain {
		t.Errorf("Domains() = %v", domains)
	}
}
