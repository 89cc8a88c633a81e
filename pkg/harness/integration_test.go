package harness

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/streamharness/pkg/executor"
	"github.com/cuemby/streamharness/pkg/failure"
	"github.com/cuemby/streamharness/pkg/workservice"
)

// waitFor polls cond until it reports true or the deadline passes, failing
// the test otherwise. Dispatch, execution and commit all run on their own
// goroutines, so assertions on their effects need to tolerate a few
// scheduling rounds rather than firing immediately.
func waitFor(t *testing.T, deadline time.Duration, cond func() bool) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met within deadline")
	}
}

func localClientOf(t *testing.T, h *Harness) *workservice.LocalClient {
	t.Helper()
	lc, ok := h.client.(*workservice.LocalClient)
	if !ok {
		t.Fatalf("expected a LocalClient, got %T", h.client)
	}
	return lc
}

// TestIntegrationHappyPath drives one leased item through dispatch,
// execution and commit end to end and asserts the echoed output shows up
// in a committed request.
func TestIntegrationHappyPath(t *testing.T) {
	h, err := New(testConfig(), executor.EchoFactory{}, executor.NoopStateFetcher{},
		[]workservice.ComputationDescriptor{{ID: "c1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lc := localClientOf(t, h)
	lc.EnqueueLease(workservice.ComputationWorkItems{
		ComputationID: "c1",
		WorkItems:     []workservice.WorkItem{{Key: []byte("k1"), WorkToken: 1, Input: []byte("hello")}},
	})

	h.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	}()

	waitFor(t, time.Second, func() bool {
		for _, req := range lc.Commits() {
			for _, comp := range req.Computations {
				if comp.ComputationID != "c1" {
					continue
				}
				for _, r := range comp.Requests {
					if len(r.OutputMessages) == 1 && string(r.OutputMessages[0]) == "hello" {
						return true
					}
				}
			}
		}
		return false
	})
}

// TestIntegrationUnknownComputationIsFetchedLazily exercises §4.2's lazy
// getConfig path: a leased item for a computation id the harness never
// pre-registered still gets executed once its descriptor is fetched.
func TestIntegrationUnknownComputationIsFetchedLazily(t *testing.T) {
	h, err := New(testConfig(), executor.EchoFactory{}, executor.NoopStateFetcher{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lc := localClientOf(t, h)
	lc.RegisterDescriptor(workservice.ComputationDescriptor{ID: "late"})
	lc.EnqueueLease(workservice.ComputationWorkItems{
		ComputationID: "late",
		WorkItems:     []workservice.WorkItem{{Key: []byte("k1"), WorkToken: 1, Input: []byte("world")}},
	})

	h.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	}()

	waitFor(t, time.Second, func() bool {
		_, ok := h.registry.Lookup("late")
		return ok
	})
	waitFor(t, time.Second, func() bool {
		for _, req := range lc.Commits() {
			for _, comp := range req.Computations {
				if comp.ComputationID == "late" {
					return true
				}
			}
		}
		return false
	})
}

// TestIntegrationKeyTokenInvalidIsDroppedWithoutCommit exercises §4.7: a
// failing executor whose error classifies as key-token-invalid is dropped
// without ever reaching ReportStats or producing a commit.
func TestIntegrationKeyTokenInvalidIsDroppedWithoutCommit(t *testing.T) {
	h, err := New(testConfig(), failingFactory{}, executor.NoopStateFetcher{},
		[]workservice.ComputationDescriptor{{ID: "c1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lc := localClientOf(t, h)
	lc.EnqueueLease(workservice.ComputationWorkItems{
		ComputationID: "c1",
		WorkItems:     []workservice.WorkItem{{Key: []byte("k1"), WorkToken: 1}},
	})

	h.Start()
	// There is no success-path signal to poll for a dropped item (that is
	// the point of the drop), so give the 1ms-backoff dispatch loop a
	// generous number of poll cycles to have picked the lease up before
	// shutdown runs.
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Stop(ctx); err != nil {
		t.Fatalf("unexpected error stopping harness: %v", err)
	}

	if reports := lc.Reports(); len(reports) != 0 {
		t.Errorf("expected no ReportStats calls for a key-token-invalid failure, got %d", len(reports))
	}
	if commits := lc.Commits(); len(commits) != 0 {
		t.Errorf("expected no commits for a failed item, got %d", len(commits))
	}
}

// failingFactory always returns an Executor whose Execute fails with a
// KeyTokenInvalidError, exercising the drop-without-retry branch of §4.7
// without needing a real pipeline engine.
type failingFactory struct{}

func (failingFactory) New(workservice.ComputationDescriptor, executor.StateFetcher) (executor.Pair, error) {
	c := &failingContext{}
	return executor.Pair{Executor: &failingExecutor{}, Context: c}, nil
}

type failingContext struct{}

func (c *failingContext) Bind(workservice.WorkItem, int64, executor.CommitBuilder) {}

type failingExecutor struct{}

func (failingExecutor) SupportsRestart() bool                 { return true }
func (failingExecutor) SetProgressUpdatePeriod(int64)         {}
func (failingExecutor) Counters() []workservice.CounterUpdate { return nil }
func (failingExecutor) Close() error                          { return nil }
func (failingExecutor) Execute(context.Context) error {
	return &failure.KeyTokenInvalidError{Key: []byte("k1"), WorkToken: 1}
}
