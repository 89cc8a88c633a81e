package exec

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/streamharness/pkg/executor"
	"github.com/cuemby/streamharness/pkg/failure"
	"github.com/cuemby/streamharness/pkg/pool"
	"github.com/cuemby/streamharness/pkg/registry"
	"github.com/cuemby/streamharness/pkg/workservice"
)

func newTestExecutor(t *testing.T) (*Executor, *registry.Registry, *workservice.LocalClient) {
	t.Helper()
	reg := registry.New()
	client := workservice.NewLocalClient()
	p := pool.New(pool.Config{MaxWorkers: 1, MaxQueue: 1})
	reporter := failure.NewReporter(client, &failure.LastException{}, time.Millisecond)
	return NewExecutor(reg, executor.EchoFactory{}, executor.NoopStateFetcher{}, reporter, p), reg, client
}

func TestRunAppendsOutputOnSuccess(t *testing.T) {
	e, reg, _ := newTestExecutor(t)
	comp, _ := reg.Register(workservice.ComputationDescriptor{ID: "c1"})

	e.Run(context.Background(), Item{
		ComputationID: "c1",
		WorkItem:      workservice.WorkItem{Key: []byte("k"), WorkToken: 1, Input: []byte("payload")},
	})

	if comp.Output.Len() != 1 {
		t.Fatalf("expected one commit request on the output queue, got %d", comp.Output.Len())
	}
	req, _ := comp.Output.Pop()
	if len(req.OutputMessages) != 1 || string(req.OutputMessages[0]) != "payload" {
		t.Errorf("expected the echoed payload as output, got %+v", req.OutputMessages)
	}
}

func TestRunReleasesExecutorForReuse(t *testing.T) {
	e, reg, _ := newTestExecutor(t)
	comp, _ := reg.Register(workservice.ComputationDescriptor{ID: "c1"})

	item := Item{ComputationID: "c1", WorkItem: workservice.WorkItem{Key: []byte("k"), WorkToken: 1}}
	e.Run(context.Background(), item)
	if comp.Executors.Depth() != 1 {
		t.Fatalf("expected the executor to be cached after a successful run, got depth %d", comp.Executors.Depth())
	}

	e.Run(context.Background(), item)
	if comp.Executors.Depth() != 1 {
		t.Errorf("expected the cached executor to be reused, not duplicated, got depth %d", comp.Executors.Depth())
	}
}

func TestRunOnUnknownComputationDropsSilently(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	e.Run(context.Background(), Item{ComputationID: "missing", WorkItem: workservice.WorkItem{Key: []byte("k")}})
}
