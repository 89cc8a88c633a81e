package executor

import (
	"context"

	"github.com/cuemby/streamharness/pkg/workservice"
)

// EchoFactory is a trivial Factory for standalone runs and local-client
// integration tests, in place of the real pipeline-execution engine
// (§1 Non-goals). Every bound work item's non-empty input is copied
// straight to output with no state reads or counter updates; an item
// with empty input produces no output. It exists so the harness has
// something to drive when no external engine is wired in.
type EchoFactory struct{}

// New returns an Executor/Context pair that never fails and always
// restarts, so it is eligible for the per-computation cache. The pair
// shares one underlying binding: Bind records the item on the Context,
// Execute reads it back off the same pointer.
func (EchoFactory) New(descriptor workservice.ComputationDescriptor, fetcher StateFetcher) (Pair, error) {
	c := &echoContext{}
	return Pair{Executor: &echoExecutor{bound: c}, Context: c}, nil
}

type echoContext struct {
	item      workservice.WorkItem
	watermark int64
	builder   CommitBuilder
}

func (c *echoContext) Bind(item workservice.WorkItem, inputWatermarkMillis int64, builder CommitBuilder) {
	c.item = item
	c.watermark = inputWatermarkMillis
	c.builder = builder
}

type echoExecutor struct {
	bound *echoContext
}

func (e *echoExecutor) SupportsRestart() bool { return true }

func (e *echoExecutor) SetProgressUpdatePeriod(period int64) {}

// Execute re-emits the bound item's input as a single output message,
// or emits nothing when the input is empty.
func (e *echoExecutor) Execute(ctx context.Context) error {
	if len(e.bound.item.Input) > 0 {
		e.bound.builder.AddOutputMessage(e.bound.item.Input)
	}
	return nil
}

func (e *echoExecutor) Counters() []workservice.CounterUpdate { return nil }

func (e *echoExecutor) Close() error { return nil }

// NoopStateFetcher always reports no stored state, for runs with no
// backing state service.
type NoopStateFetcher struct{}

func (NoopStateFetcher) FetchState(ctx context.Context, computationID string, key []byte, tag string) ([]byte, error) {
	return nil, nil
}
