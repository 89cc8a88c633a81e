// Package exec implements the per-item execution protocol (C5): binding
// an executor to a work item, running it, collecting counters, flushing
// state, enqueueing a commit, and routing failures to the C7 reporter.
//
// A goroutine is spawned fresh per task by the bounded pool, so there is
// no per-thread diagnostic context to clear between executions the way
// the JVM-native implementation must in its always-run epilogue — each
// execution already starts with a clean goroutine.
package exec

import (
	"context"
	"fmt"

	"github.com/cuemby/streamharness/pkg/counters"
	"github.com/cuemby/streamharness/pkg/executor"
	"github.com/cuemby/streamharness/pkg/failure"
	"github.com/cuemby/streamharness/pkg/log"
	"github.com/cuemby/streamharness/pkg/metrics"
	"github.com/cuemby/streamharness/pkg/pool"
	"github.com/cuemby/streamharness/pkg/registry"
	"github.com/cuemby/streamharness/pkg/workservice"
)

// Item is the (computation, watermark, work item) tuple the dispatch
// loop hands to the per-item executor for one submitted task.
type Item struct {
	ComputationID        string
	InputWatermarkMillis int64
	WorkItem             workservice.WorkItem
}

// Executor runs one Item to completion: the C5 component.
type Executor struct {
	registry *registry.Registry
	factory  executor.Factory
	fetcher  executor.StateFetcher
	reporter *failure.Reporter
	pool     *pool.Pool
}

// NewExecutor wires the C5 collaborators together.
func NewExecutor(reg *registry.Registry, factory executor.Factory, fetcher executor.StateFetcher, reporter *failure.Reporter, p *pool.Pool) *Executor {
	return &Executor{registry: reg, factory: factory, fetcher: fetcher, reporter: reporter, pool: p}
}

// Run executes item synchronously, blocking the calling (pool worker)
// goroutine for the duration, per §5.
func (e *Executor) Run(ctx context.Context, item Item) {
	comp, ok := e.registry.Lookup(item.ComputationID)
	if !ok {
		log.WithComponent("exec").Warn().
			Str("computation_id", item.ComputationID).
			Msg("unknown computation at execution time, dropping item")
		return
	}

	timer := metrics.NewTimer()
	builder := newCommitBuilder(item.WorkItem.Key, item.WorkItem.WorkToken)

	pair, hit := comp.Executors.Acquire()
	fresh := !hit
	if fresh {
		p, err := e.factory.New(comp.Descriptor, e.fetcher)
		if err != nil {
			metrics.ItemsExecutedTotal.WithLabelValues(item.ComputationID, "error").Inc()
			e.reporter.Handle(ctx, item.ComputationID, item.WorkItem.Key, item.WorkItem.WorkToken,
				fmt.Errorf("creating executor: %w", err), func() { e.retry(ctx, item) })
			return
		}
		pair = p

		if !pair.Executor.SupportsRestart() {
			log.Fatal(fmt.Sprintf("infrastructure assertion violated: executor for computation %q does not support restart", item.ComputationID))
		}
		pair.Executor.SetProgressUpdatePeriod(0)
	}

	pair.Context.Bind(item.WorkItem, item.InputWatermarkMillis, builder)

	execErr := pair.Executor.Execute(ctx)
	timer.ObserveDurationVec(metrics.ExecutionDuration, item.ComputationID)

	if execErr != nil {
		metrics.ItemsExecutedTotal.WithLabelValues(item.ComputationID, "error").Inc()
		_ = pair.Executor.Close()
		e.reporter.Handle(ctx, item.ComputationID, item.WorkItem.Key, item.WorkItem.WorkToken, execErr,
			func() { e.retry(ctx, item) })
		return
	}

	metrics.ItemsExecutedTotal.WithLabelValues(item.ComputationID, "success").Inc()

	req := builder.Build()
	req.Counters = counters.Filter(pair.Executor.Counters())
	comp.Output.Append(req)
	metrics.OutputQueueDepth.WithLabelValues(item.ComputationID).Set(float64(comp.Output.Len()))
	comp.Executors.Release(pair)
}

// retry resubmits item through the pool's force-enqueue path, per the
// C7 retry policy. It is invoked by the reporter only after the 10s
// debounce sleep, on the same goroutine that ran the failed attempt.
func (e *Executor) retry(ctx context.Context, item Item) {
	e.pool.ForceExecute(func() { e.Run(ctx, item) })
}
