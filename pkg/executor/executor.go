// Package executor models the user-pipeline execution boundary (C2 in
// the design): the Executor/Context pair bound to one computation, its
// factory, and the per-computation LIFO cache that lets the harness
// reuse warm instances across work items.
//
// The pipeline engine that actually runs inside an Executor is an
// external collaborator (§1 Non-goals); this package only defines the
// contract the harness drives it through.
package executor

import (
	"context"

	"github.com/cuemby/streamharness/pkg/workservice"
)

// StateFetcher is the injected capability an execution Context uses to
// read per-key persistent state from the work service. Its
// implementation (an RPC to the service) is out of scope; it is a
// capability handed to the context, never hidden behind global state.
type StateFetcher interface {
	FetchState(ctx context.Context, computationID string, key []byte, tag string) ([]byte, error)
}

// CommitBuilder accumulates the outputs of one work item's execution.
// The harness creates a fresh builder addressed by (key, workToken) and
// hands it to the Context through Bind; the executor appends mutations
// and outputs to it during execution, and the harness calls Build once
// execution completes. Counters are not added here: the harness reads
// them from Executor.Counters and attaches them to the built request.
type CommitBuilder interface {
	AddStateMutation(b []byte)
	AddOutputMessage(b []byte)
	Build() *workservice.WorkItemCommitRequest
}

// Context is the per-execution binding: the work item, its computation's
// input watermark in milliseconds, and the commit builder collecting
// this execution's results. A Context is created together with its
// Executor and cached alongside it in the same Pair; each new work item
// re-binds the reused Context rather than creating a new one.
type Context interface {
	Bind(item workservice.WorkItem, inputWatermarkMillis int64, builder CommitBuilder)
}

// Executor runs one computation's data-processing pipeline against a
// bound Context. Restartable executors may be invoked repeatedly with a
// freshly re-bound Context; SupportsRestart must be true for any
// executor placed in the Cache (§4.5 step 3's fatal assertion).
type Executor interface {
	SupportsRestart() bool
	// SetProgressUpdatePeriod controls the pipeline's periodic progress
	// reporting; the harness disables it (sets 0) on freshly created
	// executors per §4.5 step 4.
	SetProgressUpdatePeriod(period int64)
	// Execute runs synchronously against the currently bound Context.
	Execute(ctx context.Context) error
	// Counters returns the counter deltas accumulated by this execution.
	Counters() []workservice.CounterUpdate
	// Close releases any resources held by the executor. Called instead
	// of Release whenever execution or binding failed.
	Close() error
}

// Pair bundles one Executor with its bound Context.
type Pair struct {
	Executor Executor
	Context  Context
}

// Factory creates a fresh Executor/Context pair for one computation.
// Concrete factories are the injection point for the external
// pipeline-execution engine (§1).
type Factory interface {
	New(descriptor workservice.ComputationDescriptor, fetcher StateFetcher) (Pair, error)
}
