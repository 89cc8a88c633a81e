// Package failure implements the failure reporter (C7): classifying a
// failed execution, reporting it to the work service when appropriate,
// and deciding whether the harness retries the item locally or
// abandons it to the service's lease-expiry mechanism.
package failure

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cuemby/streamharness/pkg/log"
	"github.com/cuemby/streamharness/pkg/metrics"
	"github.com/cuemby/streamharness/pkg/workservice"
)

// LastException is the single mutable slot holding the most recent
// failure, for the status surface. Single-writer-last-wins.
type LastException struct {
	v atomic.Value // holds *Record
}

// Record is a snapshot of one reported failure.
type Record struct {
	ComputationID string
	Err           error
	At            time.Time
}

// Set stores the latest failure.
func (l *LastException) Set(r *Record) { l.v.Store(r) }

// Get returns the latest failure, or nil if none has occurred.
func (l *LastException) Get() *Record {
	v, _ := l.v.Load().(*Record)
	return v
}

// Reporter is the C7 collaborator the per-item executor hands a failure
// to once it has closed the executor that produced it.
type Reporter struct {
	client     workservice.Client
	retryDelay time.Duration
	last       *LastException
}

// NewReporter creates a Reporter. retryDelay defaults to 10s (the
// design's retry debounce) when zero.
func NewReporter(client workservice.Client, last *LastException, retryDelay time.Duration) *Reporter {
	if retryDelay <= 0 {
		retryDelay = 10 * time.Second
	}
	return &Reporter{client: client, retryDelay: retryDelay, last: last}
}

// IsKeyTokenInvalid reports whether a KeyTokenInvalidError appears
// anywhere in err's cause chain.
func IsKeyTokenInvalid(err error) bool {
	var target *KeyTokenInvalidError
	return errors.As(err, &target)
}

// unwrapUserCode removes one layer of UserCodeWrapperError, if present,
// for classification purposes only. The original error (with the
// wrapper intact) is still what gets reported and logged.
func unwrapUserCode(err error) error {
	var wrapper *UserCodeWrapperError
	if errors.As(err, &wrapper) && wrapper.Err != nil {
		return wrapper.Err
	}
	return err
}

// Handle applies the full §4.7 policy for one failed execution. retry is
// invoked (on the caller's goroutine, after the debounce sleep) only
// when the service reports the item is still retryable; the caller is
// expected to resubmit the item via the pool's force-enqueue path.
func (r *Reporter) Handle(ctx context.Context, computationID string, key []byte, workToken int64, err error, retry func()) {
	classify := unwrapUserCode(err)

	if IsKeyTokenInvalid(classify) {
		log.WithComponent("failure").Debug().
			Str("computation_id", computationID).
			Int64("work_token", workToken).
			Msg("key token invalid, dropping without retry")
		return
	}

	log.WithComponent("failure").Error().Err(err).
		Str("computation_id", computationID).
		Int64("work_token", workToken).
		Msg("execution failed")

	if r.last != nil {
		r.last.Set(&Record{ComputationID: computationID, Err: err, At: time.Now()})
	}

	report := buildReport(err)
	metrics.ExceptionsReportedTotal.WithLabelValues(computationID).Inc()
	failed, rpcErr := r.client.ReportStats(ctx, computationID, key, workToken, []workservice.ExceptionReport{report})
	if rpcErr != nil {
		// Reporting failures are swallowed; treat as "service says failed".
		log.WithComponent("failure").Warn().Err(rpcErr).Msg("reportStats RPC failed, abandoning item locally")
		return
	}

	if failed {
		return
	}

	metrics.RetriesTotal.Inc()
	time.Sleep(r.retryDelay)
	retry()
}

func buildReport(err error) workservice.ExceptionReport {
	rep := workservice.ExceptionReport{StackFrames: framesFor(err)}
	if next := errors.Unwrap(err); next != nil {
		child := buildReport(next)
		rep.Cause = &child
	}
	return rep
}

func framesFor(err error) []string {
	if st, ok := err.(StackTracer); ok {
		return st.StackFrames()
	}
	return []string{err.Error()}
}
