// Package commit implements the commit aggregator loop (C6): draining
// per-computation output queues into a single batched commit request
// bounded by a byte budget, and flushing it to the work service.
package commit

import (
	"context"
	"sort"
	"time"

	"github.com/cuemby/streamharness/pkg/log"
	"github.com/cuemby/streamharness/pkg/metrics"
	"github.com/cuemby/streamharness/pkg/registry"
	"github.com/cuemby/streamharness/pkg/workservice"
)

// Config configures an Aggregator.
type Config struct {
	MaxCommitBytes int
	IdleSleep      time.Duration
}

// DefaultConfig mirrors the design defaults: 32 MiB budget, 100ms idle sleep.
func DefaultConfig() Config {
	return Config{MaxCommitBytes: 32 << 20, IdleSleep: 100 * time.Millisecond}
}

// Aggregator is the C6 component.
type Aggregator struct {
	reg    *registry.Registry
	client workservice.Client
	cfg    Config
	stopCh chan struct{}
	done   chan struct{}
}

// New creates an Aggregator.
func New(reg *registry.Registry, client workservice.Client, cfg Config) *Aggregator {
	return &Aggregator{reg: reg, client: client, cfg: cfg, stopCh: make(chan struct{}), done: make(chan struct{})}
}

// Start runs the aggregator loop on a dedicated goroutine.
func (a *Aggregator) Start() {
	go a.run()
}

// Stop signals the loop to exit; it does not wait for the goroutine to
// finish, mirroring the running-flag discipline of §5 (the harness joins
// the commit thread separately during shutdown).
func (a *Aggregator) Stop() {
	close(a.stopCh)
}

// Wait blocks until the loop goroutine has exited.
func (a *Aggregator) Wait() {
	<-a.done
}

func (a *Aggregator) run() {
	defer close(a.done)
	logger := log.WithComponent("aggregator")

	for {
		select {
		case <-a.stopCh:
			return
		default:
		}

		budget := a.cfg.MaxCommitBytes
		var top workservice.CommitWorkRequest

		for _, comp := range a.stableComputations() {
			var sub []*workservice.WorkItemCommitRequest
			for budget > 0 {
				item, ok := comp.Output.Pop()
				if !ok {
					break
				}
				sub = append(sub, item)
				budget -= item.SerializedSize()
			}
			if len(sub) > 0 {
				top.Computations = append(top.Computations, workservice.ComputationCommitRequest{
					ComputationID: comp.Descriptor.ID,
					Requests:      sub,
				})
			}
			metrics.OutputQueueDepth.WithLabelValues(comp.Descriptor.ID).Set(float64(comp.Output.Len()))
		}

		if len(top.Computations) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := a.client.CommitWork(ctx, &top)
			cancel()
			if err != nil {
				metrics.CommitRequestsTotal.WithLabelValues("error").Inc()
				logger.Error().Err(err).Msg("commitWork failed")
			} else {
				metrics.CommitRequestsTotal.WithLabelValues("ok").Inc()
				metrics.CommitBytesTotal.Add(float64(a.cfg.MaxCommitBytes - budget))
			}
		}

		if budget > 0 {
			select {
			case <-time.After(a.cfg.IdleSleep):
			case <-a.stopCh:
				return
			}
		}
	}
}

// stableComputations returns the registered computations in a
// deterministic (id-sorted) order. The order across computations during
// batching is unspecified by the design; sorting by id keeps each
// iteration's batching choice reproducible for debugging and tests.
func (a *Aggregator) stableComputations() []*registry.Computation {
	all := a.reg.All()
	sort.Slice(all, func(i, j int) bool { return all[i].Descriptor.ID < all[j].Descriptor.ID })
	return all
}
