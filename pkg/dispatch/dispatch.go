// Package dispatch implements the dispatch loop (C4): the memory gate,
// lease backoff, and per-item task submission that drive the harness's
// single low-priority dispatch goroutine.
package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cuemby/streamharness/pkg/exec"
	"github.com/cuemby/streamharness/pkg/log"
	"github.com/cuemby/streamharness/pkg/memgate"
	"github.com/cuemby/streamharness/pkg/metrics"
	"github.com/cuemby/streamharness/pkg/pool"
	"github.com/cuemby/streamharness/pkg/registry"
	"github.com/cuemby/streamharness/pkg/workservice"
	"github.com/rs/zerolog"
)

// Config configures a Loop's tunables, mirroring §6's design defaults.
type Config struct {
	MaxItemsPerLease     int
	BackoffInitial       time.Duration
	BackoffMax           time.Duration
	PushbackRatio        float64
	PushbackPollInterval time.Duration
	PushbackLogThrottle  time.Duration
	LeaseTimeout         time.Duration
}

// DefaultConfig returns the design's default tunables.
func DefaultConfig() Config {
	return Config{
		MaxItemsPerLease:     100,
		BackoffInitial:       time.Millisecond,
		BackoffMax:           time.Second,
		PushbackRatio:        0.9,
		PushbackPollInterval: 10 * time.Millisecond,
		PushbackLogThrottle:  60 * time.Second,
		LeaseTimeout:         30 * time.Second,
	}
}

// Loop is the C4 component.
type Loop struct {
	client   workservice.Client
	registry *registry.Registry
	pool     *pool.Pool
	executor *exec.Executor
	gate     *memgate.Gate
	clientID uint64
	cfg      Config
	logger   zerolog.Logger

	stopCh chan struct{}
	done   chan struct{}

	lastPushbackLogNanos atomic.Int64
}

// New wires the C4 collaborators together.
func New(client workservice.Client, reg *registry.Registry, p *pool.Pool, executor *exec.Executor, gate *memgate.Gate, clientID uint64, cfg Config) *Loop {
	return &Loop{
		client:   client,
		registry: reg,
		pool:     p,
		executor: executor,
		gate:     gate,
		clientID: clientID,
		cfg:      cfg,
		logger:   log.WithComponent("dispatch"),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the dispatch loop on a dedicated goroutine.
func (l *Loop) Start() {
	go l.run()
}

// Stop signals the loop to exit.
func (l *Loop) Stop() {
	close(l.stopCh)
}

// Wait blocks until the loop goroutine has exited.
func (l *Loop) Wait() {
	<-l.done
}

func (l *Loop) stopped() bool {
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}

func (l *Loop) run() {
	defer close(l.done)

	backoff := l.cfg.BackoffInitial

	for !l.stopped() {
		if l.awaitMemory() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.cfg.LeaseTimeout)
		batches, err := l.client.GetWork(ctx, l.clientID, l.cfg.MaxItemsPerLease)
		cancel()

		if err != nil {
			metrics.DispatchGetWorkTotal.WithLabelValues("error").Inc()
			l.logger.Error().Err(err).Msg("getWork failed")
			if l.sleepOrStop(backoff) {
				return
			}
			backoff = nextBackoff(backoff, l.cfg.BackoffMax)
			continue
		}

		if len(batches) == 0 {
			metrics.DispatchGetWorkTotal.WithLabelValues("empty").Inc()
			if l.sleepOrStop(backoff) {
				return
			}
			backoff = nextBackoff(backoff, l.cfg.BackoffMax)
			continue
		}

		metrics.DispatchGetWorkTotal.WithLabelValues("ok").Inc()
		backoff = l.cfg.BackoffInitial
		for _, batch := range batches {
			l.dispatchBatch(batch)
		}
	}
}

// awaitMemory blocks while the gate is engaged, returning true if the
// loop was asked to stop while waiting.
func (l *Loop) awaitMemory() bool {
	used, total, max := l.gate.Usage()
	metrics.MemoryUsedBytes.Set(float64(used))
	metrics.MemoryTotalBytes.Set(float64(total))
	metrics.MemoryCeilingBytes.Set(float64(max))

	engaged := l.gate.Engaged()
	defer func() {
		v := 0.0
		if engaged {
			v = 1.0
		}
		metrics.DispatchPushbackEngaged.Set(v)
	}()

	for engaged {
		l.maybeLogPushback()
		l.gate.Hint()
		if l.sleepOrStop(l.cfg.PushbackPollInterval) {
			return true
		}
		engaged = l.gate.Engaged()
	}
	return false
}

func (l *Loop) maybeLogPushback() {
	now := time.Now().UnixNano()
	last := l.lastPushbackLogNanos.Load()
	if time.Duration(now-last) < l.cfg.PushbackLogThrottle {
		return
	}
	if !l.lastPushbackLogNanos.CompareAndSwap(last, now) {
		return
	}
	used, total, max := l.gate.Usage()
	l.logger.Warn().
		Uint64("used_bytes", used).
		Uint64("total_bytes", total).
		Uint64("max_bytes", max).
		Msg("memory pushback: deferring new leases")
}

func (l *Loop) sleepOrStop(d time.Duration) bool {
	select {
	case <-time.After(d):
		return false
	case <-l.stopCh:
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max || next <= 0 {
		return max
	}
	return next
}

// dispatchBatch resolves the batch's computation (fetching its
// descriptor lazily if unseen) and submits one task per work item.
func (l *Loop) dispatchBatch(batch workservice.ComputationWorkItems) {
	comp, ok := l.registry.Lookup(batch.ComputationID)
	if !ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		descs, err := l.client.GetConfig(ctx, []string{batch.ComputationID})
		cancel()
		if err != nil || len(descs) == 0 {
			l.logger.Warn().
				Err(err).
				Str("computation_id", batch.ComputationID).
				Msg("unable to fetch descriptor for unknown computation, dropping batch")
			return
		}
		for _, d := range descs {
			l.registry.Register(d)
		}
		comp, ok = l.registry.Lookup(batch.ComputationID)
		if !ok {
			l.logger.Warn().
				Str("computation_id", batch.ComputationID).
				Msg("descriptor fetch returned results but not for the requested id, dropping batch")
			return
		}
	}

	watermarkMillis := batch.InputDataWatermarkMicros / 1000

	for _, wi := range batch.WorkItems {
		item := exec.Item{
			ComputationID:        comp.Descriptor.ID,
			InputWatermarkMillis: watermarkMillis,
			WorkItem:             wi,
		}
		if err := l.pool.Execute(func() { l.executor.Run(context.Background(), item) }); err != nil {
			l.logger.Debug().
				Str("computation_id", comp.Descriptor.ID).
				Int64("work_token", wi.WorkToken).
				Msg("pool admission queue full, dropping item; lease will expire")
		}
	}
}
