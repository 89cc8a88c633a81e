// Package harness wires the seven components (C1-C7) together into one
// running process and implements the exact startup and shutdown
// sequencing §5 and §6 describe.
package harness

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/streamharness/pkg/commit"
	"github.com/cuemby/streamharness/pkg/config"
	"github.com/cuemby/streamharness/pkg/dispatch"
	"github.com/cuemby/streamharness/pkg/exec"
	"github.com/cuemby/streamharness/pkg/executor"
	"github.com/cuemby/streamharness/pkg/failure"
	"github.com/cuemby/streamharness/pkg/log"
	"github.com/cuemby/streamharness/pkg/memgate"
	"github.com/cuemby/streamharness/pkg/metrics"
	"github.com/cuemby/streamharness/pkg/pool"
	"github.com/cuemby/streamharness/pkg/registry"
	"github.com/cuemby/streamharness/pkg/status"
	"github.com/cuemby/streamharness/pkg/workservice"
)

// Harness bundles C1-C7 plus the status server into one process.
type Harness struct {
	clientID uint64
	running  atomic.Bool

	client   workservice.Client
	registry *registry.Registry
	pool     *pool.Pool
	gate     *memgate.Gate
	last     *failure.LastException
	reporter *failure.Reporter
	execr    *exec.Executor
	dispatch *dispatch.Loop
	agg      *commit.Aggregator
	statusSv *status.Server

	shutdownGrace time.Duration
}

// New builds a Harness from cfg, the executor factory (the injection
// point for the external user-pipeline engine, §1), the state fetcher
// collaborator, and the computation descriptors to pre-register at
// startup (§3).
func New(cfg *config.Config, factory executor.Factory, fetcher executor.StateFetcher, startupDescriptors []workservice.ComputationDescriptor) (*Harness, error) {
	client, err := workservice.New(workservice.Config{
		StubClass: cfg.StubClass,
		HostPort:  cfg.HostPort,
		Insecure:  cfg.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("harness: building work service client: %w", err)
	}

	reg := registry.New()
	for _, d := range startupDescriptors {
		reg.Register(d)
	}

	p := pool.New(pool.Config{MaxWorkers: cfg.MaxWorkers, MaxQueue: cfg.MaxQueue})
	gate := memgate.New(cfg.PushbackRatio, cfg.MemoryCeilingBytes)
	last := &failure.LastException{}
	reporter := failure.NewReporter(client, last, cfg.RetryDebounce)
	execr := exec.NewExecutor(reg, factory, fetcher, reporter, p)

	clientID, err := randomClientID()
	if err != nil {
		return nil, fmt.Errorf("harness: generating client id: %w", err)
	}

	dispatchLoop := dispatch.New(client, reg, p, execr, gate, clientID, dispatch.Config{
		MaxItemsPerLease:     100,
		BackoffInitial:       cfg.LeaseBackoffInitial,
		BackoffMax:           cfg.LeaseBackoffMax,
		PushbackRatio:        cfg.PushbackRatio,
		PushbackPollInterval: cfg.PushbackPollInterval,
		PushbackLogThrottle:  cfg.PushbackLogThrottle,
		LeaseTimeout:         30 * time.Second,
	})

	agg := commit.New(reg, client, commit.Config{
		MaxCommitBytes: cfg.MaxCommitBytes,
		IdleSleep:      cfg.CommitIdleSleep,
	})

	h := &Harness{
		clientID:      clientID,
		client:        client,
		registry:      reg,
		pool:          p,
		gate:          gate,
		last:          last,
		reporter:      reporter,
		execr:         execr,
		dispatch:      dispatchLoop,
		agg:           agg,
		shutdownGrace: cfg.ShutdownGrace,
	}

	statusAddr := fmt.Sprintf(":%d", cfg.StatusPort)
	h.statusSv = status.New(statusAddr, clientID, &h.running, p, reg, gate, last)

	return h, nil
}

// ClientID returns the 64-bit client id generated for this process.
func (h *Harness) ClientID() uint64 { return h.clientID }

// Start begins all four actor classes: the status server, the dispatch
// loop, and the commit aggregator. Execution actors are spawned lazily
// by the pool as the dispatch loop submits work.
func (h *Harness) Start() {
	h.running.Store(true)
	h.statusSv.Start()
	h.dispatch.Start()
	h.agg.Start()

	metrics.RegisterComponent("workservice", true, "")
	metrics.RegisterComponent("dispatch", true, "")
	metrics.RegisterComponent("commit", true, "")

	log.WithComponent("harness").Info().Uint64("client_id", h.clientID).Msg("harness started")
}

// Stop performs the exact shutdown sequence of §5: stop the status
// server, clear the running flag, join the dispatch thread, drain the
// pool with a grace period (a hard error if exceeded), close idle
// executors across every computation, then join the commit thread.
func (h *Harness) Stop(ctx context.Context) error {
	logger := log.WithComponent("harness")

	if err := h.statusSv.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("status server shutdown error")
	}

	h.running.Store(false)

	h.dispatch.Stop()
	h.dispatch.Wait()
	metrics.UpdateComponent("dispatch", false, "stopped")

	if err := h.pool.Shutdown(h.shutdownGrace); err != nil {
		return fmt.Errorf("harness: %w", err)
	}

	if err := h.registry.DrainAndCloseAll(); err != nil {
		logger.Warn().Err(err).Msg("error closing idle executors during shutdown")
	}

	h.agg.Stop()
	h.agg.Wait()
	metrics.UpdateComponent("commit", false, "stopped")

	if err := h.client.Close(); err != nil {
		logger.Warn().Err(err).Msg("error closing work service client")
	}
	metrics.UpdateComponent("workservice", false, "closed")

	logger.Info().Msg("harness stopped")
	return nil
}

// randomClientID derives the 64-bit random client id (§3) from the
// high-entropy bytes of a fresh UUID, rather than reimplementing a CSPRNG
// seed path the rest of the codebase already depends on.
func randomClientID() (uint64, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return 0, err
	}
	b := id[:]
	return binary.BigEndian.Uint64(b[:8]), nil
}
