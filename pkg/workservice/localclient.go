package workservice

import (
	"context"
	"sync"
)

// LocalClient is an in-memory Client used by tests and standalone runs —
// the "local mock" the stub-class abstraction in §6 is meant to allow
// swapping in. Leases, descriptors and reported failures are all driven
// by direct method calls instead of a network round trip.
type LocalClient struct {
	mu          sync.Mutex
	pending     []ComputationWorkItems
	descriptors map[string]ComputationDescriptor
	commits     []*CommitWorkRequest
	reports     []reportedFailure
	failNext    bool
}

type reportedFailure struct {
	ComputationID string
	Key           []byte
	WorkToken     int64
	Reports       []ExceptionReport
}

// NewLocalClient creates an empty LocalClient.
func NewLocalClient() *LocalClient {
	return &LocalClient{descriptors: make(map[string]ComputationDescriptor)}
}

// EnqueueLease makes a batch available to the next GetWork call.
func (c *LocalClient) EnqueueLease(batch ComputationWorkItems) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, batch)
}

// RegisterDescriptor makes a descriptor available to GetConfig.
func (c *LocalClient) RegisterDescriptor(d ComputationDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptors[d.ID] = d
}

// FailNextReport makes the next ReportStats call return failed=true.
func (c *LocalClient) FailNextReport(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = v
}

// Commits returns every commit request sent so far, for assertions.
func (c *LocalClient) Commits() []*CommitWorkRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*CommitWorkRequest, len(c.commits))
	copy(out, c.commits)
	return out
}

// Reports returns every ReportStats call received so far, for assertions.
func (c *LocalClient) Reports() []reportedFailure {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]reportedFailure, len(c.reports))
	copy(out, c.reports)
	return out
}

func (c *LocalClient) GetWork(ctx context.Context, clientID uint64, maxItems int) ([]ComputationWorkItems, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil, nil
	}
	out := c.pending
	c.pending = nil
	return out, nil
}

func (c *LocalClient) GetConfig(ctx context.Context, computationIDs []string) ([]ComputationDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ComputationDescriptor
	for _, id := range computationIDs {
		if d, ok := c.descriptors[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *LocalClient) CommitWork(ctx context.Context, req *CommitWorkRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commits = append(c.commits, req)
	return nil
}

func (c *LocalClient) ReportStats(ctx context.Context, computationID string, key []byte, workToken int64, reports []ExceptionReport) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, reportedFailure{
		ComputationID: computationID,
		Key:           key,
		WorkToken:     workToken,
		Reports:       reports,
	})
	failed := c.failNext
	c.failNext = false
	return failed, nil
}

func (c *LocalClient) Close() error { return nil }
