package workservice

import (
	"context"
	"fmt"
)

// Client is the harness's view of the remote work-coordination service.
// The method set mirrors §6 of the design: getWork, getConfig,
// commitWork and reportStats. Concrete implementations own the wire
// format and transport; the harness only depends on this interface.
type Client interface {
	// GetWork leases up to maxItems work items for clientID.
	GetWork(ctx context.Context, clientID uint64, maxItems int) ([]ComputationWorkItems, error)
	// GetConfig fetches descriptors for the given computation ids.
	GetConfig(ctx context.Context, computationIDs []string) ([]ComputationDescriptor, error)
	// CommitWork sends a batched commit request.
	CommitWork(ctx context.Context, req *CommitWorkRequest) error
	// ReportStats reports a failure for (computationID, key, workToken)
	// and returns whether the service considers the item terminally
	// failed (true) or still retryable locally (false).
	ReportStats(ctx context.Context, computationID string, key []byte, workToken int64, reports []ExceptionReport) (failed bool, err error)
	// Close releases any underlying connection.
	Close() error
}

// Config selects and configures a Client implementation at startup. This
// stands in for the reflective "windmill.serverclassname" property
// lookup of the system being replaced: a string tag resolved through a
// constructor table, per the dynamic-executor-factory design note.
type Config struct {
	// StubClass names the concrete Client implementation, e.g. "grpc" or
	// "local". Defaults to "grpc".
	StubClass string
	// HostPort is the work service's network address (windmill.hostport).
	// Required by the "grpc" stub.
	HostPort string
	// Insecure disables transport security (for local/dev use).
	Insecure bool
}

// constructors maps a stub class tag to its Client factory. New concrete
// implementations register themselves here instead of being looked up by
// reflection.
var constructors = map[string]func(Config) (Client, error){
	"grpc":  newGRPCClient,
	"local": func(Config) (Client, error) { return NewLocalClient(), nil },
}

// New builds a Client per cfg.StubClass.
func New(cfg Config) (Client, error) {
	stub := cfg.StubClass
	if stub == "" {
		stub = "grpc"
	}
	ctor, ok := constructors[stub]
	if !ok {
		return nil, fmt.Errorf("workservice: unknown stub class %q", stub)
	}
	return ctor(cfg)
}
