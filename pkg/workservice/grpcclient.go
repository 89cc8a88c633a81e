package workservice

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const serviceName = "/windmill.WorkService/"

// withTraceID stamps ctx with a fresh correlation id under the
// "x-harness-trace-id" metadata key, so the service side can line up a
// client's GetWork/CommitWork/ReportStats calls in its own logs.
func withTraceID(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "x-harness-trace-id", uuid.NewString())
}

// grpcClient is the production Client: a single long-lived grpc.ClientConn
// to the work service, speaking the JSON codec registered in codec.go.
type grpcClient struct {
	conn *grpc.ClientConn
}

func newGRPCClient(cfg Config) (Client, error) {
	if cfg.HostPort == "" {
		return nil, fmt.Errorf("workservice: grpc stub requires HostPort (windmill.hostport)")
	}

	var creds credentials.TransportCredentials
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
	}

	conn, err := grpc.NewClient(cfg.HostPort,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodec{}.Name())),
	)
	if err != nil {
		return nil, fmt.Errorf("workservice: dial %s: %w", cfg.HostPort, err)
	}

	return &grpcClient{conn: conn}, nil
}

func (c *grpcClient) GetWork(ctx context.Context, clientID uint64, maxItems int) ([]ComputationWorkItems, error) {
	req := struct {
		ClientID uint64 `json:"client_id"`
		MaxItems int    `json:"max_items"`
	}{ClientID: clientID, MaxItems: maxItems}

	var resp struct {
		Work []ComputationWorkItems `json:"work"`
	}
	if err := c.conn.Invoke(withTraceID(ctx), serviceName+"GetWork", &req, &resp); err != nil {
		return nil, fmt.Errorf("workservice: GetWork: %w", err)
	}
	return resp.Work, nil
}

func (c *grpcClient) GetConfig(ctx context.Context, computationIDs []string) ([]ComputationDescriptor, error) {
	req := struct {
		ComputationIDs []string `json:"computation_ids"`
	}{ComputationIDs: computationIDs}

	var resp struct {
		CloudWorks []ComputationDescriptor `json:"cloud_works"`
	}
	if err := c.conn.Invoke(withTraceID(ctx), serviceName+"GetConfig", &req, &resp); err != nil {
		return nil, fmt.Errorf("workservice: GetConfig: %w", err)
	}
	return resp.CloudWorks, nil
}

func (c *grpcClient) CommitWork(ctx context.Context, req *CommitWorkRequest) error {
	var resp struct{}
	if err := c.conn.Invoke(withTraceID(ctx), serviceName+"CommitWork", req, &resp); err != nil {
		return fmt.Errorf("workservice: CommitWork: %w", err)
	}
	return nil
}

func (c *grpcClient) ReportStats(ctx context.Context, computationID string, key []byte, workToken int64, reports []ExceptionReport) (bool, error) {
	req := struct {
		ComputationID string            `json:"computation_id"`
		Key           []byte            `json:"key"`
		WorkToken     int64             `json:"work_token"`
		Reports       []ExceptionReport `json:"reports"`
	}{ComputationID: computationID, Key: key, WorkToken: workToken, Reports: reports}

	var resp struct {
		Failed bool `json:"failed"`
	}
	if err := c.conn.Invoke(withTraceID(ctx), serviceName+"ReportStats", &req, &resp); err != nil {
		return false, fmt.Errorf("workservice: ReportStats: %w", err)
	}
	return resp.Failed, nil
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}
