// Package status implements the harness's diagnostic HTTP surface (§6):
// a liveness check, a goroutine dump standing in for a thread dump, and
// an HTML dashboard of running state, pool/queue occupancy, memory, the
// last exception, and registered computation descriptors.
package status

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"runtime/pprof"
	"sort"
	"sync/atomic"

	"github.com/cuemby/streamharness/pkg/failure"
	"github.com/cuemby/streamharness/pkg/memgate"
	"github.com/cuemby/streamharness/pkg/metrics"
	"github.com/cuemby/streamharness/pkg/pool"
	"github.com/cuemby/streamharness/pkg/registry"
)

// Server serves the status HTTP surface on its own listener,
// independent of the hot path (§5: "one status actor... independent of
// the hot path").
type Server struct {
	clientID uint64
	running  *atomic.Bool
	pool     *pool.Pool
	registry *registry.Registry
	gate     *memgate.Gate
	last     *failure.LastException

	httpServer *http.Server
}

// New creates a status Server bound to addr (e.g. "127.0.0.1:8081").
func New(addr string, clientID uint64, running *atomic.Bool, p *pool.Pool, reg *registry.Registry, gate *memgate.Gate, last *failure.LastException) *Server {
	s := &Server{
		clientID: clientID,
		running:  running,
		pool:     p,
		registry: reg,
		gate:     gate,
		last:     last,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/threadz", s.handleThreadz)
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/", s.handleDashboard)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins serving in the background. Errors after a successful
// start (including the expected http.ErrServerClosed on Stop) are not
// reported here; callers that need them should use ListenAndServe
// directly.
func (s *Server) Start() {
	go func() { _ = s.httpServer.ListenAndServe() }()
}

// Stop gracefully shuts the status server down, the first step of the
// harness shutdown sequence (§5).
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "ok")
}

// handleThreadz dumps every goroutine and its stack, the Go analogue of
// a JVM thread dump.
func (s *Server) handleThreadz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_ = pprof.Lookup("goroutine").WriteTo(w, 2)
}

type dashboardData struct {
	Running      bool
	ClientID     uint64
	PoolStats    pool.Stats
	MemUsedMB    uint64
	MemTotalMB   uint64
	MemMaxMB     uint64
	LastErr      string
	LastErrComp  string
	Computations []computationRow
}

type computationRow struct {
	ID          string
	OutputDepth int
	CacheDepth  int
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head><title>streamharness status</title></head>
<body>
<h1>streamharness</h1>
<p>running: {{.Running}} &mdash; client id: {{.ClientID}}</p>
<h2>pool</h2>
<p>max workers: {{.PoolStats.MaxWorkers}}, active: {{.PoolStats.Active}}, queue depth: {{.PoolStats.QueueDepth}}</p>
<h2>memory</h2>
<p>used: {{.MemUsedMB}} MiB / total: {{.MemTotalMB}} MiB / max: {{.MemMaxMB}} MiB</p>
<h2>last exception</h2>
{{if .LastErr}}<p>computation {{.LastErrComp}}: {{.LastErr}}</p>{{else}}<p>none</p>{{end}}
<h2>computations</h2>
<table border="1" cellpadding="4">
<tr><th>id</th><th>output queue depth</th><th>idle executor cache depth</th></tr>
{{range .Computations}}<tr><td>{{.ID}}</td><td>{{.OutputDepth}}</td><td>{{.CacheDepth}}</td></tr>
{{end}}
</table>
</body>
</html>`))

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	used, total, max := s.gate.Usage()
	data := dashboardData{
		Running:    s.running.Load(),
		ClientID:   s.clientID,
		PoolStats:  s.pool.Stats(),
		MemUsedMB:  used / (1 << 20),
		MemTotalMB: total / (1 << 20),
		MemMaxMB:   max / (1 << 20),
	}

	if rec := s.last.Get(); rec != nil {
		data.LastErr = rec.Err.Error()
		data.LastErrComp = rec.ComputationID
	}

	for _, c := range s.registry.All() {
		data.Computations = append(data.Computations, computationRow{
			ID:          c.Descriptor.ID,
			OutputDepth: c.Output.Len(),
			CacheDepth:  c.Executors.Depth(),
		})
	}
	sort.Slice(data.Computations, func(i, j int) bool { return data.Computations[i].ID < data.Computations[j].ID })

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = dashboardTemplate.Execute(w, data)
}
