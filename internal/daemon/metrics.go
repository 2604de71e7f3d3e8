package daemon

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// metrics holds the tick loop's Prometheus instruments. Kept on the Daemon
// rather than package-level so multiple daemons in one process (as in
// tests) don't collide on the default registry.
type metrics struct {
	registry    *prometheus.Registry
	ticksTotal  prometheus.Counter
	agentsAlive prometheus.Gauge
	deadAgents  prometheus.Counter
	readyTasks  prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &metrics{
		registry: reg,
		ticksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "workgraphd_ticks_total",
			Help: "Total number of scheduling ticks run.",
		}),
		agentsAlive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "workgraphd_agents_alive",
			Help: "Number of agents currently considered alive in the registry.",
		}),
		deadAgents: factory.NewCounter(prometheus.CounterOpts{
			Name: "workgraphd_dead_agents_total",
			Help: "Total number of agents marked dead (process gone without artifacts, or heartbeat timeout).",
		}),
		readyTasks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "workgraphd_ready_tasks",
			Help: "Number of tasks in the ready set as of the last tick.",
		}),
	}
}

// serve starts a `/metrics` HTTP listener on bind if bind is non-empty. It
// is strictly additive observability — the tick loop never waits on it.
// ListenAndServe runs in its own goroutine and its error, a bind failure
// included, is discarded: it is neither logged nor fatal.
func (m *metrics) serve(ctx context.Context, bind string) *http.Server {
	if bind == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: bind, Handler: mux}
	go srv.ListenAndServe() //nolint:errcheck
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	return srv
}

var tracer = otel.Tracer("github.com/antigravity-dev/workgraphd/internal/daemon")

// startTickSpan opens a span around one tick; callers defer span.End().
func startTickSpan(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "daemon.tick")
}

// startSpawnSpan opens a span around one task spawn.
func startSpawnSpan(ctx context.Context, taskID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "daemon.spawn", trace.WithAttributes(attribute.String("task_id", taskID)))
}
