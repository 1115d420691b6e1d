// Package metrics exposes the agent's Prometheus counters and gauges:
// commands executed, chunks served, paging requests, timeouts, and the
// number of commands currently parked in the output store.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Agent holds the counters the agent engine updates as it serves
// commands and pages chunks.
type Agent struct {
	CommandsExecuted prometheus.Counter
	CommandTimeouts  prometheus.Counter
	ChunksServed     prometheus.Counter
	PagingRequests   prometheus.Counter
	Overflows        prometheus.Counter
	StoreInFlight    prometheus.GaugeFunc
}

// NewAgent registers and returns the agent metric set against reg.
// storeLen is polled on scrape to report StoreInFlight.
func NewAgent(reg prometheus.Registerer, storeLen func() int) *Agent {
	factory := promauto.With(reg)
	return &Agent{
		CommandsExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "meshc2_agent_commands_executed_total",
			Help: "Commands executed by the shell executor, excluding session subcommands.",
		}),
		CommandTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "meshc2_agent_command_timeouts_total",
			Help: "Commands killed after exceeding the execution timeout.",
		}),
		ChunksServed: factory.NewCounter(prometheus.CounterOpts{
			Name: "meshc2_agent_chunks_served_total",
			Help: "Chunk frames sent in response to paging requests, plus single-chunk replies.",
		}),
		PagingRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "meshc2_agent_paging_requests_total",
			Help: "Inbound `more <id> <i>` requests handled.",
		}),
		Overflows: factory.NewCounter(prometheus.CounterOpts{
			Name: "meshc2_agent_overflow_total",
			Help: "Commands whose output could not be chunked at the configured MAX_PAYLOAD.",
		}),
		StoreInFlight: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "meshc2_agent_store_inflight",
			Help: "Commands currently holding parked chunks awaiting paging.",
		}, func() float64 { return float64(storeLen()) }),
	}
}

// Serve starts a blocking HTTP server exposing /metrics on addr. Callers
// typically run this in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
