// Package metrics implements the controller's side observability
// surface: a Prometheus registry plus a gorilla/mux router serving
// GET /metrics and GET /status. It never mutates dispatch state;
// every handler only reads the Dispatcher's already-synchronized
// snapshot methods.
package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/barrosov/crackfleet/internal/dispatch"
)

// Metrics holds the Prometheus collectors the controller exposes.
type Metrics struct {
	candidatesTested prometheus.Counter
	chunksAssigned   prometheus.Counter
	workersConnected prometheus.Gauge
	found            prometheus.Gauge
}

// New registers a fresh collector set against reg. Tests and
// cmd/controller both pass their own prometheus.NewRegistry(), which
// Router then serves on /metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		candidatesTested: factory.NewCounter(prometheus.CounterOpts{
			Name: "crackfleet_candidates_tested_total",
			Help: "Total candidates tested across the fleet, accumulated from worker heartbeats.",
		}),
		chunksAssigned: factory.NewCounter(prometheus.CounterOpts{
			Name: "crackfleet_chunks_assigned_total",
			Help: "Total chunks granted by the dispatcher cursor.",
		}),
		workersConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crackfleet_workers_connected",
			Help: "Number of currently connected worker sockets.",
		}),
		found: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crackfleet_found",
			Help: "1 once a password has been found, 0 otherwise.",
		}),
	}
}

// statusSnapshot is the JSON body served by GET /status.
type statusSnapshot struct {
	CandidatesTested  uint64 `json:"candidates_tested"`
	Cursor            uint64 `json:"cursor"`
	TotalCandidates   uint64 `json:"total_candidates"`
	ConnectedWorkers  int    `json:"connected_workers"`
	RegisteredWorkers int    `json:"registered_workers"`
	Found             bool   `json:"found"`
	Password          string `json:"password,omitempty"`
}

// Router builds the gorilla/mux router serving /metrics and /status.
// It polls d on every request rather than subscribing to changes; the
// dispatcher's own mutex already makes that cheap and consistent.
func Router(m *Metrics, d *dispatch.Dispatcher, totalCandidates uint64, reg *prometheus.Registry) *mux.Router {
	r := mux.NewRouter()
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	r.HandleFunc("/metrics", func(w http.ResponseWriter, req *http.Request) {
		m.refresh(d)
		metricsHandler.ServeHTTP(w, req)
	}).Methods(http.MethodGet)
	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		m.refresh(d)

		connected, registered := d.Counts()
		res, found := d.Found()
		snap := statusSnapshot{
			CandidatesTested:  d.CandidatesTested(),
			Cursor:            d.Cursor(),
			TotalCandidates:   totalCandidates,
			ConnectedWorkers:  connected,
			RegisteredWorkers: registered,
			Found:             found,
		}
		if found {
			snap.Password = res.Password
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}).Methods(http.MethodGet)
	return r
}

// refresh syncs the gauges from the dispatcher's current snapshot. The
// counters are not touched here: controllersrv increments them at the
// moment each chunk grant or heartbeat happens.
func (m *Metrics) refresh(d *dispatch.Dispatcher) {
	connected, _ := d.Counts()
	m.workersConnected.Set(float64(connected))

	if _, found := d.Found(); found {
		m.found.Set(1)
	} else {
		m.found.Set(0)
	}
}

// RecordChunkAssigned increments the chunks-assigned counter; called by
// controllersrv each time the dispatcher grants a chunk.
func (m *Metrics) RecordChunkAssigned() {
	m.chunksAssigned.Inc()
}

// RecordCandidatesTested adds delta to the candidates-tested counter;
// called by controllersrv on each heartbeat response.
func (m *Metrics) RecordCandidatesTested(delta uint64) {
	m.candidatesTested.Add(float64(delta))
}
