// Package metrics exposes price-fetch telemetry through Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"eve-marketscan/internal/engine"
)

const (
	namespace = "marketscan"
	subsystem = "fetch"
)

// FetchCollector records BulkFetcher activity. It implements engine.FetchObserver
// and owns its registry, so several collectors can coexist in tests.
type FetchCollector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	retriesTotal    prometheus.Counter
	droppedChunks   prometheus.Counter
}

var _ engine.FetchObserver = (*FetchCollector)(nil)

// NewFetchCollector creates a collector with all metrics registered.
func NewFetchCollector() *FetchCollector {
	c := &FetchCollector{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Price requests by outcome (ok, timeout, error)",
			},
			[]string{"outcome"},
		),
		requestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "request_duration_seconds",
				Help:      "Price request duration distribution",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
		),
		retriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "retries_total",
				Help:      "Chunk attempts after the first",
			},
		),
		droppedChunks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dropped_chunks_total",
				Help:      "Chunks that exhausted their attempts and contributed no items",
			},
		),
	}
	c.registry.MustRegister(c.requestsTotal, c.requestDuration, c.retriesTotal, c.droppedChunks)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *FetchCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *FetchCollector) ObserveRequest(outcome string, elapsed time.Duration) {
	c.requestsTotal.WithLabelValues(outcome).Inc()
	c.requestDuration.Observe(elapsed.Seconds())
}

func (c *FetchCollector) ObserveRetry() { c.retriesTotal.Inc() }

func (c *FetchCollector) ObserveDroppedChunk() { c.droppedChunks.Inc() }

// Summary is a point-in-time reading of the collector, for end-of-run logs.
type Summary struct {
	Requests      map[string]int
	Retries       int
	DroppedChunks int
	MeanLatency   time.Duration
}

// Summary gathers the registry into a Summary.
func (c *FetchCollector) Summary() (Summary, error) {
	s := Summary{Requests: make(map[string]int)}
	families, err := c.registry.Gather()
	if err != nil {
		return s, err
	}
	for _, mf := range families {
		switch mf.GetName() {
		case prometheus.BuildFQName(namespace, subsystem, "requests_total"):
			for _, m := range mf.GetMetric() {
				s.Requests[labelValue(m, "outcome")] = int(m.GetCounter().GetValue())
			}
		case prometheus.BuildFQName(namespace, subsystem, "retries_total"):
			s.Retries = int(firstCounter(mf))
		case prometheus.BuildFQName(namespace, subsystem, "dropped_chunks_total"):
			s.DroppedChunks = int(firstCounter(mf))
		case prometheus.BuildFQName(namespace, subsystem, "request_duration_seconds"):
			if ms := mf.GetMetric(); len(ms) > 0 {
				h := ms[0].GetHistogram()
				if n := h.GetSampleCount(); n > 0 {
					s.MeanLatency = time.Duration(h.GetSampleSum() / float64(n) * float64(time.Second))
				}
			}
		}
	}
	return s, nil
}

// Total returns the number of requests across all outcomes.
func (s Summary) Total() int {
	n := 0
	for _, v := range s.Requests {
		n += v
	}
	return n
}

func firstCounter(mf *dto.MetricFamily) float64 {
	if ms := mf.GetMetric(); len(ms) > 0 {
		return ms[0].GetCounter().GetValue()
	}
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
