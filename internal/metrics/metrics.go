// Package metrics exposes Prometheus collectors for scdx runs.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups every metric scdx exports.
type Collectors struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	CrawlsTotal     *prometheus.CounterVec
	CrawlsSelected  prometheus.Gauge
	CrawlsCompleted prometheus.Gauge
	RecordsTotal    prometheus.Counter
	BytesTotal      prometheus.Counter
	RetriesTotal    *prometheus.CounterVec
	RetryWait       prometheus.Histogram
	CrawlDuration   *prometheus.HistogramVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewRegistry returns a registry carrying the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewCollectors creates and registers the scdx collectors.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collectors{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scdx_runs_total",
			Help: "Runs finished, partitioned by result.",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scdx_run_duration_seconds",
			Help:    "Wall time per finished run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		CrawlsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scdx_crawls_total",
			Help: "Crawls processed, partitioned by outcome.",
		}, []string{"outcome"}),
		CrawlsSelected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scdx_crawls_selected",
			Help: "Crawls selected for the current run.",
		}),
		CrawlsCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scdx_crawls_completed",
			Help: "Crawls that succeeded so far in the current run.",
		}),
		RecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scdx_records_written_total",
			Help: "Index records appended to the output file.",
		}),
		BytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scdx_output_bytes_total",
			Help: "Bytes appended to the output file.",
		}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scdx_retries_total",
			Help: "Query retries, partitioned by HTTP status code.",
		}, []string{"code"}),
		RetryWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scdx_retry_wait_seconds",
			Help:    "Wait applied before each retry.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
		CrawlDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scdx_crawl_duration_seconds",
			Help:    "Time spent per crawl including retries, partitioned by outcome.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 180},
		}, []string{"outcome"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scdx_http_requests_total",
			Help: "Status server requests, labeled by method and code.",
		}, []string{"method", "code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scdx_http_request_duration_seconds",
			Help:    "Status server request latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method", "route"}),
	}
	for _, collector := range []prometheus.Collector{
		c.RunsTotal,
		c.RunDuration,
		c.CrawlsTotal,
		c.CrawlsSelected,
		c.CrawlsCompleted,
		c.RecordsTotal,
		c.BytesTotal,
		c.RetriesTotal,
		c.RetryWait,
		c.CrawlDuration,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return c, nil
}

// ObserveHTTPRequest records one status server request.
func (c *Collectors) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	c.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns an http.Handler exposing the gatherer in the text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the gatherer to path for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
