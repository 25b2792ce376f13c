package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leozw/zone-health/internal/core"
)

// Collector owns the service's metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	checksByStatus     *prometheus.GaugeVec
	checkUp            *prometheus.GaugeVec
	checkRunsTotal     *prometheus.CounterVec
	checkDuration      *prometheus.HistogramVec
	lastCheckTimestamp *prometheus.GaugeVec
	batchDuration      prometheus.Histogram
	checking           prometheus.Gauge

	deploymentPolls  *prometheus.CounterVec
	reachableHosts   prometheus.Gauge
	deploymentServer *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		checksByStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zonehealth_checks",
				Help: "Number of checks per status",
			},
			[]string{"status"},
		),

		checkUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zonehealth_check_up",
				Help: "Whether the last run of the check was healthy (1) or not (0)",
			},
			[]string{"check_id", "check_name"},
		),

		checkRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonehealth_check_runs_total",
				Help: "Total number of check executions",
			},
			[]string{"check_id", "check_name", "status"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zonehealth_check_duration_seconds",
				Help:    "Duration of check executions in seconds",
				Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"check_id", "check_name"},
		),

		lastCheckTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zonehealth_check_last_run_timestamp_seconds",
				Help: "Unix time of the last check execution",
			},
			[]string{"check_id"},
		),

		batchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zonehealth_batch_duration_seconds",
				Help:    "Duration of full runs of every check",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		checking: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "zonehealth_checking",
				Help: "Whether a full run is in progress",
			},
		),

		deploymentPolls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonehealth_deployment_polls_total",
				Help: "Zone report fetches by result",
			},
			[]string{"result"},
		),

		reachableHosts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "zonehealth_reachable_hosts",
				Help: "Number of zone hosts that accepted a connection",
			},
		),

		deploymentServer: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zonehealth_server_info",
				Help: "Servers reported by the zone, always 1",
			},
			[]string{"zone", "hostname", "role", "version"},
		),

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonehealth_http_requests_total",
				Help: "HTTP requests served by the API",
			},
			[]string{"method", "route", "code"},
		),

		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zonehealth_http_request_duration_seconds",
				Help:    "Latency of API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveRun records one check execution.
func (c *Collector) ObserveRun(def core.Definition, out core.Outcome, took time.Duration) {
	up := 0.0
	if out.Status == core.StatusHealthy {
		up = 1
	}
	c.checkUp.WithLabelValues(def.ID, def.Name).Set(up)
	c.checkRunsTotal.WithLabelValues(def.ID, def.Name, string(out.Status)).Inc()
	c.checkDuration.WithLabelValues(def.ID, def.Name).Observe(took.Seconds())
	c.lastCheckTimestamp.WithLabelValues(def.ID).Set(float64(out.Timestamp.Unix()))
}

func (c *Collector) ObserveBatch(took time.Duration) {
	c.batchDuration.Observe(took.Seconds())
}

func (c *Collector) SetCounters(counters core.StatusCounters) {
	for _, s := range core.Statuses {
		c.checksByStatus.WithLabelValues(string(s)).Set(float64(counters[s]))
	}
}

func (c *Collector) SetChecking(checking bool) {
	if checking {
		c.checking.Set(1)
		return
	}
	c.checking.Set(0)
}

// RecordDeployment records the outcome of one zone report poll.
func (c *Collector) RecordDeployment(d core.Deployment, err error) {
	if err != nil {
		c.deploymentPolls.WithLabelValues("error").Inc()
		return
	}
	c.deploymentPolls.WithLabelValues("success").Inc()
	c.reachableHosts.Set(float64(len(d.ReachableHosts)))

	c.deploymentServer.Reset()
	for _, z := range d.Zones {
		for _, s := range z.Servers {
			c.deploymentServer.WithLabelValues(z.Name, s.Hostname, s.Role, s.Version).Set(1)
		}
	}
}

func (c *Collector) RecordHTTPRequest(method, route string, code int, took time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
