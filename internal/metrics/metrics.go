// Package metrics exposes analysis outcomes as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/deepscan/internal/model"
)

const namespace = "deepscan"

// Recorder implements pipeline.Observer and records intake and HTTP outcomes
type Recorder struct {
	registry *prometheus.Registry

	analyses        *prometheus.CounterVec
	fakeProbability *prometheus.HistogramVec
	processing      *prometheus.HistogramVec
	canceled        *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	requests        *prometheus.CounterVec
}

// NewRecorder creates a recorder on its own registry, with Go and process collectors
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analyses by media type and verdict.",
		}, []string{"media_type", "verdict"}),
		fakeProbability: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fake_probability",
			Help:      "Sampled fake-probability per analysis.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}, []string{"media_type"}),
		processing: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_seconds",
			Help:      "Time from analysis start to report.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 3, 4, 5, 10},
		}, []string{"media_type"}),
		canceled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_canceled_total",
			Help:      "Analyses cancelled before their report was produced.",
		}, []string{"media_type"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_rejections_total",
			Help:      "Uploads rejected before analysis.",
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}

	registry.MustRegister(r.analyses, r.fakeProbability, r.processing, r.canceled, r.rejections, r.requests)
	return r
}

// ObserveAnalysis records a completed report
func (r *Recorder) ObserveAnalysis(report *model.AnalysisReport) {
	mt := string(report.MediaType)
	r.analyses.WithLabelValues(mt, string(report.Verdict)).Inc()
	r.fakeProbability.WithLabelValues(mt).Observe(float64(report.FakeProbability))
	r.processing.WithLabelValues(mt).Observe(report.ProcessingTime.Seconds())
}

// ObserveCanceled records a cancelled analysis
func (r *Recorder) ObserveCanceled(mt model.MediaType) {
	r.canceled.WithLabelValues(string(mt)).Inc()
}

// ObserveRejection records an upload refused by intake
func (r *Recorder) ObserveRejection(kind model.IntakeErrorKind) {
	r.rejections.WithLabelValues(string(kind)).Inc()
}

// ObserveRequest records a served HTTP request
func (r *Recorder) ObserveRequest(route string, code int) {
	r.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// RegisterGauge exposes a value read at scrape time, e.g. the live session count
func (r *Recorder) RegisterGauge(name, help string, fn func() float64) error {
	return r.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
