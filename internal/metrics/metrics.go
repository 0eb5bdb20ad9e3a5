// Package metrics provides Prometheus metrics for the atomizer service.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/atomizehq/atomizer/internal/provider"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Job lifecycle metrics
	JobsTotal           *prometheus.CounterVec
	WorkflowTransitions *prometheus.CounterVec

	// Provider call metrics
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec

	// Processing metrics
	PagesOCRTotal     prometheus.Counter
	NodesSplitTotal   prometheus.Counter
	NodesFilledTotal  prometheus.Counter
	ExportsTotal      prometheus.Counter
	ExportFilesTotal  prometheus.Counter
}

// New creates and registers all metrics. A nil registerer uses the default
// registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atomizer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atomizer_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.JobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atomizer_jobs_total",
			Help: "Total number of processing jobs by outcome",
		},
		[]string{"outcome"},
	)

	m.WorkflowTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atomizer_workflow_transitions_total",
			Help: "Total number of workflow stage transitions",
		},
		[]string{"stage"},
	)

	m.ProviderCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atomizer_provider_calls_total",
			Help: "Total number of LLM provider calls",
		},
		[]string{"provider", "op", "status"},
	)

	m.ProviderCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atomizer_provider_call_duration_seconds",
			Help:    "Duration of LLM provider calls in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "op"},
	)

	m.PagesOCRTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "atomizer_pages_ocr_total",
			Help: "Total number of pages processed through OCR",
		},
	)

	m.NodesSplitTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "atomizer_nodes_split_total",
			Help: "Total number of node split operations",
		},
	)

	m.NodesFilledTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "atomizer_nodes_filled_total",
			Help: "Total number of nodes filled with generated content",
		},
	)

	m.ExportsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "atomizer_exports_total",
			Help: "Total number of markdown exports",
		},
	)

	m.ExportFilesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "atomizer_export_files_total",
			Help: "Total number of markdown files written by exports",
		},
	)

	return m
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path string, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordProviderCall records one LLM call.
func (m *Metrics) RecordProviderCall(providerName, op, status string, duration time.Duration) {
	m.ProviderCallsTotal.WithLabelValues(providerName, op, status).Inc()
	m.ProviderCallDuration.WithLabelValues(providerName, op).Observe(duration.Seconds())
}

// RecordTransition records a workflow stage entry.
func (m *Metrics) RecordTransition(stage string) {
	m.WorkflowTransitions.WithLabelValues(stage).Inc()
}

// WrapProvider returns a provider that records call counts and latency for
// every operation before delegating.
func (m *Metrics) WrapProvider(p provider.Provider) provider.Provider {
	return &instrumentedProvider{inner: p, metrics: m}
}

type instrumentedProvider struct {
	inner   provider.Provider
	metrics *Metrics
}

func (p *instrumentedProvider) record(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordProviderCall(p.inner.ModelInfo().Provider, op, status, time.Since(start))
}

func (p *instrumentedProvider) Complete(ctx context.Context, req provider.CompleteRequest) (string, error) {
	start := time.Now()
	out, err := p.inner.Complete(ctx, req)
	p.record("complete", start, err)
	return out, err
}

func (p *instrumentedProvider) AnalyzeImage(ctx context.Context, imageBase64, prompt, system string) (string, error) {
	start := time.Now()
	out, err := p.inner.AnalyzeImage(ctx, imageBase64, prompt, system)
	p.record("analyze_image", start, err)
	return out, err
}

func (p *instrumentedProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	out, err := p.inner.EmbedText(ctx, text)
	p.record("embed_text", start, err)
	return out, err
}

func (p *instrumentedProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	out, err := p.inner.EmbedTexts(ctx, texts)
	p.record("embed_texts", start, err)
	return out, err
}

func (p *instrumentedProvider) ModelInfo() provider.ModelInfo {
	return p.inner.ModelInfo()
}
