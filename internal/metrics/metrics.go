package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "atcfusion"

// Recorder/VAD counters. They are registered and exported, but no package in
// this module increments them.
var (
	SegmentsRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "segments_recorded_total",
		Help:      "Total voice segments written to disk, per channel.",
	}, []string{"channel"})

	DecoderRestartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decoder_restarts_total",
		Help:      "Total times a channel's audio decoder process was restarted.",
	}, []string{"channel"})
)

// Transcription pool counters/histograms.
var (
	TranscriptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcriptions_total",
		Help:      "Total transcription jobs completed, by outcome.",
	}, []string{"outcome"}) // outcome: success|failure

	TranscriptionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transcription_duration_seconds",
		Help:      "Wall-clock time spent per transcription job.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"channel"})

	SegmentsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "segments_dropped_total",
		Help:      "Total recorded segments discarded before transcription.",
	}, []string{"reason"}) // reason: queue_full|below_min_duration
)

// Surveillance poller counters.
var (
	SurveillancePollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "surveillance_polls_total",
		Help:      "Total polls made against the ADS-B source, by outcome.",
	}, []string{"outcome"}) // outcome: success|error

	OAuthTokenRefreshesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oauth_token_refreshes_total",
		Help:      "Total OAuth2 access token refreshes performed.",
	})
)

// Correlator counters/histograms.
var (
	CorrelationAPICallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "correlation_api_calls_total",
		Help:      "Total LLM correlation requests issued.",
	})

	CorrelationErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "correlation_errors_total",
		Help:      "Total LLM correlation requests that failed, by kind.",
	}, []string{"kind"}) // kind: timeout|connection|parse

	CorrelationTokensTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "correlation_tokens_total",
		Help:      "Total prompt+response tokens consumed by correlation requests.",
	})

	AlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_total",
		Help:      "Total alerts emitted, by type.",
	}, []string{"type"})
)

// HTTP metrics for the debug/health surface.
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed by the debug API.",
	}, []string{"method", "path_pattern", "status_code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path_pattern"})
)

func init() {
	prometheus.MustRegister(
		SegmentsRecordedTotal,
		DecoderRestartsTotal,
		TranscriptionsTotal,
		TranscriptionDuration,
		SegmentsDroppedTotal,
		SurveillancePollsTotal,
		OAuthTokenRefreshesTotal,
		CorrelationAPICallsTotal,
		CorrelationErrorsTotal,
		CorrelationTokensTotal,
		AlertsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// InstrumentHandler returns middleware that records HTTP request metrics for
// the debug API. It uses chi's route pattern as the path label to avoid
// cardinality explosion from arbitrary URL paths.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unknown"
		}
		method := r.Method
		status := strconv.Itoa(sw.status)
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(method, pattern, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, pattern).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
