package observability

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gemini_voice_requests_total",
		Help: "Total number of synthesis requests",
	}, []string{"mode", "status"}) // mode: "tts" or "live"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gemini_voice_request_duration_seconds",
		Help:    "Time from request start until audio was received",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"mode"})

	// Audio metrics
	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gemini_voice_audio_bytes_total",
		Help: "Total PCM bytes handled",
	}, []string{"stage"}) // stage: "received" or "written"

	audioChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gemini_voice_audio_chunks_total",
		Help: "Total inline audio chunks received on live sessions",
	})

	// Live session metrics
	liveState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gemini_voice_live_state",
		Help: "Current live session state (0=connecting, 1=setup_sent, 2=awaiting_audio, 3=turn_complete, 4=closed, 5=error)",
	})

	closeCodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gemini_voice_live_close_codes_total",
		Help: "WebSocket close codes observed on live sessions",
	}, []string{"code"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gemini_voice_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// Metrics tracks metrics for a single invocation
type Metrics struct {
	mode         string
	startTime    time.Time
	requestStart time.Time
	closeCodes   []int
	mu           sync.Mutex
}

// NewInvocationMetrics creates a metrics tracker for one tts or live run
func NewInvocationMetrics(mode string) *Metrics {
	return &Metrics{
		mode:      mode,
		startTime: time.Now(),
	}
}

// RecordRequestStart records the start of a request
func (m *Metrics) RecordRequestStart() {
	m.mu.Lock()
	m.requestStart = time.Now()
	m.mu.Unlock()
}

// RecordRequestEnd records the end of a request
func (m *Metrics) RecordRequestEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.requestStart.IsZero() {
		requestLatency.WithLabelValues(m.mode).Observe(time.Since(m.requestStart).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	requestsTotal.WithLabelValues(m.mode, status).Inc()
}

// RecordAudioBytes records PCM bytes at a pipeline stage
func (m *Metrics) RecordAudioBytes(stage string, bytes int) {
	audioBytes.WithLabelValues(stage).Add(float64(bytes))
}

// RecordAudioChunk counts one received live audio chunk
func (m *Metrics) RecordAudioChunk() {
	audioChunks.Inc()
}

// SetLiveState updates the live state gauge
func (m *Metrics) SetLiveState(state int) {
	liveState.Set(float64(state))
}

// RecordCloseCode counts a WebSocket close code
func (m *Metrics) RecordCloseCode(code int) {
	closeCodes.WithLabelValues(strconv.Itoa(code)).Inc()

	m.mu.Lock()
	m.closeCodes = append(m.closeCodes, code)
	m.mu.Unlock()
}

// CloseCodes returns the close codes this invocation recorded, in order
func (m *Metrics) CloseCodes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.closeCodes...)
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// Elapsed returns the time since the tracker was created
func (m *Metrics) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// WriteTextfile dumps the default registry in the node-exporter textfile format.
// A one-shot CLI has no scrape endpoint, so this is how metrics leave the process.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
