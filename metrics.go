package tagreader

import (
	"sort"
	"sync"
	"time"
)

// MetricsSnapshot is a point-in-time view of the client's request metrics
type MetricsSnapshot struct {
	RequestsTotal   int `json:"requests_total"`
	RequestsSuccess int `json:"requests_success"`
	RequestsFailed  int `json:"requests_failed"`

	// Latency (milliseconds)
	LatencyAvgMs float64 `json:"latency_avg_ms"`
	LatencyP50Ms float64 `json:"latency_p50_ms"`
	LatencyP95Ms float64 `json:"latency_p95_ms"`
	LatencyP99Ms float64 `json:"latency_p99_ms"`
	LatencyMinMs float64 `json:"latency_min_ms"`
	LatencyMaxMs float64 `json:"latency_max_ms"`

	InFlight    int `json:"in_flight"`
	InFlightMax int `json:"in_flight_max"`

	Timestamp time.Time `json:"timestamp"`
}

// Metrics is a thread-safe collector for client request metrics
type Metrics struct {
	mu sync.Mutex

	maxLatencySamples int

	requestsTotal   int
	requestsSuccess int
	requestsFailed  int

	inFlight    int
	inFlightMax int

	// Latency samples (circular buffer via slice)
	latencies []float64
}

// NewMetrics creates a new Metrics instance
func NewMetrics(maxLatencySamples int) *Metrics {
	if maxLatencySamples <= 0 {
		maxLatencySamples = 1000
	}
	return &Metrics{
		maxLatencySamples: maxLatencySamples,
		latencies:         make([]float64, 0, maxLatencySamples),
	}
}

// StartRequest records a request entering flight.
// Returns the start timestamp for the matching EndRequest call.
func (m *Metrics) StartRequest() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestsTotal++
	m.inFlight++
	if m.inFlight > m.inFlightMax {
		m.inFlightMax = m.inFlight
	}
	return time.Now()
}

// EndRequest records a request completing.
// Returns the latency in milliseconds.
func (m *Metrics) EndRequest(startTime time.Time, success bool) float64 {
	latencyMs := float64(time.Since(startTime)) / float64(time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.inFlight--
	if success {
		m.requestsSuccess++
	} else {
		m.requestsFailed++
	}

	if len(m.latencies) >= m.maxLatencySamples {
		m.latencies = m.latencies[1:]
	}
	m.latencies = append(m.latencies, latencyMs)

	return latencyMs
}

// Snapshot returns a point-in-time snapshot of all metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := MetricsSnapshot{
		RequestsTotal:   m.requestsTotal,
		RequestsSuccess: m.requestsSuccess,
		RequestsFailed:  m.requestsFailed,
		InFlight:        m.inFlight,
		InFlightMax:     m.inFlightMax,
		Timestamp:       time.Now(),
	}

	if len(m.latencies) > 0 {
		latencies := make([]float64, len(m.latencies))
		copy(latencies, m.latencies)
		sort.Float64s(latencies)

		n := len(latencies)
		snapshot.LatencyMinMs = latencies[0]
		snapshot.LatencyMaxMs = latencies[n-1]

		sum := 0.0
		for _, v := range latencies {
			sum += v
		}
		snapshot.LatencyAvgMs = sum / float64(n)

		snapshot.LatencyP50Ms = latencies[n*50/100]
		snapshot.LatencyP95Ms = latencies[n*95/100]
		snapshot.LatencyP99Ms = latencies[n*99/100]
	}

	return snapshot
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestsTotal = 0
	m.requestsSuccess = 0
	m.requestsFailed = 0
	m.inFlight = 0
	m.inFlightMax = 0
	m.latencies = make([]float64, 0, m.maxLatencySamples)
}
