package tagreader

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	t.Run("tracks success and failure", func(t *testing.T) {
		m := NewMetrics(100)

		start := m.StartRequest()
		m.EndRequest(start, true)

		start = m.StartRequest()
		m.EndRequest(start, false)

		snapshot := m.Snapshot()
		assert.Equal(t, 2, snapshot.RequestsTotal)
		assert.Equal(t, 1, snapshot.RequestsSuccess)
		assert.Equal(t, 1, snapshot.RequestsFailed)
	})

	t.Run("tracks in-flight depth", func(t *testing.T) {
		m := NewMetrics(100)

		s1 := m.StartRequest()
		s2 := m.StartRequest()
		assert.Equal(t, 2, m.Snapshot().InFlight)

		m.EndRequest(s1, true)
		m.EndRequest(s2, true)

		snapshot := m.Snapshot()
		assert.Equal(t, 0, snapshot.InFlight)
		assert.Equal(t, 2, snapshot.InFlightMax)
	})
}

func TestMetrics_Latency(t *testing.T) {
	t.Run("computes percentiles", func(t *testing.T) {
		m := NewMetrics(100)

		for i := 0; i < 10; i++ {
			start := m.StartRequest()
			m.EndRequest(start.Add(-time.Duration(i+1)*time.Millisecond), true)
		}

		snapshot := m.Snapshot()
		assert.Greater(t, snapshot.LatencyMaxMs, snapshot.LatencyMinMs)
		assert.GreaterOrEqual(t, snapshot.LatencyP95Ms, snapshot.LatencyP50Ms)
		assert.GreaterOrEqual(t, snapshot.LatencyAvgMs, snapshot.LatencyMinMs)
	})

	t.Run("caps the sample buffer", func(t *testing.T) {
		m := NewMetrics(5)

		for i := 0; i < 20; i++ {
			start := m.StartRequest()
			m.EndRequest(start, true)
		}

		assert.Equal(t, 20, m.Snapshot().RequestsTotal)
	})
}

func TestMetrics_Reset(t *testing.T) {
	t.Run("clears everything", func(t *testing.T) {
		m := NewMetrics(100)
		m.EndRequest(m.StartRequest(), true)

		m.Reset()

		snapshot := m.Snapshot()
		assert.Equal(t, 0, snapshot.RequestsTotal)
		assert.Equal(t, 0, snapshot.InFlightMax)
		assert.Equal(t, 0.0, snapshot.LatencyAvgMs)
	})
}

func TestMetrics_Concurrency(t *testing.T) {
	t.Run("safe under parallel requests", func(t *testing.T) {
		m := NewMetrics(1000)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				start := m.StartRequest()
				m.EndRequest(start, i%2 == 0)
			}(i)
		}
		wg.Wait()

		snapshot := m.Snapshot()
		assert.Equal(t, 50, snapshot.RequestsTotal)
		assert.Equal(t, 25, snapshot.RequestsSuccess)
		assert.Equal(t, 25, snapshot.RequestsFailed)
		assert.Equal(t, 0, snapshot.InFlight)
	})
}
