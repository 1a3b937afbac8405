package executor

import (
	"sync"
	"time"
)

// Metrics tracks statistics about stage calls.
type Metrics struct {
	StagesExecuted    int
	StagesSuccessful  int
	StagesFailed      int
	TotalDuration     time.Duration
	LongestStageTime  time.Duration
	ShortestStageTime time.Duration

	mu sync.Mutex
}

// Copy returns a snapshot without the mutex.
func (m *Metrics) Copy() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Metrics{
		StagesExecuted:    m.StagesExecuted,
		StagesSuccessful:  m.StagesSuccessful,
		StagesFailed:      m.StagesFailed,
		TotalDuration:     m.TotalDuration,
		LongestStageTime:  m.LongestStageTime,
		ShortestStageTime: m.ShortestStageTime,
	}
}

func (m *Metrics) record(duration time.Duration, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StagesExecuted++
	m.TotalDuration += duration
	if duration > m.LongestStageTime {
		m.LongestStageTime = duration
	}
	if duration > 0 && (m.ShortestStageTime == 0 || duration < m.ShortestStageTime) {
		m.ShortestStageTime = duration
	}
	if ok {
		m.StagesSuccessful++
	} else {
		m.StagesFailed++
	}
}
