package journal

import "sync"

// Memory keeps everything in process. It is safe for concurrent use so one
// Memory can collect several sweep runs.
type Memory struct {
	mu     sync.Mutex
	trades []Trade
	equity []EquityPoint
	steps  []StepRecord
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordTrade(t Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return nil
}

func (m *Memory) RecordEquity(e EquityPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = append(m.equity, e)
	return nil
}

func (m *Memory) RecordStep(s StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Weights = append([]float64(nil), s.Weights...)
	m.steps = append(m.steps, s)
	return nil
}

func (m *Memory) Close() error { return nil }

// Trades returns a copy of the recorded trades.
func (m *Memory) Trades() []Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Trade(nil), m.trades...)
}

func (m *Memory) Equity() []EquityPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EquityPoint(nil), m.equity...)
}

func (m *Memory) Steps() []StepRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StepRecord(nil), m.steps...)
}
