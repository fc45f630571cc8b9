package router

import "sync/atomic"

// Metrics counts routing outcomes. Safe for concurrent turns.
type Metrics struct {
	Total            atomic.Int64
	Commands         atomic.Int64
	Greetings        atomic.Int64
	SimpleQuestions  atomic.Int64
	ComplexQuestions atomic.Int64
	ExtractionSkips  atomic.Int64
	Errors           atomic.Int64
}

func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"total_classifications": m.Total.Load(),
		"command_detections":    m.Commands.Load(),
		"greetings":             m.Greetings.Load(),
		"simple_questions":      m.SimpleQuestions.Load(),
		"complex_questions":     m.ComplexQuestions.Load(),
		"extraction_skips":      m.ExtractionSkips.Load(),
		"routing_errors":        m.Errors.Load(),
	}
}
