package domain

import "github.com/shopspring/decimal"

// AnalysisEvent is a produced recommendation persisted in the local
// journal for recovery and streaming.
type AnalysisEvent struct {
	Token        string          `json:"token"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	TargetPrice  decimal.Decimal `json:"target_price"`
	Text         string          `json:"text"`
	// Timestamp is the creation time in unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// AnalysisEventRecord pairs an event with its journal index.
type AnalysisEventRecord struct {
	Index uint64
	Event AnalysisEvent
}
