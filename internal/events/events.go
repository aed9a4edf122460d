// Package events records one event per answered question for offline
// analysis. Emission is fire-and-forget through a channel-fed worker so a
// slow or absent broker never delays a response.
package events

import (
	"context"
	"time"
)

// AskEvent is emitted after an ask operation settles, successful or not.
type AskEvent struct {
	CorrelationID string    `json:"correlation_id"`
	Question      string    `json:"question"`
	CohortID      string    `json:"cohort_id,omitempty"`
	CohortSize    int       `json:"cohort_size"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	Outcome       string    `json:"outcome"`
	MeanScore     float64   `json:"mean_score"`
	ElapsedMS     int64     `json:"elapsed_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// Outcome values for AskEvent.
const (
	OutcomeOK           = "ok"
	OutcomeQuorumFailed = "quorum_failed"
	OutcomeNoMatch      = "no_match"
)

// Sink persists events. Implementations must be safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, event AskEvent) error
	Close() error
}
