// Package reply turns a persona and a question into a structured opinion via
// external model providers, with retry and fallback handled internally.
package reply

import (
	"time"

	dErrors "github.com/civicpulse/civicpulse/pkg/domain-errors"
)

// Sentiment is the categorical class of a reply.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Reply is one persona's judgment on a question. Score and Sentiment are
// always derived from Stance and Confidence by NewReply; the struct is never
// built by hand, so the three fields cannot drift apart.
type Reply struct {
	PersonaID    string    `json:"persona_id"`
	PlanningArea string    `json:"planning_area"`
	Answer       string    `json:"answer"`
	Rationale    string    `json:"rationale"`
	Stance       int       `json:"stance"`
	Confidence   float64   `json:"confidence"`
	Score        float64   `json:"score"`
	Sentiment    Sentiment `json:"sentiment"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	AreaContext  string    `json:"area_context,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// NewReply validates the model's raw judgment and derives the consistent
// score and sentiment. Stance must be one of {-2,-1,0,1,2} and confidence
// must lie in [0,1]; anything else is a malformed provider output.
func NewReply(personaID, area, answer, rationale string, stance int, confidence float64) (Reply, error) {
	if stance < -2 || stance > 2 {
		return Reply{}, dErrors.Newf(dErrors.CodeInternal, "stance %d outside [-2,2]", stance)
	}
	if confidence < 0 || confidence > 1 {
		return Reply{}, dErrors.Newf(dErrors.CodeInternal, "confidence %.3f outside [0,1]", confidence)
	}

	score := float64(stance) * confidence
	if score > 2 {
		score = 2
	}
	if score < -2 {
		score = -2
	}

	sentiment := SentimentNeutral
	switch {
	case stance > 0:
		sentiment = SentimentPositive
	case stance < 0:
		sentiment = SentimentNegative
	}

	return Reply{
		PersonaID:    personaID,
		PlanningArea: area,
		Answer:       answer,
		Rationale:    rationale,
		Stance:       stance,
		Confidence:   confidence,
		Score:        score,
		Sentiment:    sentiment,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}
