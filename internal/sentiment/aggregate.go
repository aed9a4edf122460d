// Package sentiment reduces successful persona replies into the global
// summary and per-area aggregates that drive the map coloring.
package sentiment

import (
	"github.com/civicpulse/civicpulse/internal/reply"
)

// Bucketing thresholds for an area's mean score. The area color comes from
// the thresholded mean, not from the majority individual sentiment, so a
// narrowly split area can read neutral even when positives outnumber.
const (
	positiveThreshold = 0.3
	negativeThreshold = -0.3
)

// Summary is the global roll-up over all successful replies.
type Summary struct {
	Total     int     `json:"total"`
	Positive  int     `json:"positive"`
	Neutral   int     `json:"neutral"`
	Negative  int     `json:"negative"`
	MeanScore float64 `json:"mean_score"`
}

// AreaSentiment is one planning area's aggregate.
type AreaSentiment struct {
	Count     int             `json:"count"`
	Score     float64         `json:"score"`
	Sentiment reply.Sentiment `json:"sentiment"`
}

// Result pairs the global summary with the per-area map.
type Result struct {
	Summary        Summary                  `json:"summary"`
	AreaSentiments map[string]AreaSentiment `json:"area_sentiments"`
}

// Aggregate is a pure reduction over successful replies. Counts partition
// exactly: positive + neutral + negative always equals total. Every area key
// in the result has at least one reply behind it.
func Aggregate(replies []reply.Reply) Result {
	result := Result{
		AreaSentiments: make(map[string]AreaSentiment),
	}

	var (
		scoreSum  float64
		areaSums  = make(map[string]float64)
		areaCount = make(map[string]int)
	)

	for _, r := range replies {
		result.Summary.Total++
		switch r.Sentiment {
		case reply.SentimentPositive:
			result.Summary.Positive++
		case reply.SentimentNegative:
			result.Summary.Negative++
		default:
			result.Summary.Neutral++
		}

		score := scoreOf(r)
		scoreSum += score
		areaSums[r.PlanningArea] += score
		areaCount[r.PlanningArea]++
	}

	if result.Summary.Total > 0 {
		result.Summary.MeanScore = scoreSum / float64(result.Summary.Total)
	}

	for area, count := range areaCount {
		mean := areaSums[area] / float64(count)
		result.AreaSentiments[area] = AreaSentiment{
			Count:     count,
			Score:     mean,
			Sentiment: Bucket(mean),
		}
	}
	return result
}

// Bucket maps a mean score to the area's sentiment class.
func Bucket(score float64) reply.Sentiment {
	switch {
	case score > positiveThreshold:
		return reply.SentimentPositive
	case score < negativeThreshold:
		return reply.SentimentNegative
	default:
		return reply.SentimentNeutral
	}
}

// scoreOf returns the reply's derived score, falling back to a coarse
// mapping from the sentiment class when the score was never set. The reply
// constructor always sets it, so the fallback exists only for replies
// decoded from external storage.
func scoreOf(r reply.Reply) float64 {
	if r.Score != 0 || r.Stance != 0 {
		return r.Score
	}
	switch r.Sentiment {
	case reply.SentimentPositive:
		return 1
	case reply.SentimentNegative:
		return -1
	default:
		return 0
	}
}
