// Package fanout runs the per-cohort generation batch: one reply generator
// call per persona, bounded by a process-wide worker cap, collecting every
// outcome independently so one persona's failure never aborts the rest.
package fanout

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/civicpulse/civicpulse/internal/persona"
	"github.com/civicpulse/civicpulse/internal/platform/metrics"
	"github.com/civicpulse/civicpulse/internal/reply"
	dErrors "github.com/civicpulse/civicpulse/pkg/domain-errors"
)

var tracer = otel.Tracer("civicpulse/fanout")

// maxFailureReasons bounds the deduplicated failure summary.
const maxFailureReasons = 5

// Generator produces one reply for one persona. Retry and provider fallback
// live behind this interface; the orchestrator never re-retries.
type Generator interface {
	Generate(ctx context.Context, p persona.Persona, question, areaContext, modelPref string) (reply.Reply, error)
}

// Task is one persona to ask, with its neighborhood grounding text.
type Task struct {
	Persona     persona.Persona
	AreaContext string
}

// Request is one cohort batch.
type Request struct {
	Question  string
	ModelPref string
	Tasks     []Task
	// MinQuorum is the minimum number of successful replies for the batch to
	// count as usable. Below it the whole operation fails even though some
	// replies succeeded.
	MinQuorum int
}

// FailureReason is one normalized failure message and how often it occurred.
type FailureReason struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Outcome is the settled batch. RawFailures keeps the unnormalized errors
// for the debug surface; FailureSummary is the bounded public shape.
type Outcome struct {
	Replies        []reply.Reply
	Failed         int
	FailureSummary []FailureReason
	RawFailures    []string
}

// Orchestrator owns the process-wide concurrency cap. One instance is shared
// by every request the server is handling; the cap holds regardless of how
// many batches are in flight.
type Orchestrator struct {
	generator Generator
	sem       *semaphore.Weighted
	workers   int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New builds an orchestrator with the given global worker cap.
func New(logger *slog.Logger, gen Generator, workerCap int, m *metrics.Metrics) *Orchestrator {
	if workerCap < 1 {
		workerCap = 1
	}
	return &Orchestrator{
		generator: gen,
		sem:       semaphore.NewWeighted(int64(workerCap)),
		workers:   workerCap,
		logger:    logger,
		metrics:   m,
	}
}

// Run fans the question out to every persona in the batch and waits for all
// outcomes to settle. It returns a quorum error when too few replies
// succeeded; the Outcome is populated either way so callers can record the
// failure detail.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "fanout.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("fanout.cohort_size", len(req.Tasks)),
		attribute.Int("fanout.min_quorum", req.MinQuorum),
	)

	start := time.Now()

	jobs := make(chan Task)
	var (
		mu       sync.Mutex
		replies  []reply.Reply
		failures []string
		wg       sync.WaitGroup
	)

	workers := o.workers
	if len(req.Tasks) < workers {
		workers = len(req.Tasks)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				// The cap is process-wide: workers from concurrent batches
				// contend for the same slots.
				if err := o.sem.Acquire(ctx, 1); err != nil {
					mu.Lock()
					failures = append(failures, err.Error())
					mu.Unlock()
					continue
				}
				r, err := o.generator.Generate(ctx, task.Persona, req.Question, task.AreaContext, req.ModelPref)
				o.sem.Release(1)

				mu.Lock()
				if err != nil {
					failures = append(failures, err.Error())
				} else {
					replies = append(replies, r)
				}
				mu.Unlock()
			}
		}()
	}

	for _, task := range req.Tasks {
		jobs <- task
	}
	close(jobs)
	wg.Wait()

	outcome := Outcome{
		Replies:        replies,
		Failed:         len(failures),
		FailureSummary: summarizeFailures(failures),
		RawFailures:    failures,
	}

	elapsed := time.Since(start)
	o.metrics.ObserveFanout(elapsed, len(req.Tasks), len(replies), len(failures))
	o.logger.InfoContext(ctx, "fan-out settled",
		"cohort_size", len(req.Tasks),
		"succeeded", len(replies),
		"failed", len(failures),
		"elapsed", elapsed,
	)

	if len(replies) < req.MinQuorum {
		if o.metrics != nil {
			o.metrics.QuorumFailures.Inc()
		}
		return outcome, dErrors.Newf(dErrors.CodeQuorumFailed,
			"only %d of %d persona replies succeeded, need at least %d",
			len(replies), len(req.Tasks), req.MinQuorum)
	}
	return outcome, nil
}

// personaPrefix strips the per-persona part of generator errors so identical
// provider faults group together.
var personaPrefix = regexp.MustCompile(`^generate reply for persona \S+: `)

// summarizeFailures dedupes failure messages by normalized text and keeps
// the most frequent few, ties broken alphabetically for stable output.
func summarizeFailures(failures []string) []FailureReason {
	if len(failures) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, f := range failures {
		counts[normalizeReason(f)]++
	}
	reasons := make([]FailureReason, 0, len(counts))
	for reason, count := range counts {
		reasons = append(reasons, FailureReason{Reason: reason, Count: count})
	}
	sort.Slice(reasons, func(i, j int) bool {
		if reasons[i].Count != reasons[j].Count {
			return reasons[i].Count > reasons[j].Count
		}
		return reasons[i].Reason < reasons[j].Reason
	})
	if len(reasons) > maxFailureReasons {
		reasons = reasons[:maxFailureReasons]
	}
	return reasons
}

func normalizeReason(msg string) string {
	msg = personaPrefix.ReplaceAllString(msg, "")
	return strings.ToLower(strings.Join(strings.Fields(msg), " "))
}
