// Package ask wires the question pipeline end to end: filter, sample, fan
// out, aggregate. It owns the operation-level error policy — input and
// no-match failures reject before any provider call is spent.
package ask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicpulse/civicpulse/internal/cohort"
	"github.com/civicpulse/civicpulse/internal/diag"
	"github.com/civicpulse/civicpulse/internal/events"
	"github.com/civicpulse/civicpulse/internal/fanout"
	"github.com/civicpulse/civicpulse/internal/persona"
	"github.com/civicpulse/civicpulse/internal/platform/metrics"
	"github.com/civicpulse/civicpulse/internal/reply"
	"github.com/civicpulse/civicpulse/internal/sentiment"
	dErrors "github.com/civicpulse/civicpulse/pkg/domain-errors"
	"github.com/civicpulse/civicpulse/pkg/platform/sentinel"
	"github.com/civicpulse/civicpulse/pkg/requestcontext"
)

// MaxQuestionLen bounds the free-text question.
const MaxQuestionLen = 300

// Orchestrator runs one settled fan-out batch.
type Orchestrator interface {
	Run(ctx context.Context, req fanout.Request) (fanout.Outcome, error)
}

// Service is the application core behind the HTTP surface.
type Service struct {
	store        *persona.Store
	sampler      *cohort.Sampler
	orchestrator Orchestrator
	cohorts      cohort.Store
	recorder     *diag.Recorder
	emitter      *events.Emitter
	metrics      *metrics.Metrics
	logger       *slog.Logger

	minQuorum       int
	cohortMinQuorum int
}

// Params collects the service dependencies. recorder, emitter, and metrics
// may be nil; the service degrades to not recording.
type Params struct {
	Store           *persona.Store
	Sampler         *cohort.Sampler
	Orchestrator    Orchestrator
	Cohorts         cohort.Store
	Recorder        *diag.Recorder
	Emitter         *events.Emitter
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	MinQuorum       int
	CohortMinQuorum int
}

// NewService wires the pipeline.
func NewService(p Params) *Service {
	return &Service{
		store:           p.Store,
		sampler:         p.Sampler,
		orchestrator:    p.Orchestrator,
		cohorts:         p.Cohorts,
		recorder:        p.Recorder,
		emitter:         p.Emitter,
		metrics:         p.Metrics,
		logger:          p.Logger,
		minQuorum:       p.MinQuorum,
		cohortMinQuorum: p.CohortMinQuorum,
	}
}

// AskRequest is one ad-hoc question over a filtered sample.
type AskRequest struct {
	Question string               `json:"question"`
	Model    string               `json:"model,omitempty"`
	Filter   cohort.FilterRequest `json:"filter"`
}

// AskResult is the settled operation.
type AskResult struct {
	CorrelationID  string                             `json:"correlation_id"`
	Question       string                             `json:"question"`
	Replies        []reply.Reply                      `json:"replies"`
	Summary        sentiment.Summary                  `json:"summary"`
	AreaSentiments map[string]sentiment.AreaSentiment `json:"area_sentiments"`
	Failed         int                                `json:"failed,omitempty"`
	FailureSummary []fanout.FailureReason             `json:"failure_summary,omitempty"`
	Warning        string                             `json:"warning,omitempty"`
}

// Ask answers one ad-hoc question: validate, filter, sample, fan out,
// aggregate. No-match is rejected before any provider work starts.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	if err := validateQuestion(req.Question); err != nil {
		return nil, err
	}
	spec, err := cohort.NewFilterSpec(req.Filter, cohort.MaxSampleSize)
	if err != nil {
		return nil, err
	}

	candidates := cohort.Filter(s.store.All(), spec)
	if len(candidates) == 0 {
		if s.metrics != nil {
			s.metrics.NoMatchTotal.Inc()
		}
		s.emit(ctx, events.AskEvent{
			CorrelationID: s.correlationID(ctx),
			Question:      req.Question,
			Outcome:       events.OutcomeNoMatch,
			Timestamp:     requestcontext.Now(ctx).UTC(),
		})
		return nil, dErrors.New(dErrors.CodeNoMatch,
			"no personas match the given filters")
	}

	sampled := s.sampler.Sample(candidates, spec.SampleSize)
	return s.run(ctx, req.Question, req.Model, "", sampled, s.minQuorum)
}

// CreateCohortRequest names and pins a filtered sample for reuse.
type CreateCohortRequest struct {
	Name   string               `json:"name"`
	Filter cohort.FilterRequest `json:"filter"`
}

// CreateCohort samples once and persists the member ids, so every later ask
// against the cohort addresses the same residents.
func (s *Service) CreateCohort(ctx context.Context, req CreateCohortRequest) (cohort.Cohort, error) {
	spec, err := cohort.NewFilterSpec(req.Filter, cohort.MaxCohortSampleSize)
	if err != nil {
		return cohort.Cohort{}, err
	}

	candidates := cohort.Filter(s.store.All(), spec)
	if len(candidates) == 0 {
		if s.metrics != nil {
			s.metrics.NoMatchTotal.Inc()
		}
		return cohort.Cohort{}, dErrors.New(dErrors.CodeNoMatch,
			"no personas match the given filters")
	}

	sampled := s.sampler.Sample(candidates, spec.SampleSize)
	ids := make([]string, len(sampled))
	for i, p := range sampled {
		ids[i] = p.ID
	}

	c := cohort.Cohort{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(req.Name),
		Filter:     req.Filter,
		PersonaIDs: ids,
		CreatedAt:  requestcontext.Now(ctx).UTC(),
	}
	if err := s.cohorts.Save(ctx, c); err != nil {
		return cohort.Cohort{}, dErrors.Wrap(dErrors.CodeInternal, "persist cohort", err)
	}
	s.logger.InfoContext(ctx, "cohort created",
		"cohort_id", c.ID, "size", len(ids))
	return c, nil
}

// GetCohort returns a persisted cohort.
func (s *Service) GetCohort(ctx context.Context, id string) (cohort.Cohort, error) {
	c, err := s.cohorts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return cohort.Cohort{}, dErrors.Newf(dErrors.CodeNotFound, "cohort %s not found", id)
		}
		return cohort.Cohort{}, dErrors.Wrap(dErrors.CodeInternal, "load cohort", err)
	}
	return c, nil
}

// CohortAskRequest is a question against a persisted cohort.
type CohortAskRequest struct {
	Question string `json:"question"`
	Model    string `json:"model,omitempty"`
}

// AskCohort replays a persisted cohort against a new question. Members whose
// persona records have disappeared from the dataset are skipped; an entirely
// stale cohort is a no-match.
func (s *Service) AskCohort(ctx context.Context, cohortID string, req CohortAskRequest) (*AskResult, error) {
	if err := validateQuestion(req.Question); err != nil {
		return nil, err
	}
	c, err := s.GetCohort(ctx, cohortID)
	if err != nil {
		return nil, err
	}

	members := make([]persona.Persona, 0, len(c.PersonaIDs))
	for _, id := range c.PersonaIDs {
		if p, ok := s.store.ByID(id); ok {
			members = append(members, p)
		}
	}
	if len(members) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNoMatch,
			"cohort %s has no members in the current dataset", cohortID)
	}

	return s.run(ctx, req.Question, req.Model, cohortID, members, s.cohortMinQuorum)
}

// Options returns the distinct filterable values.
func (s *Service) Options() persona.Options {
	return s.store.Options()
}

// run is the shared back half: fan out, aggregate, record, emit.
func (s *Service) run(ctx context.Context, question, modelPref, cohortID string, members []persona.Persona, minQuorum int) (*AskResult, error) {
	correlationID := s.correlationID(ctx)
	start := time.Now()

	tasks := make([]fanout.Task, len(members))
	for i, p := range members {
		tasks[i] = fanout.Task{
			Persona:     p,
			AreaContext: s.store.AreaContext(p.PlanningArea),
		}
	}

	if s.metrics != nil {
		s.metrics.QuestionsTotal.Inc()
	}

	outcome, err := s.orchestrator.Run(ctx, fanout.Request{
		Question:  question,
		ModelPref: modelPref,
		Tasks:     tasks,
		MinQuorum: minQuorum,
	})

	s.record(diag.Record{
		CorrelationID: correlationID,
		Question:      question,
		CohortSize:    len(tasks),
		Succeeded:     len(outcome.Replies),
		Failed:        outcome.Failed,
		RawFailures:   outcome.RawFailures,
		RecordedAt:    requestcontext.Now(ctx).UTC(),
	})

	event := events.AskEvent{
		CorrelationID: correlationID,
		Question:      question,
		CohortID:      cohortID,
		CohortSize:    len(tasks),
		Succeeded:     len(outcome.Replies),
		Failed:        outcome.Failed,
		ElapsedMS:     time.Since(start).Milliseconds(),
		Timestamp:     requestcontext.Now(ctx).UTC(),
	}

	if err != nil {
		event.Outcome = events.OutcomeQuorumFailed
		s.emit(ctx, event)
		return nil, &CorrelatedError{CorrelationID: correlationID, Err: err}
	}

	agg := sentiment.Aggregate(outcome.Replies)
	event.Outcome = events.OutcomeOK
	event.MeanScore = agg.Summary.MeanScore
	s.emit(ctx, event)

	result := &AskResult{
		CorrelationID:  correlationID,
		Question:       question,
		Replies:        outcome.Replies,
		Summary:        agg.Summary,
		AreaSentiments: agg.AreaSentiments,
		Failed:         outcome.Failed,
		FailureSummary: outcome.FailureSummary,
	}
	if outcome.Failed > 0 {
		result.Warning = fmt.Sprintf(
			"%d persona responses failed and were skipped", outcome.Failed)
	}
	return result, nil
}

func (s *Service) correlationID(ctx context.Context) string {
	if id := requestcontext.RequestID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Service) record(rec diag.Record) {
	if s.recorder != nil {
		s.recorder.Record(rec)
	}
}

func (s *Service) emit(ctx context.Context, event events.AskEvent) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, event)
	}
}

func validateQuestion(q string) error {
	q = strings.TrimSpace(q)
	if q == "" {
		return dErrors.New(dErrors.CodeBadRequest, "question must not be empty")
	}
	if len(q) > MaxQuestionLen {
		return dErrors.Newf(dErrors.CodeBadRequest,
			"question is limited to %d characters", MaxQuestionLen)
	}
	return nil
}

// CorrelatedError pairs an operation failure with the correlation id under
// which its raw failure detail was recorded.
type CorrelatedError struct {
	CorrelationID string
	Err           error
}

func (e *CorrelatedError) Error() string { return e.Err.Error() }
func (e *CorrelatedError) Unwrap() error { return e.Err }
