package reply

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicpulse/civicpulse/internal/persona"
	"github.com/civicpulse/civicpulse/internal/platform/metrics"
	"github.com/civicpulse/civicpulse/internal/reply/providers"
	dErrors "github.com/civicpulse/civicpulse/pkg/domain-errors"
	"github.com/civicpulse/civicpulse/pkg/platform/circuit"
)

var tracer = otel.Tracer("civicpulse/reply")

// Generator drives the provider chain for a single persona call: bounded
// attempts against the preferred provider, then the same against each
// fallback. A per-provider circuit breaker skips providers that are failing
// consistently so a dead primary does not cost every call its retry budget.
type Generator struct {
	providers []providers.Provider
	breakers  map[string]*circuit.Breaker
	attempts  int
	timeout   time.Duration
	cooldown  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithAttempts sets the attempt budget per provider (minimum 1).
func WithAttempts(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.attempts = n
		}
	}
}

// WithCallTimeout bounds each individual provider call.
func WithCallTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithBreakerCooldown sets how long an opened provider breaker refuses calls
// before admitting a probe.
func WithBreakerCooldown(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.cooldown = d
		}
	}
}

// WithMetrics attaches provider failure counters.
func WithMetrics(m *metrics.Metrics) GeneratorOption {
	return func(g *Generator) { g.metrics = m }
}

// NewGenerator builds a generator over the given providers. Order is the
// default preference order; at least one provider is required.
func NewGenerator(logger *slog.Logger, provs []providers.Provider, opts ...GeneratorOption) (*Generator, error) {
	if len(provs) == 0 {
		return nil, fmt.Errorf("reply generator: at least one provider required")
	}
	g := &Generator{
		providers: provs,
		breakers:  make(map[string]*circuit.Breaker, len(provs)),
		attempts:  2,
		timeout:   45 * time.Second,
		cooldown:  30 * time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	for _, p := range provs {
		g.breakers[p.Name()] = circuit.New(p.Name(),
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(2),
			circuit.WithCooldown(g.cooldown),
		)
	}
	return g, nil
}

// chainFor returns the providers in call order for a preference. An unknown
// or empty preference keeps the default order.
func (g *Generator) chainFor(modelPref string) []providers.Provider {
	if modelPref == "" {
		return g.providers
	}
	for i, p := range g.providers {
		if p.Name() == modelPref {
			chain := make([]providers.Provider, 0, len(g.providers))
			chain = append(chain, p)
			chain = append(chain, g.providers[:i]...)
			chain = append(chain, g.providers[i+1:]...)
			return chain
		}
	}
	return g.providers
}

// Generate produces one reply for the persona. It walks the provider chain,
// spending the attempt budget on each provider in turn, and returns the
// first valid reply. All providers exhausted means a terminal failure for
// this persona only; the fan-out layer absorbs it.
func (g *Generator) Generate(ctx context.Context, p persona.Persona, question, areaContext, modelPref string) (Reply, error) {
	ctx, span := tracer.Start(ctx, "reply.Generate", trace.WithAttributes(
		attribute.String("persona.area", p.PlanningArea),
	))
	defer span.End()

	req := providers.Request{Persona: p, Question: question, AreaContext: areaContext}

	var lastErr error
	for _, prov := range g.chainFor(modelPref) {
		breaker := g.breakers[prov.Name()]
		// Allow admits a probe once the cooldown has elapsed, so a provider
		// that recovers is picked back up without a restart.
		if !breaker.Allow() {
			g.logger.DebugContext(ctx, "skipping provider with open breaker",
				"provider", prov.Name())
			continue
		}

		r, err := g.generateWith(ctx, prov, p, req)
		if err == nil {
			if _, change := breaker.RecordSuccess(); change.Closed {
				g.logger.InfoContext(ctx, "provider breaker closed",
					"provider", prov.Name())
			}
			span.SetAttributes(attribute.String("reply.provider", prov.Name()))
			return r, nil
		}

		lastErr = err
		if g.metrics != nil {
			g.metrics.ProviderFailures.WithLabelValues(prov.Name()).Inc()
		}
		if _, change := breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "provider breaker opened",
				"provider", prov.Name(), "error", err)
		}
		if ctx.Err() != nil {
			return Reply{}, ctx.Err()
		}
		g.logger.DebugContext(ctx, "provider exhausted, trying fallback",
			"provider", prov.Name(), "error", err)
	}

	if lastErr == nil {
		lastErr = dErrors.New(dErrors.CodeUnavailable, "all model providers are unavailable")
	}
	return Reply{}, fmt.Errorf("generate reply for persona %s: %w", p.ID, lastErr)
}

// generateWith spends the attempt budget on a single provider.
func (g *Generator) generateWith(ctx context.Context, prov providers.Provider, p persona.Persona, req providers.Request) (Reply, error) {
	ctx, span := tracer.Start(ctx, "reply.provider."+prov.Name())
	defer span.End()

	var raw providers.RawReply
	call := func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		var err error
		raw, err = prov.Generate(callCtx, req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		return nil
	}

	policy := backoff.WithMaxRetries(
		backoff.WithContext(backoff.NewExponentialBackOff(), ctx),
		uint64(g.attempts-1),
	)
	if err := backoff.Retry(call, policy); err != nil {
		return Reply{}, err
	}

	r, err := NewReply(p.ID, p.PlanningArea, raw.Answer, raw.Rationale, raw.Stance, raw.Confidence)
	if err != nil {
		// Parsed JSON with out-of-range fields counts as a provider failure
		// too, but it is not worth another round trip.
		return Reply{}, fmt.Errorf("%w: %v", providers.ErrMalformed, err)
	}
	r.Provider = prov.Name()
	r.Model = prov.Model()
	r.AreaContext = req.AreaContext
	return r, nil
}

// Healthy reports whether at least one provider breaker is closed.
func (g *Generator) Healthy() bool {
	for _, b := range g.breakers {
		if !b.IsOpen() {
			return true
		}
	}
	return false
}
