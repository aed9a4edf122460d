package reply

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpulse/civicpulse/internal/persona"
	"github.com/civicpulse/civicpulse/internal/reply/providers"
	dErrors "github.com/civicpulse/civicpulse/pkg/domain-errors"
)

type fakeProvider struct {
	name    string
	calls   atomic.Int64
	failN   int64 // fail the first N calls
	err     error
	raw     providers.RawReply
	rawFunc func(call int64) (providers.RawReply, error)
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return f.name + "-model" }

func (f *fakeProvider) Generate(_ context.Context, _ providers.Request) (providers.RawReply, error) {
	n := f.calls.Add(1)
	if f.rawFunc != nil {
		return f.rawFunc(n)
	}
	if n <= f.failN {
		if f.err != nil {
			return providers.RawReply{}, f.err
		}
		return providers.RawReply{}, errors.New("provider unavailable")
	}
	return f.raw, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testPersona() persona.Persona {
	return persona.Persona{ID: "p1", Age: 40, Sex: "male", Occupation: "teacher", PlanningArea: "BEDOK"}
}

func goodRaw() providers.RawReply {
	return providers.RawReply{Answer: "yes", Rationale: "r", Stance: 1, Confidence: 0.8}
}

func TestGeneratorHappyPath(t *testing.T) {
	primary := &fakeProvider{name: "gemini", raw: goodRaw()}
	g, err := NewGenerator(testLogger(), []providers.Provider{primary}, WithAttempts(1))
	require.NoError(t, err)

	r, err := g.Generate(context.Background(), testPersona(), "q", "ctx", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", r.Provider)
	assert.Equal(t, "gemini-model", r.Model)
	assert.Equal(t, 1, r.Stance)
	assert.InDelta(t, 0.8, r.Score, 1e-9)
	assert.Equal(t, SentimentPositive, r.Sentiment)
	assert.EqualValues(t, 1, primary.calls.Load())
}

func TestGeneratorFallsBackToSecondary(t *testing.T) {
	primary := &fakeProvider{name: "gemini", failN: 100}
	fallback := &fakeProvider{name: "openai", raw: goodRaw()}
	g, err := NewGenerator(testLogger(), []providers.Provider{primary, fallback}, WithAttempts(1))
	require.NoError(t, err)

	r, err := g.Generate(context.Background(), testPersona(), "q", "", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", r.Provider)
	assert.EqualValues(t, 1, primary.calls.Load())
	assert.EqualValues(t, 1, fallback.calls.Load())
}

func TestGeneratorRetriesBeforeFallback(t *testing.T) {
	primary := &fakeProvider{name: "gemini", failN: 1, raw: goodRaw()}
	g, err := NewGenerator(testLogger(), []providers.Provider{primary}, WithAttempts(2))
	require.NoError(t, err)

	r, err := g.Generate(context.Background(), testPersona(), "q", "", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", r.Provider)
	assert.EqualValues(t, 2, primary.calls.Load())
}

func TestGeneratorModelPreferenceReordersChain(t *testing.T) {
	primary := &fakeProvider{name: "gemini", raw: goodRaw()}
	fallback := &fakeProvider{name: "openai", raw: goodRaw()}
	g, err := NewGenerator(testLogger(), []providers.Provider{primary, fallback}, WithAttempts(1))
	require.NoError(t, err)

	r, err := g.Generate(context.Background(), testPersona(), "q", "", "openai")
	require.NoError(t, err)
	assert.Equal(t, "openai", r.Provider)
	assert.EqualValues(t, 0, primary.calls.Load())
}

func TestGeneratorAllProvidersExhausted(t *testing.T) {
	primary := &fakeProvider{name: "gemini", failN: 100}
	fallback := &fakeProvider{name: "openai", failN: 100}
	g, err := NewGenerator(testLogger(), []providers.Provider{primary, fallback}, WithAttempts(1))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), testPersona(), "q", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p1")
}

func TestGeneratorRejectsOutOfRangeJudgment(t *testing.T) {
	bad := &fakeProvider{name: "gemini", raw: providers.RawReply{Answer: "a", Stance: 7, Confidence: 0.5}}
	g, err := NewGenerator(testLogger(), []providers.Provider{bad}, WithAttempts(1))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), testPersona(), "q", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrMalformed)
}

func TestGeneratorBreakerOpensAndSkipsProvider(t *testing.T) {
	primary := &fakeProvider{name: "gemini", failN: 1000}
	fallback := &fakeProvider{name: "openai", raw: goodRaw()}
	g, err := NewGenerator(testLogger(), []providers.Provider{primary, fallback}, WithAttempts(1))
	require.NoError(t, err)

	// Five consecutive failures open the primary's breaker.
	for i := 0; i < 5; i++ {
		_, err := g.Generate(context.Background(), testPersona(), "q", "", "")
		require.NoError(t, err)
	}
	callsWhenOpened := primary.calls.Load()
	assert.EqualValues(t, 5, callsWhenOpened)

	// Further calls route straight to the fallback.
	r, err := g.Generate(context.Background(), testPersona(), "q", "", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", r.Provider)
	assert.EqualValues(t, callsWhenOpened, primary.calls.Load())
	assert.True(t, g.Healthy())
}

func TestGeneratorProvidersRecoverAfterCooldown(t *testing.T) {
	// Both providers fail their first five calls and then come back.
	primary := &fakeProvider{name: "gemini", failN: 5, raw: goodRaw()}
	fallback := &fakeProvider{name: "openai", failN: 5, raw: goodRaw()}
	g, err := NewGenerator(testLogger(), []providers.Provider{primary, fallback},
		WithAttempts(1), WithBreakerCooldown(250*time.Millisecond))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := g.Generate(context.Background(), testPersona(), "q", "", "")
		require.Error(t, err)
	}
	assert.EqualValues(t, 5, primary.calls.Load())
	assert.EqualValues(t, 5, fallback.calls.Load())

	// Inside the cooldown every call fails fast without touching a provider.
	_, err = g.Generate(context.Background(), testPersona(), "q", "", "")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnavailable))
	assert.EqualValues(t, 5, primary.calls.Load())
	assert.EqualValues(t, 5, fallback.calls.Load())
	assert.False(t, g.Healthy())

	// After the cooldown the recovered primary is probed and answers again.
	time.Sleep(300 * time.Millisecond)
	r, err := g.Generate(context.Background(), testPersona(), "q", "", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", r.Provider)
	assert.EqualValues(t, 6, primary.calls.Load())
	assert.True(t, g.Healthy())
}

func TestGeneratorHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := &fakeProvider{name: "gemini", rawFunc: func(int64) (providers.RawReply, error) {
		cancel()
		return providers.RawReply{}, errors.New("upstream reset")
	}}
	fallback := &fakeProvider{name: "openai", raw: goodRaw()}
	g, err := NewGenerator(testLogger(), []providers.Provider{slow, fallback},
		WithAttempts(1), WithCallTimeout(time.Second))
	require.NoError(t, err)

	_, err = g.Generate(ctx, testPersona(), "q", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, fallback.calls.Load(), "cancelled request must not fall through to the next provider")
}
