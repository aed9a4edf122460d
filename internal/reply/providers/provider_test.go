package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpulse/civicpulse/internal/persona"
)

func TestParseRawReply(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		raw, err := ParseRawReply(`{"answer":"I support it","rationale":"helps my commute","stance":2,"confidence":0.9}`)
		require.NoError(t, err)
		assert.Equal(t, "I support it", raw.Answer)
		assert.Equal(t, 2, raw.Stance)
		assert.InDelta(t, 0.9, raw.Confidence, 1e-9)
	})

	t.Run("fenced json", func(t *testing.T) {
		raw, err := ParseRawReply("```json\n{\"answer\":\"no\",\"rationale\":\"too costly\",\"stance\":-1,\"confidence\":0.6}\n```")
		require.NoError(t, err)
		assert.Equal(t, -1, raw.Stance)
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := ParseRawReply("  ")
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseRawReply("I think it is a great idea!")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("missing answer", func(t *testing.T) {
		_, err := ParseRawReply(`{"rationale":"r","stance":0,"confidence":0.5}`)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestBuildPrompt(t *testing.T) {
	req := Request{
		Persona: persona.Persona{
			ID: "p1", Age: 34, Sex: "female", Occupation: "nurse",
			PlanningArea: "TAMPINES", Biography: "Works night shifts at a polyclinic.",
		},
		Question:    "Should the MRT run 24 hours on weekends?",
		AreaContext: "Tampines is a large residential town in the east.",
	}
	prompt := BuildPrompt(req)
	assert.Contains(t, prompt, "Age: 34")
	assert.Contains(t, prompt, "nurse")
	assert.Contains(t, prompt, "TAMPINES")
	assert.Contains(t, prompt, "night shifts")
	assert.Contains(t, prompt, "About your neighborhood")
	assert.Contains(t, prompt, "Question: Should the MRT run 24 hours on weekends?")

	req.AreaContext = ""
	assert.NotContains(t, BuildPrompt(req), "About your neighborhood")
}
