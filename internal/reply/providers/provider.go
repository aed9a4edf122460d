// Package providers holds the model-provider adapters behind the reply
// generator. Each adapter speaks one vendor SDK and returns the same raw
// judgment shape; everything above this package is provider-agnostic.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/civicpulse/civicpulse/internal/persona"
)

var (
	// ErrMalformed marks a provider response that could not be parsed into a
	// judgment. Retryable: models occasionally wrap or truncate the JSON.
	ErrMalformed = errors.New("malformed provider response")
	// ErrEmpty marks a response with no candidates or empty text.
	ErrEmpty = errors.New("empty provider response")
)

// Request carries everything a provider needs for one persona call.
type Request struct {
	Persona     persona.Persona
	Question    string
	AreaContext string
}

// RawReply is the judgment as the model emitted it, before the derived
// fields are computed and validated.
type RawReply struct {
	Answer     string  `json:"answer"`
	Rationale  string  `json:"rationale"`
	Stance     int     `json:"stance"`
	Confidence float64 `json:"confidence"`
}

// Provider is one backing model vendor.
type Provider interface {
	// Name identifies the provider in logs, metrics, and breaker state.
	Name() string
	// Model returns the configured model identifier.
	Model() string
	// Generate performs a single model call. No retries at this layer.
	Generate(ctx context.Context, req Request) (RawReply, error)
}

const systemInstruction = `You are roleplaying a specific resident of Singapore. Answer the question in first person, staying strictly in character given the profile provided. Respond with only a JSON object, no prose around it, with fields:
"answer": your opinion in 1-3 sentences, in your own voice;
"rationale": one sentence on why you feel this way, grounded in your circumstances;
"stance": an integer from -2 (strongly against) to 2 (strongly for), 0 if genuinely ambivalent;
"confidence": how firmly you hold this view, from 0.0 to 1.0.`

// BuildPrompt renders the persona profile and question into the user prompt
// shared by all providers. Area context is appended only when present.
func BuildPrompt(req Request) string {
	var b strings.Builder
	p := req.Persona
	fmt.Fprintf(&b, "Your profile:\n")
	fmt.Fprintf(&b, "- Age: %d, Sex: %s\n", p.Age, p.Sex)
	fmt.Fprintf(&b, "- Occupation: %s\n", p.Occupation)
	if p.EducationLevel != "" {
		fmt.Fprintf(&b, "- Education: %s\n", p.EducationLevel)
	}
	if p.MaritalStatus != "" {
		fmt.Fprintf(&b, "- Marital status: %s\n", p.MaritalStatus)
	}
	fmt.Fprintf(&b, "- Lives in: %s\n", p.PlanningArea)
	if p.Cultural != "" {
		fmt.Fprintf(&b, "- Cultural background: %s\n", p.Cultural)
	}
	if p.Biography != "" {
		fmt.Fprintf(&b, "\nAbout you: %s\n", p.Biography)
	}
	if req.AreaContext != "" {
		fmt.Fprintf(&b, "\nAbout your neighborhood: %s\n", req.AreaContext)
	}
	fmt.Fprintf(&b, "\nQuestion: %s", req.Question)
	return b.String()
}

// ParseRawReply decodes the model output into a RawReply, tolerating the
// markdown code fences some models insist on emitting.
func ParseRawReply(text string) (RawReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return RawReply{}, ErrEmpty
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var raw RawReply
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return RawReply{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Answer == "" {
		return RawReply{}, fmt.Errorf("%w: missing answer", ErrMalformed)
	}
	return raw, nil
}
