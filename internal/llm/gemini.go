// Package llm wraps the Google GenAI (Gemini) client behind a small
// prompt-in, text-out surface. Everything probabilistic in the application
// goes through this package: answer-validation judgments, qualitative
// compatibility scoring, and the constrained persona chat.
//
// Callers always pass a context carrying a deadline; this package never
// installs its own timeout, so the lifecycle controller stays in charge of
// the races described in the concurrency model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// Options shape one generation call. Unset fields fall back to the
// defaults configured on the Generator.
type Options struct {
	SystemPrompt string
	Temperature  float64 // <0 means "use default"; 0 is explicit determinism
	MaxTokens    int     // <=0 means "use default"
	Model        string  // override the configured model, e.g. per agent

	// ContextDocument is optional grounding text prepended to the prompt,
	// used by personas backed by a reference document.
	ContextDocument string
}

// Message is one turn of a multi-turn exchange.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// TextGenerator is the consumer-facing contract. Services depend on this
// interface so tests can substitute a fake.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, opts Options) (string, error)
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Generator implements TextGenerator on top of the Gemini API backend.
type Generator struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, temperature float64, maxTokens int) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &Generator{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// GenerateText sends a single prompt and returns the first textual response.
func (g *Generator) GenerateText(ctx context.Context, prompt string, opts Options) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}
	if doc := strings.TrimSpace(opts.ContextDocument); doc != "" {
		prompt = "Reference material:\n" + doc + "\n\n" + prompt
	}
	return g.generate(ctx, genai.Text(prompt), opts)
}

// Chat sends a multi-turn exchange and returns the model's next reply.
// Assistant turns map to the model role; everything else is sent as user.
func (g *Generator) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("at least one message is required")
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: text}},
		})
	}
	if len(contents) == 0 {
		return "", errors.New("all messages were empty")
	}

	return g.generate(ctx, contents, opts)
}

// resolveTemperature applies the per-call override. An explicit 0 is a
// valid deterministic setting; only negative values mean "use the
// configured default".
func (g *Generator) resolveTemperature(opts Options) float64 {
	if opts.Temperature >= 0 {
		return opts.Temperature
	}
	return g.temperature
}

func (g *Generator) generate(ctx context.Context, contents []*genai.Content, opts Options) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = g.model
	}

	t32 := float32(g.resolveTemperature(opts))
	maxTokens := g.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     &t32,
		MaxOutputTokens: int32(maxTokens),
	}
	if sp := strings.TrimSpace(opts.SystemPrompt); sp != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: sp}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return out, nil
}

// Model returns the configured default model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
