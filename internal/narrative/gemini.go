package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	genai "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

const geminiProvider = "gemini"

// Gemini completes prompts with the Generative Language API.
type Gemini struct {
	svc     *genai.Service
	model   string
	timeout time.Duration
}

var _ Completer = (*Gemini)(nil)

// NewGemini creates a client authenticated with an API key. Extra options
// are appended, so an endpoint or HTTP client can be overridden.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration, opts ...option.ClientOption) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" && len(opts) == 0 {
		return nil, errors.New("missing Gemini API key")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	all := make([]option.ClientOption, 0, len(opts)+1)
	if apiKey != "" {
		all = append(all, option.WithAPIKey(apiKey))
	}
	all = append(all, opts...)

	svc, err := genai.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create generative language service: %w", err)
	}
	return &Gemini{svc: svc, model: model, timeout: timeout}, nil
}

// Complete sends one generateContent call.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	body := &genai.GenerateContentRequest{
		Contents: []*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: req.Prompt}},
		}},
		GenerationConfig: &genai.GenerationConfig{Temperature: req.Temperature},
	}
	if req.System != "" {
		body.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	name := g.model
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}
	resp, err := g.svc.Models.GenerateContent(name, body).Context(ctx).Do()
	if err != nil {
		return "", transport(geminiProvider, err)
	}
	return geminiText(resp)
}

// geminiText extracts the answer or classifies why there is none.
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", blocked(geminiProvider, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", empty(geminiProvider, "no candidates")
	}

	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case "SAFETY", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII", "RECITATION":
		return "", blocked(geminiProvider, cand.FinishReason)
	}

	var b strings.Builder
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		reason := cand.FinishReason
		if reason == "" {
			reason = "no text"
		}
		return "", empty(geminiProvider, reason)
	}
	return text, nil
}
