// Package assist wraps the inference service behind style inference and
// reply generation, with deterministic fallbacks for when it is absent or
// failing. Nothing in this package returns an inference error to its caller.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/capitalize-ai/stylemirror/internal/llm"
	"github.com/capitalize-ai/stylemirror/internal/model"
	"github.com/capitalize-ai/stylemirror/pkg/metrics"
)

const (
	opInferStyle   = "infer_style"
	opContinueText = "continue_text"

	replyMaxTokens = 256
	styleMaxTokens = 1024
)

// Backend is the inference service boundary: one structured style call and
// one free-text continuation call.
type Backend interface {
	InferStyle(ctx context.Context, contactName, selfText string) (model.StyleProfile, error)
	ContinueText(ctx context.Context, prompt string) (string, error)
}

// LLMBackend implements Backend on top of an llm.Client.
type LLMBackend struct {
	client llm.Client
}

// NewLLMBackend creates a backend using client.
func NewLLMBackend(client llm.Client) *LLMBackend {
	return &LLMBackend{client: client}
}

// NewBackend creates the backend for provider. It returns a nil Backend and
// no error when cfg carries no API key, which selects demo mode.
func NewBackend(ctx context.Context, provider llm.Provider, cfg llm.Config) (Backend, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	client, err := llm.NewClient(ctx, provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", provider, err)
	}
	return NewLLMBackend(client), nil
}

type styleResponse struct {
	Formality   *float64 `json:"formality"`
	Warmth      *float64 `json:"warmth"`
	Humor       *float64 `json:"humor"`
	Brevity     *float64 `json:"brevity"`
	EmojiUsage  *float64 `json:"emojiUsage"`
	Keywords    []string `json:"keywords"`
	Description string   `json:"description"`
}

// InferStyle asks the model for a style profile and validates its shape.
func (b *LLMBackend) InferStyle(ctx context.Context, contactName, selfText string) (model.StyleProfile, error) {
	resp, err := b.complete(ctx, opInferStyle, &llm.CompletionRequest{
		System:      styleSystemPrompt,
		Messages:    []llm.ChatMessage{llm.UserMessage(StylePrompt(contactName, selfText))},
		MaxTokens:   styleMaxTokens,
		Temperature: 0.2,
		Schema:      StyleSchema(),
	})
	if err != nil {
		return model.StyleProfile{}, err
	}
	return ParseStyle(resp.Content)
}

// ContinueText asks the model for one free-text reply.
func (b *LLMBackend) ContinueText(ctx context.Context, prompt string) (string, error) {
	resp, err := b.complete(ctx, opContinueText, &llm.CompletionRequest{
		Messages:    []llm.ChatMessage{llm.UserMessage(prompt)},
		MaxTokens:   replyMaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func (b *LLMBackend) complete(ctx context.Context, op string, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := b.client.Complete(ctx, req)
	if err != nil {
		metrics.InferenceDuration.WithLabelValues(op, b.client.Name()).Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("%s %s: %w", b.client.Name(), op, err)
	}
	metrics.RecordInference(op, b.client.Name(), resp.Model, time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
	return resp, nil
}

// ParseStyle decodes a model's JSON answer into a profile. Missing scores or
// a missing description are errors; out-of-range scores are clamped.
func ParseStyle(raw string) (model.StyleProfile, error) {
	var resp styleResponse
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &resp); err != nil {
		return model.StyleProfile{}, fmt.Errorf("parse style response: %w", err)
	}

	scores := []*float64{resp.Formality, resp.Warmth, resp.Humor, resp.Brevity, resp.EmojiUsage}
	for _, s := range scores {
		if s == nil {
			return model.StyleProfile{}, errors.New("parse style response: missing score")
		}
	}

	profile := model.StyleProfile{
		Formality:   *resp.Formality,
		Warmth:      *resp.Warmth,
		Humor:       *resp.Humor,
		Brevity:     *resp.Brevity,
		EmojiUsage:  *resp.EmojiUsage,
		Keywords:    resp.Keywords,
		Description: resp.Description,
	}.Normalize()

	if err := profile.Validate(); err != nil {
		return model.StyleProfile{}, fmt.Errorf("parse style response: %w", err)
	}
	return profile, nil
}
