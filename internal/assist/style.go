package assist

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/stylemirror/internal/model"
	"github.com/capitalize-ai/stylemirror/pkg/logger"
	"github.com/capitalize-ai/stylemirror/pkg/metrics"
	"github.com/capitalize-ai/stylemirror/pkg/tracing"
)

// StyleClient infers a StyleProfile from the messages the user wrote.
type StyleClient struct {
	backend Backend
	log     *logger.Logger
}

// NewStyleClient creates a style client. A nil backend means no credential
// is configured and every analysis uses the mock profile.
func NewStyleClient(backend Backend, log *logger.Logger) *StyleClient {
	return &StyleClient{backend: backend, log: log}
}

// AnalyzeStyle returns a profile for the user's side of the conversation.
// It always returns a profile with valid scores.
func (c *StyleClient) AnalyzeStyle(ctx context.Context, contactName string, messages []model.Message) model.StyleProfile {
	text := selfText(messages)
	if text == "" {
		metrics.StyleAnalysesTotal.WithLabelValues(metrics.SourceNeutral).Inc()
		return model.NeutralProfile()
	}

	if c.backend == nil {
		c.log.Warn("style inference unavailable, using demo profile",
			zap.String("contact", contactName),
			zap.String("reason", "no credential"),
		)
		metrics.StyleAnalysesTotal.WithLabelValues(metrics.SourceFallback).Inc()
		return MockProfile(contactName)
	}

	ctx, span := tracing.Start(ctx, "assist.analyze_style",
		attribute.String("contact", contactName),
		attribute.Int("self_messages", len(model.FilterSender(messages, model.SenderSelf))),
	)
	profile, err := c.backend.InferStyle(ctx, contactName, text)
	tracing.End(span, err)

	if err != nil {
		c.log.Warn("style inference failed, using demo profile",
			zap.String("contact", contactName),
			zap.String("reason", "service failure"),
			zap.Error(err),
		)
		metrics.StyleAnalysesTotal.WithLabelValues(metrics.SourceFallback).Inc()
		return MockProfile(contactName)
	}

	metrics.StyleAnalysesTotal.WithLabelValues(metrics.SourceLive).Inc()
	return profile
}
