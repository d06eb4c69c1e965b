package assist

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/stylemirror/internal/llm"
	"github.com/capitalize-ai/stylemirror/internal/model"
	"github.com/capitalize-ai/stylemirror/pkg/logger"
	"github.com/capitalize-ai/stylemirror/pkg/metrics"
	"github.com/capitalize-ai/stylemirror/pkg/tracing"
)

// ReplyClient drafts a reply in the user's style for a contact.
type ReplyClient struct {
	backend Backend
	log     *logger.Logger
}

// NewReplyClient creates a reply client. A nil backend means every draft
// comes from MockReply.
func NewReplyClient(backend Backend, log *logger.Logger) *ReplyClient {
	return &ReplyClient{backend: backend, log: log}
}

// GenerateReply returns a draft reply to incoming. The result is never empty.
func (c *ReplyClient) GenerateReply(ctx context.Context, contact model.Contact, incoming string) string {
	if c.backend == nil {
		c.log.Warn("reply generation unavailable, using demo reply",
			zap.String("contact", contact.ID),
			zap.String("reason", "no credential"),
		)
		metrics.ReplyDraftsTotal.WithLabelValues(metrics.SourceFallback).Inc()
		return MockReply(incoming, contact.Style)
	}

	ctx, span := tracing.Start(ctx, "assist.generate_reply",
		attribute.String("contact", contact.ID),
		attribute.Bool("has_style", contact.Style != nil),
	)
	reply, err := c.backend.ContinueText(ctx, ReplyPrompt(contact, incoming))
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = llm.ErrEmptyResponse
	}
	tracing.End(span, err)

	if err != nil {
		c.log.Warn("reply generation failed, using demo reply",
			zap.String("contact", contact.ID),
			zap.String("reason", "service failure"),
			zap.Error(err),
		)
		metrics.ReplyDraftsTotal.WithLabelValues(metrics.SourceFallback).Inc()
		return MockReply(incoming, contact.Style)
	}

	metrics.ReplyDraftsTotal.WithLabelValues(metrics.SourceLive).Inc()
	return reply
}
