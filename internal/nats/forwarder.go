package nats

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/stylemirror/internal/model"
	"github.com/capitalize-ai/stylemirror/pkg/logger"
	"github.com/capitalize-ai/stylemirror/pkg/metrics"
)

// EventPublisher persists a single contact event.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.ContactEvent) (uint64, error)
}

// Subscriber is the bus side of the forwarder.
type Subscriber interface {
	Subscribe(prefix string, bufSize int) (<-chan model.ContactEvent, func())
}

const (
	forwardBuffer  = 256
	publishTimeout = 5 * time.Second
)

// Forwarder copies contact events from the in-process bus to JetStream.
type Forwarder struct {
	publisher EventPublisher
	logger    *logger.Logger
}

// NewForwarder creates a forwarder that publishes through p.
func NewForwarder(p EventPublisher, log *logger.Logger) *Forwarder {
	return &Forwarder{publisher: p, logger: log}
}

// Run forwards events until ctx is cancelled. Publish failures are logged
// and counted; they never stop the loop.
func (f *Forwarder) Run(ctx context.Context, sub Subscriber) {
	events, unsubscribe := sub.Subscribe(model.EventNamespace, forwardBuffer)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			f.forward(ctx, evt)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, evt model.ContactEvent) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	seq, err := f.publisher.PublishEvent(pubCtx, &evt)
	if err != nil {
		metrics.NATSPublished.WithLabelValues("error").Inc()
		f.logger.Warn("failed to forward event",
			zap.String("contact", evt.ContactID),
			zap.String("type", string(evt.Type)),
			zap.Error(err),
		)
		return
	}
	metrics.NATSPublished.WithLabelValues("ok").Inc()
	f.logger.Debug("event forwarded",
		zap.String("subject", EventSubject(evt.ContactID, evt.Type)),
		zap.Uint64("sequence", seq),
	)
}
