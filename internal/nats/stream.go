package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/stylemirror/internal/model"
)

const (
	// StreamName is the name of the contact events stream.
	StreamName = "STYLEMIRROR"

	// SubjectPrefix is the prefix for all contact event subjects.
	SubjectPrefix = "contact"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the contact events stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024, // 1GB
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Contact state changes from the conversation engine",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an event: contact.<id>.<kind>.
func EventSubject(contactID string, eventType model.EventType) string {
	kind := strings.TrimPrefix(string(eventType), model.EventNamespace)
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, subjectToken(contactID), subjectToken(kind))
}

// ContactFilter returns the filter subject for all events of a contact.
func ContactFilter(contactID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, subjectToken(contactID))
}

// subjectToken makes s safe to use as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// PublishEvent publishes an event to JetStream.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.ContactEvent) (uint64, error) {
	subject := EventSubject(event.ContactID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// StoredEvent is a contact event together with its stream sequence.
type StoredEvent struct {
	model.ContactEvent
	Sequence uint64 `json:"sequence"`
}

// History retrieves up to limit events of a contact stored after afterSequence.
// It reports whether more events may be available.
func (m *StreamManager) History(ctx context.Context, contactID string, afterSequence uint64, limit int) ([]StoredEvent, bool, error) {
	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{ContactFilter(contactID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = afterSequence + 1
	}

	consumer, err := m.client.JetStream().OrderedConsumer(ctx, StreamName, cfg)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch events: %w", err)
	}

	var events []StoredEvent
	for msg := range batch.Messages() {
		var stored StoredEvent
		if err := json.Unmarshal(msg.Data(), &stored.ContactEvent); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			stored.Sequence = meta.Sequence.Stream
		}
		events = append(events, stored)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, false, fmt.Errorf("batch error: %w", err)
	}

	return events, len(events) == limit, nil
}
