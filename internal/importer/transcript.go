// Package importer turns a pasted chat transcript into attributed messages.
//
// Each non-blank line becomes one message. Lines starting with "me:" or
// "myself:" are the user's; lines starting with "<contact name>:" are the
// contact's; anything else is kept verbatim and attributed to the contact.
// Prefixes match case-insensitively. Timestamps embedded in the text are
// not parsed: every message is stamped with the import time.
package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/stylemirror/internal/model"
)

var selfPrefixes = []string{"me:", "myself:"}

// Batch is one import run. Its token makes ids unique across imports.
type Batch struct {
	Token string
	At    time.Time
}

// NewBatch starts a batch stamped now.
func NewBatch() Batch {
	return Batch{
		Token: uuid.Must(uuid.NewV7()).String(),
		At:    time.Now(),
	}
}

// ContactID is the id given to the contact created by this batch.
func (b Batch) ContactID() string {
	return "imported-" + b.Token
}

// MessageID is the id of the message parsed from the given line index.
func (b Batch) MessageID(line int) string {
	return fmt.Sprintf("imported-%s-%d", b.Token, line)
}

// Parse parses text into messages using a fresh batch.
func Parse(contactName, text string) []model.Message {
	return NewBatch().Parse(contactName, text)
}

// Parse parses text into messages. It never fails: lines it cannot
// attribute are treated as coming from the contact.
func (b Batch) Parse(contactName, text string) []model.Message {
	contactPrefix := strings.ToLower(strings.TrimSpace(contactName)) + ":"

	var messages []model.Message
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		sender, body := classify(line, contactPrefix)
		if body == "" {
			// "Me:" with nothing after it carries no message.
			continue
		}

		messages = append(messages, model.Message{
			ID:        b.MessageID(i),
			Sender:    sender,
			Text:      body,
			Timestamp: b.At,
		})
	}
	return messages
}

func classify(line, contactPrefix string) (model.Sender, string) {
	lower := strings.ToLower(line)

	for _, p := range selfPrefixes {
		if strings.HasPrefix(lower, p) {
			return model.SenderSelf, afterColon(line)
		}
	}
	if contactPrefix != ":" && strings.HasPrefix(lower, contactPrefix) {
		return model.SenderOther, afterColon(line)
	}
	return model.SenderOther, line
}

func afterColon(line string) string {
	return strings.TrimSpace(line[strings.Index(line, ":")+1:])
}
