package model

import (
	"net/url"
	"time"
)

// AnalysisState is the style pipeline state of a contact.
type AnalysisState string

const (
	AnalysisIdle      AnalysisState = "idle"
	AnalysisRunning   AnalysisState = "analyzing"
	AnalysisCompleted AnalysisState = "analyzed"
)

// DraftState is the reply pipeline state of a contact.
type DraftState string

const (
	DraftNone                 DraftState = "none"
	DraftAwaitingConfirmation DraftState = "awaiting-confirmation"
	DraftGenerating           DraftState = "drafting"
	DraftReady                DraftState = "draft-ready"
)

// Contact is one conversation thread and everything inferred about it.
type Contact struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	AvatarURL      string        `json:"avatar_url"`
	Messages       []Message     `json:"messages"`
	Style          *StyleProfile `json:"style,omitempty"`
	LastAnalyzedAt *time.Time    `json:"last_analyzed_at,omitempty"`
	Draft          string        `json:"draft,omitempty"`
	Analysis       AnalysisState `json:"analysis"`
}

// Analyzing reports whether a style analysis is in flight.
func (c *Contact) Analyzing() bool {
	return c.Analysis == AnalysisRunning
}

// HasDraft reports whether a generated reply is pending.
func (c *Contact) HasDraft() bool {
	return c.Draft != ""
}

// SelfMessages returns the messages the user wrote, in order.
func (c *Contact) SelfMessages() []Message {
	return FilterSender(c.Messages, SenderSelf)
}

// RecentMessages returns at most the last n messages.
func (c *Contact) RecentMessages(n int) []Message {
	if n <= 0 || len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// LastIncoming returns the most recent message from the contact, if any.
func (c *Contact) LastIncoming() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Sender == SenderOther {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// Clone returns a deep copy that shares no mutable state with c.
func (c Contact) Clone() Contact {
	out := c
	out.Messages = append([]Message(nil), c.Messages...)
	out.Style = c.Style.Clone()
	if c.LastAnalyzedAt != nil {
		t := *c.LastAnalyzedAt
		out.LastAnalyzedAt = &t
	}
	if out.Analysis == "" {
		out.Analysis = AnalysisIdle
	}
	return out
}

// GeneratedAvatarURL returns a placeholder avatar built from the contact's name.
func GeneratedAvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}

// FilterSender returns the messages authored by sender.
func FilterSender(messages []Message, sender Sender) []Message {
	var out []Message
	for _, m := range messages {
		if m.Sender == sender {
			out = append(out, m)
		}
	}
	return out
}

// ContactView is what the rendering layer needs to draw one contact.
type ContactView struct {
	Contact
	Active     bool       `json:"active"`
	Generating bool       `json:"generating"`
	DraftState DraftState `json:"draft_state"`
	// PendingIncoming is the incoming text awaiting the user's go-ahead to draft a reply.
	PendingIncoming string `json:"pending_incoming,omitempty"`
}

// ListContactsResponse is the response for listing contacts.
type ListContactsResponse struct {
	Contacts []ContactView `json:"contacts"`
	ActiveID string        `json:"active_id"`
	Total    int           `json:"total"`
}
