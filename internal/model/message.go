// Package model defines data structures for contacts, messages and style profiles.
package model

import (
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	// SenderSelf is the user of the application.
	SenderSelf Sender = "self"
	// SenderOther is the contact on the other side of the thread.
	SenderOther Sender = "other"
)

// Message is one entry in a contact's thread. Messages are never modified
// after creation; conversation order is the order they were appended.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SendMessageRequest is the request to send a message as the user.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// IncomingMessageRequest is the request to simulate a message from the active contact.
type IncomingMessageRequest struct {
	Text string `json:"text"`
}

// DraftRequest is the request to generate a draft reply.
type DraftRequest struct {
	IncomingText string `json:"incoming_text"`
}

// ImportRequest is the request to create a contact from a pasted transcript.
type ImportRequest struct {
	Name       string `json:"name"`
	Transcript string `json:"transcript"`
}

// ErrorEvent represents an error returned to the client.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
