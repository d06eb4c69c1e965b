// Package seed provides the contacts the application starts with.
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/capitalize-ai/stylemirror/internal/model"
)

//go:embed contacts.toml
var defaultContacts string

type file struct {
	Contacts []contactEntry `toml:"contact"`
}

type contactEntry struct {
	ID        string         `toml:"id"`
	Name      string         `toml:"name"`
	AvatarURL string         `toml:"avatar_url"`
	Messages  []messageEntry `toml:"message"`
}

type messageEntry struct {
	ID        string    `toml:"id"`
	Sender    string    `toml:"sender"`
	Text      string    `toml:"text"`
	Timestamp time.Time `toml:"timestamp"`
}

// Default returns the built-in seed contacts.
func Default() ([]model.Contact, error) {
	return Parse(defaultContacts)
}

// Load reads seed contacts from a TOML file, or the built-in set when path is empty.
func Load(path string) ([]model.Contact, error) {
	if path == "" {
		return Default()
	}
	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return f.contacts()
}

// Parse decodes seed contacts from TOML text.
func Parse(data string) ([]model.Contact, error) {
	var f file
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("decode seed contacts: %w", err)
	}
	return f.contacts()
}

func (f file) contacts() ([]model.Contact, error) {
	seen := make(map[string]bool, len(f.Contacts))
	out := make([]model.Contact, 0, len(f.Contacts))

	for i, e := range f.Contacts {
		if e.ID == "" || e.Name == "" {
			return nil, fmt.Errorf("seed contact %d: id and name are required", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("seed contact %q: duplicate id", e.ID)
		}
		seen[e.ID] = true

		c := model.Contact{
			ID:        e.ID,
			Name:      e.Name,
			AvatarURL: e.AvatarURL,
			Messages:  make([]model.Message, 0, len(e.Messages)),
			Analysis:  model.AnalysisIdle,
		}
		if c.AvatarURL == "" {
			c.AvatarURL = model.GeneratedAvatarURL(e.Name)
		}

		for j, m := range e.Messages {
			sender := model.Sender(m.Sender)
			if sender != model.SenderSelf && sender != model.SenderOther {
				return nil, fmt.Errorf("seed contact %q message %d: unknown sender %q", e.ID, j, m.Sender)
			}
			id := m.ID
			if id == "" {
				id = fmt.Sprintf("%s-%d", e.ID, j+1)
			}
			c.Messages = append(c.Messages, model.Message{
				ID:        id,
				Sender:    sender,
				Text:      m.Text,
				Timestamp: m.Timestamp,
			})
		}
		out = append(out, c)
	}
	return out, nil
}
