// Package store holds the authoritative in-memory copy of every contact.
package store

import (
	"errors"
	"sync"

	"github.com/capitalize-ai/stylemirror/internal/model"
)

// ErrNotFound is returned when no contact has the requested id.
var ErrNotFound = errors.New("contact not found")

// Mutator derives the next version of a contact from the current one.
// It runs under the store's write lock and must not call back into the store.
type Mutator func(model.Contact) model.Contact

// ConversationStore maps contact ids to contacts. Every write replaces one
// contact wholesale, so readers never see a half-applied change. Values
// handed in or out are deep copies.
type ConversationStore struct {
	mu       sync.RWMutex
	contacts map[string]model.Contact
	order    []string
}

// New creates an empty store.
func New() *ConversationStore {
	return &ConversationStore{
		contacts: make(map[string]model.Contact),
	}
}

// Get returns the contact with the given id.
func (s *ConversationStore) Get(id string) (model.Contact, error) {
	s.mu.RLock()
	c, ok := s.contacts[id]
	s.mu.RUnlock()

	if !ok {
		return model.Contact{}, ErrNotFound
	}
	return c.Clone(), nil
}

// Upsert inserts the contact, or replaces the existing entry with the same id
// in place. New contacts go to the end of the list.
func (s *ConversationStore) Upsert(c model.Contact) {
	s.put(c, false)
}

// UpsertFirst is Upsert, but a new contact goes to the front of the list.
func (s *ConversationStore) UpsertFirst(c model.Contact) {
	s.put(c, true)
}

func (s *ConversationStore) put(c model.Contact, first bool) {
	c = c.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contacts[c.ID]; !exists {
		if first {
			s.order = append([]string{c.ID}, s.order...)
		} else {
			s.order = append(s.order, c.ID)
		}
	}
	s.contacts[c.ID] = c
}

// Update applies fn to the current contact and stores the result. It reports
// false, without calling fn, when the contact does not exist.
func (s *ConversationStore) Update(id string, fn Mutator) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.contacts[id]
	if !ok {
		return false
	}

	next := fn(current.Clone())
	next.ID = id
	s.contacts[id] = next.Clone()
	return true
}

// List returns every contact in list order.
func (s *ConversationStore) List() []model.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Contact, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.contacts[id].Clone())
	}
	return out
}

// Len returns the number of contacts.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts)
}
