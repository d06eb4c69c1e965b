// Package service sequences user actions into store mutations and calls to
// the style and reply clients.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/capitalize-ai/stylemirror/internal/importer"
	"github.com/capitalize-ai/stylemirror/internal/model"
	"github.com/capitalize-ai/stylemirror/internal/store"
	"github.com/capitalize-ai/stylemirror/pkg/logger"
	"github.com/capitalize-ai/stylemirror/pkg/metrics"
)

var (
	// ErrContactNotFound is returned when a workflow names an unknown contact.
	ErrContactNotFound = errors.New("contact not found")
	// ErrNoActiveContact is returned by workflows that act on the active contact when none is selected.
	ErrNoActiveContact = errors.New("no active contact")
)

// Reasons recorded when a workflow call changes nothing.
const (
	reasonBlankInput = "blank_input"
	reasonInFlight   = "in_flight"
	reasonNothing    = "nothing_pending"
)

// StyleAnalyzer produces a style profile. It must always return a valid profile.
type StyleAnalyzer interface {
	AnalyzeStyle(ctx context.Context, contactName string, messages []model.Message) model.StyleProfile
}

// ReplyGenerator drafts a reply. It must always return a non-empty reply.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, contact model.Contact, incoming string) string
}

// Publisher receives contact state-change events.
type Publisher interface {
	Publish(evt model.ContactEvent)
}

// Draft is a generated reply and the contact it was generated for.
type Draft struct {
	ContactID string `json:"contact_id"`
	Text      string `json:"draft"`
}

// PendingIncoming is an incoming message waiting for the user to ask for a draft.
type PendingIncoming struct {
	ContactID string
	Text      string
}

// Orchestrator is the only mutation surface over the conversation store.
//
// Style analysis is guarded per contact by the contact's analysis state.
// Draft generation is guarded by one marker shared by all contacts.
type Orchestrator struct {
	store  *store.ConversationStore
	style  StyleAnalyzer
	reply  ReplyGenerator
	events Publisher
	logger *logger.Logger
	now    func() time.Time

	mu         sync.Mutex
	activeID   string
	generating string // contact whose draft is in flight, "" when none
	pending    *PendingIncoming

	background errgroup.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher sends state-change events to p.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator over s.
func NewOrchestrator(s *store.ConversationStore, style StyleAnalyzer, reply ReplyGenerator, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  s,
		style:  style,
		reply:  reply,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Load inserts the seed contacts and selects the first one.
func (o *Orchestrator) Load(ctx context.Context, contacts []model.Contact) error {
	for _, c := range contacts {
		o.store.Upsert(c)
	}
	if len(contacts) == 0 {
		return nil
	}
	return o.Select(ctx, contacts[0].ID)
}

// ActiveID returns the active contact id, or "" when none is selected.
func (o *Orchestrator) ActiveID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeID
}

// Generating reports whether a draft is being generated for any contact.
func (o *Orchestrator) Generating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generating != ""
}

// Pending returns the incoming message awaiting confirmation, if any.
func (o *Orchestrator) Pending() (PendingIncoming, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return PendingIncoming{}, false
	}
	return *o.pending, true
}

// Select makes id the active contact. Selecting a contact with no profile
// that is not already being analyzed starts an analysis in the background.
// Selecting a different contact discards any pending confirmation.
func (o *Orchestrator) Select(ctx context.Context, id string) error {
	c, err := o.get(id)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if o.activeID == id {
		o.mu.Unlock()
		return nil
	}
	o.activeID = id
	discarded := o.pending
	o.pending = nil
	o.mu.Unlock()

	if discarded != nil {
		o.emit(discarded.ContactID, model.EventIncomingCleared, map[string]any{"reason": "contact_switched"})
	}
	o.emit(id, model.EventContactSelected, nil)

	if c.Style == nil && !c.Analyzing() {
		if _, err := o.StartAnalyze(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Analyze runs a style analysis for id and waits for it. It reports false
// without doing anything when an analysis for id is already in flight.
func (o *Orchestrator) Analyze(ctx context.Context, id string) (bool, error) {
	c, started, err := o.beginAnalysis(id)
	if err != nil || !started {
		return started, err
	}
	return true, o.finishAnalysis(ctx, c)
}

// StartAnalyze is Analyze without the wait: the analysis runs in the
// background and outlives ctx's cancellation. Use Wait to drain it.
func (o *Orchestrator) StartAnalyze(ctx context.Context, id string) (bool, error) {
	c, started, err := o.beginAnalysis(id)
	if err != nil || !started {
		return started, err
	}

	bg := context.WithoutCancel(ctx)
	o.background.Go(func() error {
		if err := o.finishAnalysis(bg, c); err != nil {
			o.logger.WithContact(c.ID).Error("background style analysis failed", zap.Error(err))
		}
		return nil
	})
	return true, nil
}

// ContactCount returns how many contacts are loaded.
func (o *Orchestrator) ContactCount() int {
	return o.store.Len()
}

// Wait blocks until every background analysis has finished.
func (o *Orchestrator) Wait() {
	_ = o.background.Wait()
}

// beginAnalysis flips the contact to analyzing unless it already is. The
// check and the flip happen under the store lock.
func (o *Orchestrator) beginAnalysis(id string) (model.Contact, bool, error) {
	var (
		started  bool
		snapshot model.Contact
	)
	ok := o.store.Update(id, func(c model.Contact) model.Contact {
		if c.Analyzing() {
			return c
		}
		started = true
		c.Analysis = model.AnalysisRunning
		snapshot = c.Clone()
		return c
	})
	if !ok {
		return model.Contact{}, false, ErrContactNotFound
	}
	if !started {
		o.noop("analyze", reasonInFlight, id)
		return model.Contact{}, false, nil
	}

	metrics.AnalysesInFlight.Inc()
	o.emit(id, model.EventAnalysisStarted, nil)
	return snapshot, true, nil
}

func (o *Orchestrator) finishAnalysis(ctx context.Context, c model.Contact) error {
	defer metrics.AnalysesInFlight.Dec()

	profile, err := o.inferStyle(ctx, c)
	if err != nil {
		// Keep whatever profile the contact had before.
		o.store.Update(c.ID, func(cur model.Contact) model.Contact {
			cur.Analysis = model.AnalysisIdle
			if cur.Style != nil {
				cur.Analysis = model.AnalysisCompleted
			}
			return cur
		})
		o.emit(c.ID, model.EventAnalysisFailed, map[string]any{"error": err.Error()})
		return fmt.Errorf("analyze %s: %w", c.ID, err)
	}

	at := o.now()
	o.store.Update(c.ID, func(cur model.Contact) model.Contact {
		cur.Style = &profile
		cur.LastAnalyzedAt = &at
		cur.Analysis = model.AnalysisCompleted
		return cur
	})
	o.emit(c.ID, model.EventAnalysisCompleted, map[string]any{
		"formality": profile.Formality,
		"warmth":    profile.Warmth,
	})
	return nil
}

func (o *Orchestrator) inferStyle(ctx context.Context, c model.Contact) (profile model.StyleProfile, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("style analysis panicked: %v", r)
		}
	}()
	o.logger.WithContact(c.ID).Debug("inferring style",
		zap.Int("messages", len(c.Messages)),
		zap.Int("self_messages", len(c.SelfMessages())),
	)
	return o.style.AnalyzeStyle(ctx, c.Name, c.Messages), nil
}

// Send appends a message from the user to the active contact and clears its
// pending draft. Blank text is ignored and reported as false.
func (o *Orchestrator) Send(ctx context.Context, text string) (model.Message, bool, error) {
	if strings.TrimSpace(text) == "" {
		o.noop("send", reasonBlankInput, "")
		return model.Message{}, false, nil
	}

	id := o.ActiveID()
	if id == "" {
		return model.Message{}, false, ErrNoActiveContact
	}

	msg := o.newMessage(model.SenderSelf, text)
	hadDraft := false
	ok := o.store.Update(id, func(c model.Contact) model.Contact {
		hadDraft = c.HasDraft()
		c.Messages = append(c.Messages, msg)
		c.Draft = ""
		return c
	})
	if !ok {
		return model.Message{}, false, ErrContactNotFound
	}

	o.emit(id, model.EventMessageAppended, map[string]any{"message_id": msg.ID, "sender": msg.Sender})
	if hadDraft {
		o.emit(id, model.EventDraftCleared, map[string]any{"reason": "superseded"})
	}
	return msg, true, nil
}

// SimulateIncoming appends a message from the active contact and records it
// as waiting for confirmation. It does not request a draft.
func (o *Orchestrator) SimulateIncoming(ctx context.Context, text string) (model.Message, bool, error) {
	if strings.TrimSpace(text) == "" {
		o.noop("simulate_incoming", reasonBlankInput, "")
		return model.Message{}, false, nil
	}

	id := o.ActiveID()
	if id == "" {
		return model.Message{}, false, ErrNoActiveContact
	}

	msg := o.newMessage(model.SenderOther, text)
	ok := o.store.Update(id, func(c model.Contact) model.Contact {
		c.Messages = append(c.Messages, msg)
		return c
	})
	if !ok {
		return model.Message{}, false, ErrContactNotFound
	}

	o.mu.Lock()
	// A switch may have happened while appending; only the active contact
	// can hold a pending confirmation.
	if o.activeID == id {
		o.pending = &PendingIncoming{ContactID: id, Text: text}
	}
	o.mu.Unlock()

	o.emit(id, model.EventMessageAppended, map[string]any{"message_id": msg.ID, "sender": msg.Sender})
	o.emit(id, model.EventIncomingPending, map[string]any{"text": text})
	return msg, true, nil
}

// ConfirmIncoming drafts a reply to the pending incoming message.
func (o *Orchestrator) ConfirmIncoming(ctx context.Context) (Draft, bool, error) {
	o.mu.Lock()
	p := o.pending
	o.pending = nil
	o.mu.Unlock()

	if p == nil {
		o.noop("confirm_incoming", reasonNothing, "")
		return Draft{}, false, nil
	}
	o.emit(p.ContactID, model.EventIncomingCleared, map[string]any{"reason": "confirmed"})
	return o.requestDraft(ctx, p.ContactID, p.Text)
}

// DismissIncoming drops the pending incoming message without drafting.
func (o *Orchestrator) DismissIncoming(ctx context.Context) bool {
	o.mu.Lock()
	p := o.pending
	o.pending = nil
	o.mu.Unlock()

	if p == nil {
		o.noop("dismiss_incoming", reasonNothing, "")
		return false
	}
	o.emit(p.ContactID, model.EventIncomingCleared, map[string]any{"reason": "dismissed"})
	return true
}

// RequestDraft generates a reply to incomingText for the active contact and
// stores it as the contact's draft. Blank incomingText replies to the
// contact's latest incoming message. Only one draft is generated at a time:
// while one is in flight further requests report false. Cancelling ctx does
// not abort a generation that has started.
func (o *Orchestrator) RequestDraft(ctx context.Context, incomingText string) (Draft, bool, error) {
	id := o.ActiveID()
	if id == "" {
		return Draft{}, false, ErrNoActiveContact
	}
	return o.requestDraft(ctx, id, incomingText)
}

func (o *Orchestrator) requestDraft(ctx context.Context, id, incomingText string) (Draft, bool, error) {
	o.mu.Lock()
	if o.generating != "" {
		o.mu.Unlock()
		o.noop("request_draft", reasonInFlight, id)
		return Draft{}, false, nil
	}
	o.generating = id
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.generating = ""
		o.mu.Unlock()
	}()

	// Re-read so the prompt sees every message appended so far.
	c, err := o.get(id)
	if err != nil {
		return Draft{}, false, err
	}

	if strings.TrimSpace(incomingText) == "" {
		last, ok := c.LastIncoming()
		if !ok {
			o.noop("request_draft", reasonBlankInput, id)
			return Draft{}, false, nil
		}
		incomingText = last.Text
	}

	o.emit(id, model.EventDraftStarted, nil)

	// The reply client's own timeout bounds the call.
	draft, err := o.generateReply(context.WithoutCancel(ctx), c, incomingText)
	if err != nil {
		o.logger.WithContact(id).Error("draft generation failed", zap.Error(err))
		o.emit(id, model.EventDraftCleared, map[string]any{"reason": "failed"})
		return Draft{}, false, fmt.Errorf("draft %s: %w", id, err)
	}

	// The result belongs to the contact that asked, even if it is no longer active.
	o.store.Update(id, func(cur model.Contact) model.Contact {
		cur.Draft = draft
		return cur
	})
	o.emit(id, model.EventDraftReady, map[string]any{"draft": draft})
	return Draft{ContactID: id, Text: draft}, true, nil
}

func (o *Orchestrator) generateReply(ctx context.Context, c model.Contact, incoming string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reply generation panicked: %v", r)
		}
	}()
	return o.reply.GenerateReply(ctx, c, incoming), nil
}

// DiscardDraft clears the active contact's pending draft.
func (o *Orchestrator) DiscardDraft(ctx context.Context) (bool, error) {
	id := o.ActiveID()
	if id == "" {
		return false, ErrNoActiveContact
	}

	cleared := false
	ok := o.store.Update(id, func(c model.Contact) model.Contact {
		cleared = c.HasDraft()
		c.Draft = ""
		return c
	})
	if !ok {
		return false, ErrContactNotFound
	}
	if !cleared {
		o.noop("discard_draft", reasonNothing, id)
		return false, nil
	}
	o.emit(id, model.EventDraftCleared, map[string]any{"reason": "discarded"})
	return true, nil
}

// Import creates a contact from a pasted transcript, makes it active and
// starts analyzing it. Blank name or text is ignored and reported as false.
func (o *Orchestrator) Import(ctx context.Context, name, transcript string) (model.Contact, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(transcript) == "" {
		o.noop("import", reasonBlankInput, "")
		return model.Contact{}, false, nil
	}

	batch := importer.NewBatch()
	c := model.Contact{
		ID:        batch.ContactID(),
		Name:      name,
		AvatarURL: model.GeneratedAvatarURL(name),
		Messages:  batch.Parse(name, transcript),
		Analysis:  model.AnalysisIdle,
	}
	o.store.UpsertFirst(c)

	o.logger.WithContact(c.ID).Info("contact imported",
		zap.Int("messages", len(c.Messages)),
	)
	o.emit(c.ID, model.EventContactImported, map[string]any{"name": name, "messages": len(c.Messages)})

	if err := o.Select(ctx, c.ID); err != nil {
		return model.Contact{}, false, err
	}
	return c, true, nil
}

// View returns the contact with its rendering state.
func (o *Orchestrator) View(id string) (model.ContactView, error) {
	c, err := o.get(id)
	if err != nil {
		return model.ContactView{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.viewLocked(c), nil
}

// List returns every contact in list order with its rendering state.
func (o *Orchestrator) List() model.ListContactsResponse {
	contacts := o.store.List()

	o.mu.Lock()
	defer o.mu.Unlock()

	views := make([]model.ContactView, len(contacts))
	for i, c := range contacts {
		views[i] = o.viewLocked(c)
	}
	return model.ListContactsResponse{
		Contacts: views,
		ActiveID: o.activeID,
		Total:    len(views),
	}
}

func (o *Orchestrator) viewLocked(c model.Contact) model.ContactView {
	v := model.ContactView{
		Contact:    c,
		Active:     c.ID == o.activeID,
		Generating: c.ID == o.generating,
		DraftState: model.DraftNone,
	}
	if o.pending != nil && o.pending.ContactID == c.ID {
		v.PendingIncoming = o.pending.Text
	}

	switch {
	case v.Generating:
		v.DraftState = model.DraftGenerating
	case c.HasDraft():
		v.DraftState = model.DraftReady
	case v.PendingIncoming != "":
		v.DraftState = model.DraftAwaitingConfirmation
	}
	return v
}

func (o *Orchestrator) get(id string) (model.Contact, error) {
	c, err := o.store.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Contact{}, ErrContactNotFound
	}
	return c, err
}

func (o *Orchestrator) newMessage(sender model.Sender, text string) model.Message {
	return model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Sender:    sender,
		Text:      text,
		Timestamp: o.now(),
	}
}

func (o *Orchestrator) emit(contactID string, t model.EventType, metadata map[string]any) {
	if o.events == nil {
		return
	}
	o.events.Publish(model.ContactEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ContactID: contactID,
		Type:      t,
		Metadata:  metadata,
		CreatedAt: o.now(),
	})
}

func (o *Orchestrator) noop(workflow, reason, contactID string) {
	metrics.RecordNoop(workflow, reason)
	o.logger.Debug("workflow no-op",
		zap.String("workflow", workflow),
		zap.String("reason", reason),
		zap.String("contact", contactID),
	)
}
