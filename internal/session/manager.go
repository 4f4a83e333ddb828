// Package session implements the press session state machine: connect and
// disconnect lifecycle, transcript rehydration, streamed conversation turns,
// and verified-fix capture into the per-machine knowledge base.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/screentech/pressassist/internal/domain"
	"github.com/screentech/pressassist/internal/identity"
	"github.com/screentech/pressassist/internal/provider"
	"github.com/screentech/pressassist/internal/servicelog"
	"github.com/screentech/pressassist/internal/store"
)

var (
	// ErrNotConnected is returned for operations that require an active press.
	ErrNotConnected = errors.New("no press connected")
	// ErrReplyInFlight rejects a send while a previous reply is still streaming.
	ErrReplyInFlight = errors.New("a reply is already streaming")
	// ErrMessageNotFound is returned when a message ID is not in the transcript.
	ErrMessageNotFound = errors.New("message not found in transcript")
)

// Session is the ephemeral in-memory state of one connected press: its
// profile, transcript, and the provider chat handle initialized from the
// transcript and knowledge snapshot taken at connect time.
type Session struct {
	Profile    domain.PressProfile
	transcript []domain.Message
	chat       provider.Chat
}

// Manager owns the single active session and orchestrates all transitions.
// Exactly one session exists at a time; connect overwrites any previous one.
type Manager struct {
	repo        store.Repository
	provider    provider.Client
	hub         *Hub
	svclog      servicelog.Logger
	temperature float32

	mu      sync.Mutex
	active  *Session
	sending bool
}

// NewManager creates a session manager. The hub and service logger may be
// shared with the HTTP layer.
func NewManager(repo store.Repository, providerClient provider.Client, hub *Hub, svclog servicelog.Logger, temperature float32) *Manager {
	if hub == nil {
		hub = NewHub()
	}
	if svclog == nil {
		svclog, _ = servicelog.New(servicelog.Config{}, nil)
	}
	return &Manager{
		repo:        repo,
		provider:    providerClient,
		hub:         hub,
		svclog:      svclog,
		temperature: temperature,
	}
}

// Hub exposes the transcript event hub for websocket subscribers.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Connect resolves a serial number and transitions Disconnected → Connected.
// Any previously active session is replaced.
func (m *Manager) Connect(ctx context.Context, rawSerial string) (domain.PressProfile, error) {
	profile, err := identity.Resolve(rawSerial)
	if err != nil {
		return domain.PressProfile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.connectLocked(ctx, profile); err != nil {
		return domain.PressProfile{}, err
	}
	return profile, nil
}

// Resume re-connects the press recorded in the durable active-profile
// pointer, if any. Called once at process start. Returns true when a session
// was restored.
func (m *Manager) Resume(ctx context.Context) (bool, error) {
	profile, err := m.repo.GetActiveProfile(ctx)
	if err != nil {
		return false, fmt.Errorf("load active profile: %w", err)
	}
	if profile == nil {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.connectLocked(ctx, *profile); err != nil {
		return false, err
	}
	slog.Info("Resumed previous session", "serial", profile.SerialNumber)
	return true, nil
}

// connectLocked rehydrates transcript and knowledge for the profile's serial,
// synthesizes a greeting when no history exists, starts a fresh provider chat
// bound to that snapshot, and records the active-profile pointer.
func (m *Manager) connectLocked(ctx context.Context, profile domain.PressProfile) error {
	transcript, err := m.repo.GetTranscript(ctx, profile.SerialNumber)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	dirty := false
	if repaired := normalizeTranscript(transcript); repaired > 0 {
		slog.Warn("Finalized stale pending messages from interrupted session",
			"serial", profile.SerialNumber, "count", repaired)
		dirty = true
	}

	if len(transcript) == 0 {
		transcript = []domain.Message{{
			ID:        uuid.NewString(),
			Sender:    domain.SenderAssistant,
			Text:      greetingText(profile),
			Timestamp: time.Now(),
		}}
		dirty = true
	}

	knowledge, err := m.repo.GetKnowledge(ctx, profile.SerialNumber)
	if err != nil {
		return fmt.Errorf("load knowledge base: %w", err)
	}

	chat, err := m.provider.StartChat(ctx, provider.ChatConfig{
		SystemInstruction: buildSystemContext(profile, knowledge),
		History:           formatHistory(transcript),
		Temperature:       m.temperature,
	})
	if err != nil {
		return fmt.Errorf("initialize chat session: %w", err)
	}

	if err := m.repo.SetActiveProfile(ctx, &profile); err != nil {
		return fmt.Errorf("persist active profile: %w", err)
	}
	if dirty {
		if err := m.repo.SaveTranscript(ctx, profile.SerialNumber, transcript); err != nil {
			return fmt.Errorf("persist transcript: %w", err)
		}
	}

	m.active = &Session{Profile: profile, transcript: transcript, chat: chat}
	m.sending = false
	m.hub.Publish(Event{Type: EventConnected, Serial: profile.SerialNumber})
	slog.Info("Press connected",
		"serial", profile.SerialNumber,
		"model", profile.Model,
		"history", len(transcript),
		"known_fixes", len(knowledge))
	return nil
}

// Disconnect transitions Connected → Disconnected. The durable transcript and
// knowledge base survive; only the pointer and the in-memory state go away.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}

	serial := m.active.Profile.SerialNumber
	if err := m.repo.ClearActiveProfile(ctx); err != nil {
		return fmt.Errorf("clear active profile: %w", err)
	}
	m.active = nil
	m.sending = false
	m.hub.Publish(Event{Type: EventDisconnected, Serial: serial})
	slog.Info("Press disconnected", "serial", serial)
	return nil
}

// ClearHistory destroys the durable transcript for the active serial and
// re-initializes the chat with an empty history. The knowledge base is
// preserved and still feeds the new chat's context. There is no undo; the
// API layer requires explicit operator confirmation.
func (m *Manager) ClearHistory(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ErrNotConnected
	}
	if m.sending {
		return ErrReplyInFlight
	}

	profile := m.active.Profile
	knowledge, err := m.repo.GetKnowledge(ctx, profile.SerialNumber)
	if err != nil {
		return fmt.Errorf("load knowledge base: %w", err)
	}

	// Start the replacement chat before touching durable state so a
	// provider failure leaves the old transcript intact.
	chat, err := m.provider.StartChat(ctx, provider.ChatConfig{
		SystemInstruction: buildSystemContext(profile, knowledge),
		Temperature:       m.temperature,
	})
	if err != nil {
		return fmt.Errorf("initialize chat session: %w", err)
	}

	if err := m.repo.DeleteTranscript(ctx, profile.SerialNumber); err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}

	reset := []domain.Message{{
		ID:        uuid.NewString(),
		Sender:    domain.SenderAssistant,
		Text:      historyClearedText(profile),
		Timestamp: time.Now(),
	}}
	if err := m.repo.SaveTranscript(ctx, profile.SerialNumber, reset); err != nil {
		return fmt.Errorf("persist reset transcript: %w", err)
	}

	m.active.transcript = reset
	m.active.chat = chat
	m.hub.Publish(Event{Type: EventTranscriptReset, Serial: profile.SerialNumber, Message: &reset[0]})
	m.svclog.Log(servicelog.Event{
		Serial:    profile.SerialNumber,
		Direction: "operator",
		EventType: "history_cleared",
	})
	slog.Info("History cleared", "serial", profile.SerialNumber)
	return nil
}

// Send submits operator input and returns the assistant reply as a lazy
// sequence of text fragments. Consuming the sequence applies each fragment to
// the pending placeholder in arrival order (monotonic growth, pending cleared
// on the first non-empty fragment) and finalizes the message when the stream
// ends, whether normally, on error, or because the consumer stopped. The sequence
// is finite and not restartable.
func (m *Manager) Send(ctx context.Context, text, imageDataURI string) (iter.Seq2[string, error], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, ErrNotConnected
	}
	if m.sending {
		return nil, ErrReplyInFlight
	}

	var image *provider.ImagePayload
	if imageDataURI != "" {
		decoded, err := decodeImageDataURI(imageDataURI)
		if err != nil {
			return nil, err
		}
		image = decoded
	}

	serial := m.active.Profile.SerialNumber
	now := time.Now()
	userMsg := domain.Message{
		ID:        uuid.NewString(),
		Sender:    domain.SenderUser,
		Text:      text,
		Timestamp: now,
		ImageRef:  imageDataURI,
	}
	placeholder := domain.Message{
		ID:        uuid.NewString(),
		Sender:    domain.SenderAssistant,
		Timestamp: now,
		IsPending: true,
	}
	m.active.transcript = append(m.active.transcript, userMsg, placeholder)
	if err := m.repo.SaveTranscript(ctx, serial, m.active.transcript); err != nil {
		// Roll the appends back so a storage failure doesn't leave a pending
		// placeholder with no stream attached.
		m.active.transcript = m.active.transcript[:len(m.active.transcript)-2]
		return nil, fmt.Errorf("persist transcript: %w", err)
	}

	m.hub.Publish(Event{Type: EventMessageAdded, Serial: serial, Message: &userMsg})
	m.hub.Publish(Event{Type: EventMessageAdded, Serial: serial, Message: &placeholder})
	m.svclog.Log(servicelog.Event{
		Serial:    serial,
		Direction: "operator",
		EventType: "chat_user_message",
		Content:   text,
		Meta:      map[string]any{"has_image": image != nil},
	})

	m.sending = true
	chat := m.active.chat
	placeholderID := placeholder.ID

	consumed := false
	stream := func(yield func(string, error) bool) {
		// The sequence is finite and not restartable: a second read
		// attempt must not re-send the message to the provider.
		if consumed {
			return
		}
		consumed = true

		var streamErr error
		stopped := false

		for delta, err := range chat.SendStream(ctx, text, image) {
			if err != nil {
				streamErr = err
				break
			}
			if delta == "" {
				continue
			}
			m.applyDelta(serial, placeholderID, delta)
			if !yield(delta, nil) {
				stopped = true
				break
			}
		}

		m.finalize(ctx, serial, placeholderID, streamErr)
		if streamErr != nil && !stopped {
			yield("", streamErr)
		}
	}
	return stream, nil
}

// applyDelta extends the pending message with one fragment. The first
// non-empty fragment clears the pending flag.
func (m *Manager) applyDelta(serial, messageID, delta string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := m.findMessageLocked(serial, messageID)
	if msg == nil {
		// Session was disconnected or replaced mid-stream; drop the fragment.
		return
	}
	msg.IsPending = false
	msg.Text += delta
	m.hub.Publish(Event{Type: EventMessageDelta, Serial: serial, MessageID: messageID, Delta: delta})
}

// finalize clears the pending state after a stream ends for any reason and
// persists the transcript. The pending flag must never outlive the stream.
func (m *Manager) finalize(ctx context.Context, serial, messageID string, streamErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sending = false
	msg := m.findMessageLocked(serial, messageID)
	if msg == nil {
		return
	}

	if streamErr != nil {
		slog.Error("Assistant stream failed", "serial", serial, "error", streamErr)
		msg.Text = networkErrorText
	}
	msg.IsPending = false

	// The request context may already be canceled when the client went
	// away mid-stream; the finalized transcript must still be persisted.
	if err := m.repo.SaveTranscript(context.WithoutCancel(ctx), serial, m.active.transcript); err != nil {
		slog.Error("Failed to persist transcript after stream", "serial", serial, "error", err)
	}

	m.hub.Publish(Event{Type: EventMessageUpdated, Serial: serial, Message: msg})
	m.svclog.Log(servicelog.Event{
		Serial:    serial,
		Direction: "assistant",
		EventType: "chat_assistant_message",
		Content:   msg.Text,
		Meta:      map[string]any{"stream_error": streamErr != nil},
	})
}

// VerifyFix marks a message as a confirmed fix and, when a preceding User
// message exists, appends an issue→solution pair to the durable knowledge
// base. Re-verifying an already-verified message is a no-op at the flag level
// but still attempts the pairing. The current chat handle keeps its snapshot;
// new entries take effect on the next initialization.
func (m *Manager) VerifyFix(ctx context.Context, messageID string) (*domain.KnowledgeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, ErrNotConnected
	}

	serial := m.active.Profile.SerialNumber
	index := -1
	for i := range m.active.transcript {
		if m.active.transcript[i].ID == messageID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrMessageNotFound
	}

	target := &m.active.transcript[index]
	if !target.IsVerifiedFix {
		target.IsVerifiedFix = true
		if err := m.repo.SaveTranscript(ctx, serial, m.active.transcript); err != nil {
			target.IsVerifiedFix = false
			return nil, fmt.Errorf("persist transcript: %w", err)
		}
		m.hub.Publish(Event{Type: EventMessageUpdated, Serial: serial, Message: target})
	}

	issueMsg, ok := findPrecedingUserMessage(m.active.transcript, index)
	if !ok {
		// Greeting or assistant-only prefix: the flag stands, no entry.
		return nil, nil
	}

	entry := &domain.KnowledgeEntry{
		ID:           uuid.NewString(),
		SerialNumber: serial,
		Issue:        issueMsg.Text,
		Solution:     target.Text,
		RecordedAt:   time.Now(),
	}
	if err := m.repo.AppendKnowledge(ctx, entry); err != nil {
		return nil, fmt.Errorf("append knowledge entry: %w", err)
	}

	m.svclog.Log(servicelog.Event{
		Serial:    serial,
		Direction: "operator",
		EventType: "fix_verified",
		Content:   entry.Issue,
		Meta:      map[string]any{"solution": entry.Solution},
	})
	slog.Info("Fix verified", "serial", serial, "entry_id", entry.ID)
	return entry, nil
}

// Profile returns the active press profile, or false when disconnected.
func (m *Manager) Profile() (domain.PressProfile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return domain.PressProfile{}, false
	}
	return m.active.Profile, true
}

// Messages returns a copy of the active transcript.
func (m *Manager) Messages() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	out := make([]domain.Message, len(m.active.transcript))
	copy(out, m.active.transcript)
	return out
}

// Knowledge returns the knowledge base for the active serial.
func (m *Manager) Knowledge(ctx context.Context) ([]domain.KnowledgeEntry, error) {
	m.mu.Lock()
	if m.active == nil {
		m.mu.Unlock()
		return nil, ErrNotConnected
	}
	serial := m.active.Profile.SerialNumber
	m.mu.Unlock()

	return m.repo.GetKnowledge(ctx, serial)
}

// findMessageLocked locates a message in the active transcript, guarding
// against the session having been replaced mid-stream.
func (m *Manager) findMessageLocked(serial, messageID string) *domain.Message {
	if m.active == nil || m.active.Profile.SerialNumber != serial {
		return nil
	}
	for i := range m.active.transcript {
		if m.active.transcript[i].ID == messageID {
			return &m.active.transcript[i]
		}
	}
	return nil
}
