package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/screentech/pressassist/internal/domain"
)

func newTestStore(t *testing.T, opts Options) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"), opts)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestActiveProfileRoundTrip(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	got, err := s.GetActiveProfile(ctx)
	if err != nil {
		t.Fatalf("GetActiveProfile failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no active profile, got %+v", got)
	}

	profile := &domain.PressProfile{
		SerialNumber: "J30452",
		Model:        domain.ModelTruepressJET520HDPlus,
		InstallDate:  "2026-08-28",
	}
	if err := s.SetActiveProfile(ctx, profile); err != nil {
		t.Fatalf("SetActiveProfile failed: %v", err)
	}

	got, err = s.GetActiveProfile(ctx)
	if err != nil {
		t.Fatalf("GetActiveProfile failed: %v", err)
	}
	if got == nil || got.SerialNumber != "J30452" || got.Model != profile.Model {
		t.Fatalf("GetActiveProfile = %+v, want %+v", got, profile)
	}

	// Overwrite with a different profile (connect to another press).
	second := &domain.PressProfile{SerialNumber: "X11111", Model: domain.ModelTruepressJET520HDPlus}
	if err := s.SetActiveProfile(ctx, second); err != nil {
		t.Fatalf("SetActiveProfile overwrite failed: %v", err)
	}
	got, _ = s.GetActiveProfile(ctx)
	if got == nil || got.SerialNumber != "X11111" {
		t.Fatalf("expected overwritten profile X11111, got %+v", got)
	}

	if err := s.ClearActiveProfile(ctx); err != nil {
		t.Fatalf("ClearActiveProfile failed: %v", err)
	}
	got, _ = s.GetActiveProfile(ctx)
	if got != nil {
		t.Fatalf("expected cleared profile, got %+v", got)
	}
}

func TestTranscriptRoundTripPreservesOrderAndFlags(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	serial := "J30452"

	ts := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	messages := []domain.Message{
		{ID: "m1", Sender: domain.SenderAssistant, Text: "greeting", Timestamp: ts},
		{ID: "m2", Sender: domain.SenderUser, Text: "white lines on print", Timestamp: ts.Add(time.Minute), ImageRef: "data:image/jpeg;base64,/9j/AAA="},
		{ID: "m3", Sender: domain.SenderAssistant, Text: "Print a Nozzle Check.", Timestamp: ts.Add(2 * time.Minute), IsVerifiedFix: true},
	}

	if err := s.SaveTranscript(ctx, serial, messages); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	// Persisting the same transcript twice must be idempotent.
	if err := s.SaveTranscript(ctx, serial, messages); err != nil {
		t.Fatalf("second SaveTranscript failed: %v", err)
	}

	got, err := s.GetTranscript(ctx, serial)
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if len(got) != len(messages) {
		t.Fatalf("got %d messages, want %d", len(got), len(messages))
	}
	for i := range messages {
		if got[i].ID != messages[i].ID {
			t.Errorf("message %d ID = %q, want %q", i, got[i].ID, messages[i].ID)
		}
		if got[i].Sender != messages[i].Sender {
			t.Errorf("message %d Sender = %q, want %q", i, got[i].Sender, messages[i].Sender)
		}
		if got[i].Text != messages[i].Text {
			t.Errorf("message %d Text = %q, want %q", i, got[i].Text, messages[i].Text)
		}
		if got[i].IsVerifiedFix != messages[i].IsVerifiedFix {
			t.Errorf("message %d IsVerifiedFix = %v, want %v", i, got[i].IsVerifiedFix, messages[i].IsVerifiedFix)
		}
		if !got[i].Timestamp.Equal(messages[i].Timestamp) {
			t.Errorf("message %d Timestamp = %v, want %v", i, got[i].Timestamp, messages[i].Timestamp)
		}
	}
	if got[1].ImageRef != messages[1].ImageRef {
		t.Errorf("ImageRef not preserved: %q", got[1].ImageRef)
	}
}

func TestGetTranscriptAbsent(t *testing.T) {
	s := newTestStore(t, Options{})

	got, err := s.GetTranscript(context.Background(), "NEVER-SEEN")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil transcript, got %v", got)
	}
}

func TestDeleteTranscriptPreservesKnowledge(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	serial := "TP-HD-PLUS-LEARN-01"

	if err := s.SaveTranscript(ctx, serial, []domain.Message{
		{ID: "m1", Sender: domain.SenderUser, Text: "paper drifting"},
	}); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}
	if err := s.AppendKnowledge(ctx, &domain.KnowledgeEntry{
		ID: "k1", SerialNumber: serial,
		Issue: "paper drifting", Solution: "Check the Tension knob.",
		RecordedAt: time.Now(),
	}); err != nil {
		t.Fatalf("AppendKnowledge failed: %v", err)
	}

	if err := s.DeleteTranscript(ctx, serial); err != nil {
		t.Fatalf("DeleteTranscript failed: %v", err)
	}

	transcript, _ := s.GetTranscript(ctx, serial)
	if transcript != nil {
		t.Errorf("transcript should be gone, got %v", transcript)
	}
	entries, err := s.GetKnowledge(ctx, serial)
	if err != nil {
		t.Fatalf("GetKnowledge failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("knowledge base must survive a transcript delete, got %d entries", len(entries))
	}
}

func TestKnowledgeAppendOrder(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	serial := "J30452"

	issues := []string{"white lines", "paper drifting", "EQUIOS offline"}
	for i, issue := range issues {
		if err := s.AppendKnowledge(ctx, &domain.KnowledgeEntry{
			ID:           "k" + issue,
			SerialNumber: serial,
			Issue:        issue,
			Solution:     "fix " + issue,
			RecordedAt:   time.Now().Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("AppendKnowledge(%q) failed: %v", issue, err)
		}
	}

	entries, err := s.GetKnowledge(ctx, serial)
	if err != nil {
		t.Fatalf("GetKnowledge failed: %v", err)
	}
	if len(entries) != len(issues) {
		t.Fatalf("got %d entries, want %d", len(entries), len(issues))
	}
	for i, issue := range issues {
		if entries[i].Issue != issue {
			t.Errorf("entry %d Issue = %q, want %q (insertion order)", i, entries[i].Issue, issue)
		}
	}

	// Entries for other serials stay invisible.
	other, _ := s.GetKnowledge(ctx, "OTHER")
	if len(other) != 0 {
		t.Errorf("expected no entries for OTHER, got %d", len(other))
	}
}

func TestCorruptTranscriptSurfacesByDefault(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (serial_number, messages_json, created_at, updated_at)
		VALUES ('BAD', '{not json', 0, 0)`); err != nil {
		t.Fatalf("failed to inject corrupt row: %v", err)
	}

	_, err := s.GetTranscript(ctx, "BAD")
	if !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("error = %v, want ErrCorruptRecord", err)
	}
}

func TestCorruptTranscriptResetsWhenConfigured(t *testing.T) {
	s := newTestStore(t, Options{ResetCorruptRecords: true})
	ctx := context.Background()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (serial_number, messages_json, created_at, updated_at)
		VALUES ('BAD', '{not json', 0, 0)`); err != nil {
		t.Fatalf("failed to inject corrupt row: %v", err)
	}

	got, err := s.GetTranscript(ctx, "BAD")
	if err != nil {
		t.Fatalf("GetTranscript should reset corrupt records, got error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected empty transcript after reset, got %v", got)
	}
}
