// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/screentech/pressassist/internal/domain"
)

// Repository defines the durable storage for press session state.
//
// All records are keyed by serial number. The transcript and the knowledge
// base for one serial have independent lifecycles: deleting a transcript
// never touches knowledge entries.
type Repository interface {
	// GetActiveProfile returns the active-profile pointer, or nil if no
	// press is connected.
	GetActiveProfile(ctx context.Context) (*domain.PressProfile, error)

	// SetActiveProfile stores the active-profile pointer, overwriting any
	// previously active profile.
	SetActiveProfile(ctx context.Context, profile *domain.PressProfile) error

	// ClearActiveProfile removes the active-profile pointer.
	ClearActiveProfile(ctx context.Context) error

	// GetTranscript returns the ordered message history for a serial number,
	// or nil if no transcript exists.
	GetTranscript(ctx context.Context, serial string) ([]domain.Message, error)

	// SaveTranscript overwrites the full transcript for a serial number.
	SaveTranscript(ctx context.Context, serial string, messages []domain.Message) error

	// DeleteTranscript removes the transcript for a serial number. The
	// knowledge base for that serial is preserved.
	DeleteTranscript(ctx context.Context, serial string) error

	// GetKnowledge returns the knowledge base for a serial number in
	// insertion order.
	GetKnowledge(ctx context.Context, serial string) ([]domain.KnowledgeEntry, error)

	// AppendKnowledge appends one entry to a serial's knowledge base.
	// Entries are immutable once written.
	AppendKnowledge(ctx context.Context, entry *domain.KnowledgeEntry) error

	// Ping verifies storage connectivity.
	Ping(ctx context.Context) error

	// Close closes the underlying storage.
	Close() error
}
