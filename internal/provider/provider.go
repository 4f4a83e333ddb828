// Package provider defines the AI completion provider boundary and its
// Gemini implementation.
package provider

import (
	"context"
	"iter"
)

// Role tags one side of a conversation turn.
type Role string

const (
	// RoleUser is operator input.
	RoleUser Role = "user"
	// RoleModel is an assistant reply.
	RoleModel Role = "model"
)

// Turn is one entry of the role-tagged history replayed into a new chat.
type Turn struct {
	Role Role
	Text string
}

// ImagePayload is a decoded photo attachment.
type ImagePayload struct {
	MIMEType string
	Data     []byte
}

// ChatConfig describes the context a new chat session is bound to. The
// context is a snapshot: knowledge added after StartChat is not visible to
// the returned chat.
type ChatConfig struct {
	SystemInstruction string
	History           []Turn
	Temperature       float32
}

// Chat is one provider conversation bound to a fixed system context.
type Chat interface {
	// SendStream submits operator input and returns the reply as an
	// incremental sequence of text fragments. Fragments arrive in generation
	// order; the sequence is finite and not restartable, a second iteration
	// yields nothing.
	SendStream(ctx context.Context, text string, image *ImagePayload) iter.Seq2[string, error]
}

// Client creates chat sessions. Implemented by the Gemini client; tests use
// scripted fakes.
type Client interface {
	StartChat(ctx context.Context, cfg ChatConfig) (Chat, error)
}
