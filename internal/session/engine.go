package session

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/screentech/pressassist/internal/domain"
	"github.com/screentech/pressassist/internal/provider"
)

// formatHistory converts a transcript into the provider's role-tagged turn
// format. Pending and empty messages carry no information and must not be
// replayed; image-bearing messages keep a textual marker since the raw image
// is not re-sent on re-initialization.
func formatHistory(messages []domain.Message) []provider.Turn {
	turns := make([]provider.Turn, 0, len(messages))
	for _, msg := range messages {
		if msg.IsPending || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		role := provider.RoleUser
		if msg.Sender == domain.SenderAssistant {
			role = provider.RoleModel
		}
		text := msg.Text
		if msg.ImageRef != "" {
			text += " [User uploaded an image]"
		}
		turns = append(turns, provider.Turn{Role: role, Text: text})
	}
	return turns
}

// findPrecedingUserMessage scans backward from index for the nearest User
// message. Pure function over a transcript snapshot so verification pairing
// is testable on its own.
func findPrecedingUserMessage(transcript []domain.Message, index int) (domain.Message, bool) {
	for i := index - 1; i >= 0; i-- {
		if transcript[i].Sender == domain.SenderUser {
			return transcript[i], true
		}
	}
	return domain.Message{}, false
}

// normalizeTranscript finalizes messages left pending by an interrupted
// process so the at-most-one-pending invariant holds across restarts. A
// pending message with no text becomes a permanent error record; one with
// partial text keeps it. Returns the number of messages repaired.
func normalizeTranscript(messages []domain.Message) int {
	repaired := 0
	for i := range messages {
		if !messages[i].IsPending {
			continue
		}
		messages[i].IsPending = false
		if strings.TrimSpace(messages[i].Text) == "" {
			messages[i].Text = networkErrorText
		}
		repaired++
	}
	return repaired
}

// decodeImageDataURI strips a data-URI prefix ("data:image/jpeg;base64,") and
// decodes the payload for transmission. Inputs without a prefix are assumed
// to be bare base64 JPEG data.
func decodeImageDataURI(dataURI string) (*provider.ImagePayload, error) {
	mimeType := "image/jpeg"
	payload := dataURI

	if strings.HasPrefix(dataURI, "data:") {
		head, rest, ok := strings.Cut(dataURI, ",")
		if !ok {
			return nil, fmt.Errorf("malformed image data URI")
		}
		payload = rest
		meta := strings.TrimPrefix(head, "data:")
		if mt, _, _ := strings.Cut(meta, ";"); mt != "" {
			mimeType = mt
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	return &provider.ImagePayload{MIMEType: mimeType, Data: data}, nil
}
