package domain

import "time"

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	// SenderUser is the press operator.
	SenderUser Sender = "user"
	// SenderAssistant is the AI guide.
	SenderAssistant Sender = "model"
)

// verifyMinTextLength is the minimum assistant reply length that can be
// confirmed as a fix. Short confirmations ("Yes, that switch") carry no
// reusable solution.
const verifyMinTextLength = 50

// Message is one entry in a machine's transcript.
//
// The ordered sequence of messages for one serial number is the transcript.
// At most one message may be pending at any time: the in-flight assistant
// reply placeholder. IsVerifiedFix is monotonic: once set it is only removed
// by a full history clear.
type Message struct {
	ID            string    `json:"id"`
	Sender        Sender    `json:"sender"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
	ImageRef      string    `json:"imageRef,omitempty"`
	IsPending     bool      `json:"isPending,omitempty"`
	IsVerifiedFix bool      `json:"isVerifiedFix,omitempty"`
}

// EligibleForVerification reports whether the operator may confirm this
// message as the fix that resolved their issue.
func (m *Message) EligibleForVerification() bool {
	return m.Sender == SenderAssistant &&
		!m.IsVerifiedFix &&
		!m.IsPending &&
		len(m.Text) > verifyMinTextLength
}
