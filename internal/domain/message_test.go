package domain

import (
	"strings"
	"testing"
)

func TestMessageEligibleForVerification(t *testing.T) {
	longText := strings.Repeat("open the ink cabinet ", 5)

	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"long assistant reply", Message{Sender: SenderAssistant, Text: longText}, true},
		{"user message", Message{Sender: SenderUser, Text: longText}, false},
		{"short reply", Message{Sender: SenderAssistant, Text: "Yes, that one."}, false},
		{"already verified", Message{Sender: SenderAssistant, Text: longText, IsVerifiedFix: true}, false},
		{"still pending", Message{Sender: SenderAssistant, Text: longText, IsPending: true}, false},
		{"exactly at threshold", Message{Sender: SenderAssistant, Text: strings.Repeat("x", verifyMinTextLength)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.EligibleForVerification(); got != tt.want {
				t.Errorf("EligibleForVerification() = %v, want %v", got, tt.want)
			}
		})
	}
}
