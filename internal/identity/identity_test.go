package identity

import (
	"errors"
	"testing"

	"github.com/screentech/pressassist/internal/domain"
)

func TestResolveNormalizesSerial(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "j30452", "J30452"},
		{"surrounding whitespace", "  j30452  ", "J30452"},
		{"already normalized", "TP-HD-PLUS-LEARN-01", "TP-HD-PLUS-LEARN-01"},
		{"mixed case with dashes", "tp-hd-plus-learn-01", "TP-HD-PLUS-LEARN-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := Resolve(tt.input)
			if err != nil {
				t.Fatalf("Resolve(%q) returned error: %v", tt.input, err)
			}
			if profile.SerialNumber != tt.want {
				t.Errorf("SerialNumber = %q, want %q", profile.SerialNumber, tt.want)
			}
			if profile.Model != domain.ModelTruepressJET520HDPlus {
				t.Errorf("Model = %q, want %q", profile.Model, domain.ModelTruepressJET520HDPlus)
			}
			if profile.InstallDate == "" {
				t.Error("InstallDate should be set at resolve time")
			}
		})
	}
}

func TestResolveRejectsBlankInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n"} {
		if _, err := Resolve(input); !errors.Is(err, ErrEmptySerial) {
			t.Errorf("Resolve(%q) error = %v, want ErrEmptySerial", input, err)
		}
	}
}

func TestDetectModelIsConstant(t *testing.T) {
	// Test-build behavior: every serial maps to the 520HD+.
	for _, serial := range []string{"J30452", "X99999", LearningUnitSerial} {
		if got := DetectModel(serial); got != domain.ModelTruepressJET520HDPlus {
			t.Errorf("DetectModel(%q) = %q, want %q", serial, got, domain.ModelTruepressJET520HDPlus)
		}
	}
}
