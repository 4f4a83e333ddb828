// Package identity resolves operator-entered serial numbers to press profiles.
package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/screentech/pressassist/internal/domain"
)

// LearningUnitSerial is the "standing press" demo unit that accumulates
// knowledge across test sessions.
const LearningUnitSerial = "TP-HD-PLUS-LEARN-01"

// ErrEmptySerial is returned when the serial number is blank after trimming.
var ErrEmptySerial = errors.New("serial number is empty")

// Resolve maps a raw operator-entered serial string to a press profile.
// Input is trimmed and uppercased; the serial number is the identity key for
// all durable records. Pure function apart from the install-date timestamp.
func Resolve(rawSerial string) (domain.PressProfile, error) {
	serial := strings.ToUpper(strings.TrimSpace(rawSerial))
	if serial == "" {
		return domain.PressProfile{}, ErrEmptySerial
	}

	return domain.PressProfile{
		SerialNumber: serial,
		Model:        DetectModel(serial),
		InstallDate:  time.Now().Format("2006-01-02"),
	}, nil
}

// DetectModel maps a serial number to its press model.
//
// TEST BUILD ENFORCEMENT: regardless of input we are exercising the 520HD+
// logic, so every serial resolves to the same model. Two different physical
// serials therefore share model metadata.
func DetectModel(serial string) domain.PressModel {
	return domain.ModelTruepressJET520HDPlus
}
