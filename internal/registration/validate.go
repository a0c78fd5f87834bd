package registration

import (
	"regexp"
	"strings"

	"opd-desk/internal/models"
)

// Operator-facing validation messages.
const (
	MsgMissingFields  = "Please fill Name, Phone and Doctor."
	MsgMissingPatient = "Please fill Name and Phone."
	MsgBadPhone       = "Phone number must be exactly 10 digits (Numbers only)."
	MsgUnknownDoctor  = "Please select a doctor from the list."
	MsgBadFee         = "Fee must be a number."
)

var (
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	// Plain decimal amounts only; ParseFloat would also take NaN, Inf and hex.
	feePattern = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// ValidationError is a form problem found before any store call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// ValidPhone reports whether phone is exactly ten decimal digits.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Validate checks a registration and returns the first failing rule.
func Validate(in models.RegistrationInput) error {
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	if name == "" || phone == "" || in.Doctor == "" {
		return invalid(MsgMissingFields)
	}
	if !ValidPhone(phone) {
		return invalid(MsgBadPhone)
	}
	if _, ok := models.FindDoctor(in.Doctor); !ok {
		return invalid(MsgUnknownDoctor)
	}
	if fee := strings.TrimSpace(in.Fee); fee != "" && !feePattern.MatchString(fee) {
		return invalid(MsgBadFee)
	}
	return nil
}

// ValidatePatient checks the demographic fields used by the update-only path.
func ValidatePatient(in models.PatientInput) error {
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	if name == "" || phone == "" {
		return invalid(MsgMissingPatient)
	}
	if !ValidPhone(phone) {
		return invalid(MsgBadPhone)
	}
	return nil
}
