package schema

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 6

var errNotObject = errors.New("not a JSON object")

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator checks inbound request payloads.
type Validator struct{}

// New returns a Validator.
func New() *Validator {
	return &Validator{}
}

// Transcript rejects blank transcripts.
func (v *Validator) Transcript(transcript string) error {
	if strings.TrimSpace(transcript) == "" {
		return &ValidationError{Field: "transcript", Message: "Transcript is required"}
	}
	return nil
}

// Signup checks an email address and password.
func (v *Validator) Signup(email, password string) error {
	if err := v.Email(email); err != nil {
		return err
	}
	if len(password) < MinPasswordLength {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters", MinPasswordLength),
		}
	}
	return nil
}

// Email checks that email is a bare address.
func (v *Validator) Email(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "Invalid email address"}
	}
	return nil
}

// Lecture checks the required fields of a new lecture.
func (v *Validator) Lecture(title, date string, duration int) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Message: "Title is required"}
	}
	if strings.TrimSpace(date) == "" {
		return &ValidationError{Field: "date", Message: "Date is required"}
	}
	if duration < 0 {
		return &ValidationError{Field: "duration", Message: "Duration cannot be negative"}
	}
	return nil
}

// LectureTitle rejects a blank title on update.
func (v *Validator) LectureTitle(title *string) error {
	if title != nil && strings.TrimSpace(*title) == "" {
		return &ValidationError{Field: "title", Message: "Title cannot be blank"}
	}
	return nil
}
