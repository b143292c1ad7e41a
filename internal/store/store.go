// Package store persists users and lectures.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique field is already taken.
	ErrConflict = errors.New("conflict")
)

// DefaultLectureStatus is the status of a lecture created without one.
const DefaultLectureStatus = "transcribed"

// User is an account. PasswordHash is empty for Google-only accounts; GoogleID is empty
// until the account signs in with Google.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	GoogleID     string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// Lecture is one recorded lecture and its generated artifacts.
type Lecture struct {
	ID           string          `json:"id"`
	UserID       string          `json:"-"`
	Title        string          `json:"title"`
	Course       string          `json:"course"`
	Date         string          `json:"date"`
	Duration     int             `json:"duration"`
	Tags         []string        `json:"tags"`
	Transcript   json.RawMessage `json:"transcript"`
	Summary      json.RawMessage `json:"summary"`
	Notes        json.RawMessage `json:"notes"`
	Status       string          `json:"status"`
	ErrorMessage *string         `json:"errorMessage"`
	AudioPath    *string         `json:"audioPath"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// NewLecture holds the fields accepted on create.
type NewLecture struct {
	Title      string          `json:"title"`
	Course     string          `json:"course"`
	Date       string          `json:"date"`
	Duration   int             `json:"duration"`
	Tags       []string        `json:"tags"`
	Transcript json.RawMessage `json:"transcript"`
	Status     string          `json:"status"`
}

// LectureUpdate holds a partial update. Nil pointers and nil raw messages leave a field
// unchanged; a raw JSON null clears a nullable document field.
type LectureUpdate struct {
	Title        *string          `json:"title"`
	Course       *string          `json:"course"`
	Tags         *[]string        `json:"tags"`
	Transcript   json.RawMessage  `json:"transcript"`
	Summary      json.RawMessage  `json:"summary"`
	Notes        json.RawMessage  `json:"notes"`
	Status       *string          `json:"status"`
	ErrorMessage Optional[string] `json:"error_message"`
	AudioPath    Optional[string] `json:"audio_path"`
}

// Optional distinguishes an absent JSON field from an explicit null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON implements json.Unmarshaler. It is only called for present fields.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Some returns a set Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Store is the persistence contract. Lecture operations are scoped to the owning user.
type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByGoogleID(ctx context.Context, googleID string) (User, error)
	LinkGoogleID(ctx context.Context, userID, googleID, name string) (User, error)

	ListLectures(ctx context.Context, userID string) ([]Lecture, error)
	GetLecture(ctx context.Context, userID, id string) (Lecture, error)
	CreateLecture(ctx context.Context, userID string, in NewLecture) (Lecture, error)
	UpdateLecture(ctx context.Context, userID, id string, up LectureUpdate) (Lecture, error)
	DeleteLecture(ctx context.Context, userID, id string) error

	Ping(ctx context.Context) error
	Close()
}

// parseID returns ErrNotFound for ids that are not UUIDs, since no such record can exist.
func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return u, nil
}

// isNullJSON reports whether raw is present and an explicit JSON null.
func isNullJSON(raw json.RawMessage) bool {
	return raw != nil && string(raw) == "null"
}

func normalizeNew(in NewLecture) NewLecture {
	if in.Tags == nil {
		in.Tags = []string{}
	}
	if in.Status == "" {
		in.Status = DefaultLectureStatus
	}
	if isNullJSON(in.Transcript) {
		in.Transcript = nil
	}
	return in
}
