package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store used for development and tests.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]User
	lectures map[string]memLecture
	seq      int64
	now      func() time.Time
}

type memLecture struct {
	Lecture
	seq int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]User),
		lectures: make(map[string]memLecture),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return User{}, ErrConflict
		}
		if u.GoogleID != "" && existing.GoogleID == u.GoogleID {
			return User{}, ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) UserByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *Memory) UserByGoogleID(_ context.Context, googleID string) (User, error) {
	if googleID == "" {
		return User{}, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.GoogleID == googleID {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *Memory) LinkGoogleID(_ context.Context, userID, googleID, name string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	for id, other := range m.users {
		if id != userID && other.GoogleID == googleID {
			return User{}, ErrConflict
		}
	}
	u.GoogleID = googleID
	if u.Name == "" {
		u.Name = name
	}
	m.users[userID] = u
	return u, nil
}

func (m *Memory) ListLectures(_ context.Context, userID string) ([]Lecture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var owned []memLecture
	for _, l := range m.lectures {
		if l.UserID == userID {
			owned = append(owned, l)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].seq > owned[j].seq
	})

	out := make([]Lecture, 0, len(owned))
	for _, l := range owned {
		out = append(out, cloneLecture(l.Lecture))
	}
	return out, nil
}

func (m *Memory) GetLecture(_ context.Context, userID, id string) (Lecture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.lectures[id]
	if !ok || l.UserID != userID {
		return Lecture{}, ErrNotFound
	}
	return cloneLecture(l.Lecture), nil
}

func (m *Memory) CreateLecture(_ context.Context, userID string, in NewLecture) (Lecture, error) {
	in = normalizeNew(in)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.seq++
	l := Lecture{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      in.Title,
		Course:     in.Course,
		Date:       in.Date,
		Duration:   in.Duration,
		Tags:       append([]string{}, in.Tags...),
		Transcript: cloneRaw(in.Transcript),
		Status:     in.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.lectures[l.ID] = memLecture{Lecture: l, seq: m.seq}
	return cloneLecture(l), nil
}

func (m *Memory) UpdateLecture(_ context.Context, userID, id string, up LectureUpdate) (Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ml, ok := m.lectures[id]
	if !ok || ml.UserID != userID {
		return Lecture{}, ErrNotFound
	}
	l := ml.Lecture

	if up.Title != nil {
		l.Title = *up.Title
	}
	if up.Course != nil {
		l.Course = *up.Course
	}
	if up.Tags != nil && *up.Tags != nil {
		l.Tags = append([]string{}, (*up.Tags)...)
	}
	if up.Status != nil {
		l.Status = *up.Status
	}
	l.Transcript = applyRaw(l.Transcript, up.Transcript)
	l.Summary = applyRaw(l.Summary, up.Summary)
	l.Notes = applyRaw(l.Notes, up.Notes)
	if up.ErrorMessage.Set {
		l.ErrorMessage = cloneString(up.ErrorMessage.Value)
	}
	if up.AudioPath.Set {
		l.AudioPath = cloneString(up.AudioPath.Value)
	}
	l.UpdatedAt = m.now()

	ml.Lecture = l
	m.lectures[id] = ml
	return cloneLecture(l), nil
}

func (m *Memory) DeleteLecture(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lectures[id]
	if !ok || l.UserID != userID {
		return ErrNotFound
	}
	delete(m.lectures, id)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}

func applyRaw(current, update json.RawMessage) json.RawMessage {
	switch {
	case update == nil:
		return current
	case isNullJSON(update):
		return nil
	default:
		return cloneRaw(update)
	}
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage{}, r...)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneLecture(l Lecture) Lecture {
	l.Tags = append([]string{}, l.Tags...)
	l.Transcript = cloneRaw(l.Transcript)
	l.Summary = cloneRaw(l.Summary)
	l.Notes = cloneRaw(l.Notes)
	l.ErrorMessage = cloneString(l.ErrorMessage)
	l.AudioPath = cloneString(l.AudioPath)
	return l
}
