package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"
)

// runContract exercises behaviour every Store implementation must share.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		u, err := s.CreateUser(ctx, User{Email: "ada@example.com", PasswordHash: "hash", Name: "Ada"})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if u.ID == "" {
			t.Fatal("expected generated id")
		}

		if _, err := s.CreateUser(ctx, User{Email: "ada@example.com"}); !errors.Is(err, ErrConflict) {
			t.Errorf("duplicate email: got %v, want ErrConflict", err)
		}

		byID, err := s.UserByID(ctx, u.ID)
		if err != nil || byID.Email != "ada@example.com" || byID.PasswordHash != "hash" {
			t.Errorf("UserByID = %+v, %v", byID, err)
		}
		if _, err := s.UserByEmail(ctx, "ADA@example.com"); err != nil {
			t.Errorf("UserByEmail should be case-insensitive: %v", err)
		}
		if _, err := s.UserByID(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
			t.Errorf("UserByID(bad id): got %v, want ErrNotFound", err)
		}
		if _, err := s.UserByGoogleID(ctx, "g-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("UserByGoogleID before link: got %v", err)
		}

		linked, err := s.LinkGoogleID(ctx, u.ID, "g-1", "Other Name")
		if err != nil {
			t.Fatalf("LinkGoogleID: %v", err)
		}
		if linked.GoogleID != "g-1" || linked.Name != "Ada" {
			t.Errorf("linked = %+v, want google id set and name kept", linked)
		}
		if _, err := s.UserByGoogleID(ctx, "g-1"); err != nil {
			t.Errorf("UserByGoogleID after link: %v", err)
		}

		nameless, err := s.CreateUser(ctx, User{Email: "bob@example.com"})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		linked, err = s.LinkGoogleID(ctx, nameless.ID, "g-2", "Bob")
		if err != nil || linked.Name != "Bob" {
			t.Errorf("empty name should be filled on link, got %+v, %v", linked, err)
		}
	})

	t.Run("lectures", func(t *testing.T) {
		s := newStore(t)
		owner, err := s.CreateUser(ctx, User{Email: "owner@example.com"})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		other, err := s.CreateUser(ctx, User{Email: "other@example.com"})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}

		first, err := s.CreateLecture(ctx, owner.ID, NewLecture{Title: "Week 1", Date: "2026-01-12"})
		if err != nil {
			t.Fatalf("CreateLecture: %v", err)
		}
		if first.Status != DefaultLectureStatus {
			t.Errorf("status = %q, want default", first.Status)
		}
		if first.Tags == nil || len(first.Tags) != 0 {
			t.Errorf("tags = %#v, want empty slice", first.Tags)
		}
		if first.Transcript != nil || first.ErrorMessage != nil || first.AudioPath != nil {
			t.Errorf("expected null optional fields, got %+v", first)
		}

		time.Sleep(2 * time.Millisecond)
		second, err := s.CreateLecture(ctx, owner.ID, NewLecture{
			Title:      "Week 2",
			Course:     "CS101",
			Date:       "2026-01-19",
			Duration:   3600,
			Tags:       []string{"graphs"},
			Transcript: json.RawMessage(`{"segments":[]}`),
			Status:     "recorded",
		})
		if err != nil {
			t.Fatalf("CreateLecture: %v", err)
		}

		list, err := s.ListLectures(ctx, owner.ID)
		if err != nil {
			t.Fatalf("ListLectures: %v", err)
		}
		if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
			t.Errorf("expected newest first, got %v", list)
		}
		if list, _ := s.ListLectures(ctx, other.ID); len(list) != 0 {
			t.Errorf("other user should see no lectures, got %d", len(list))
		}

		if _, err := s.GetLecture(ctx, other.ID, first.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("cross-user get: got %v, want ErrNotFound", err)
		}
		if _, err := s.GetLecture(ctx, owner.ID, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("bad id get: got %v, want ErrNotFound", err)
		}

		title := "Week 2: Graphs"
		tags := []string{"graphs", "bfs"}
		up := LectureUpdate{
			Title:        &title,
			Tags:         &tags,
			Summary:      json.RawMessage(`{"quick":{"title":"Quick Summary","bullets":[]}}`),
			ErrorMessage: Some("transient"),
		}
		got, err := s.UpdateLecture(ctx, owner.ID, second.ID, up)
		if err != nil {
			t.Fatalf("UpdateLecture: %v", err)
		}
		if got.Title != title || len(got.Tags) != 2 || got.Course != "CS101" {
			t.Errorf("unexpected update result %+v", got)
		}
		if got.Summary == nil || got.ErrorMessage == nil || *got.ErrorMessage != "transient" {
			t.Errorf("expected summary and error message set, got %+v", got)
		}
		if got.Transcript == nil {
			t.Error("unset transcript should be preserved")
		}

		clearing := LectureUpdate{
			Transcript:   json.RawMessage(`null`),
			ErrorMessage: Optional[string]{Set: true},
		}
		got, err = s.UpdateLecture(ctx, owner.ID, second.ID, clearing)
		if err != nil {
			t.Fatalf("UpdateLecture: %v", err)
		}
		if got.Transcript != nil || got.ErrorMessage != nil {
			t.Errorf("explicit nulls should clear fields, got %+v", got)
		}
		if got.Summary == nil {
			t.Error("summary should survive an unrelated update")
		}

		if _, err := s.UpdateLecture(ctx, other.ID, second.ID, up); !errors.Is(err, ErrNotFound) {
			t.Errorf("cross-user update: got %v, want ErrNotFound", err)
		}
		if err := s.DeleteLecture(ctx, other.ID, first.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("cross-user delete: got %v, want ErrNotFound", err)
		}
		if err := s.DeleteLecture(ctx, owner.ID, first.ID); err != nil {
			t.Fatalf("DeleteLecture: %v", err)
		}
		if err := s.DeleteLecture(ctx, owner.ID, first.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second delete: got %v, want ErrNotFound", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runContract(t, func(t *testing.T) Store { return NewMemory() })
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("LECTURE_NOTES_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LECTURE_NOTES_TEST_DATABASE_URL not set")
	}
	runContract(t, func(t *testing.T) Store {
		ctx := context.Background()
		p, err := NewPostgres(ctx, dsn)
		if err != nil {
			t.Fatalf("NewPostgres: %v", err)
		}
		if _, err := p.pool.Exec(ctx, `TRUNCATE lectures, users`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(p.Close)
		return p
	})
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	l, err := s.CreateLecture(ctx, "u1", NewLecture{Title: "t", Tags: []string{"a"}})
	if err != nil {
		t.Fatalf("CreateLecture: %v", err)
	}
	l.Tags[0] = "mutated"

	again, err := s.GetLecture(ctx, "u1", l.ID)
	if err != nil {
		t.Fatalf("GetLecture: %v", err)
	}
	if again.Tags[0] != "a" {
		t.Errorf("store state leaked through returned slice: %v", again.Tags)
	}
}

func TestLectureUpdate_DecodeDistinguishesNullFromAbsent(t *testing.T) {
	var up LectureUpdate
	body := `{"title":"New","transcript":null,"audio_path":null,"notes":{"title":"Lecture Notes"}}`
	if err := json.Unmarshal([]byte(body), &up); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if up.Title == nil || *up.Title != "New" {
		t.Errorf("title = %v", up.Title)
	}
	if !isNullJSON(up.Transcript) {
		t.Errorf("transcript = %q, want explicit null", up.Transcript)
	}
	if up.Summary != nil {
		t.Errorf("absent summary should stay nil, got %q", up.Summary)
	}
	if up.Notes == nil {
		t.Error("notes should be set")
	}
	if !up.AudioPath.Set || up.AudioPath.Value != nil {
		t.Errorf("audio_path = %+v, want set null", up.AudioPath)
	}
	if up.ErrorMessage.Set {
		t.Error("absent error_message should not be set")
	}
}

func TestLecture_JSONShape(t *testing.T) {
	l := Lecture{ID: "1", Title: "t", Tags: []string{}, Status: "transcribed"}
	b, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"id", "title", "course", "date", "duration", "tags", "transcript",
		"summary", "notes", "status", "errorMessage", "audioPath", "createdAt", "updatedAt"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in %s", key, b)
		}
	}
	if _, ok := m["UserID"]; ok {
		t.Error("user id must not be serialized")
	}
	if m["transcript"] != nil {
		t.Errorf("nil transcript should encode as null, got %v", m["transcript"])
	}
}
