package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const uniqueViolation = "23505"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            uuid PRIMARY KEY,
		email         varchar(320) NOT NULL UNIQUE,
		password_hash varchar(128),
		name          varchar(200) NOT NULL DEFAULT '',
		google_id     varchar(200) UNIQUE,
		created_at    timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS lectures (
		id            uuid PRIMARY KEY,
		user_id       uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title         varchar(500) NOT NULL,
		course        varchar(200) NOT NULL DEFAULT '',
		date          varchar(50) NOT NULL,
		duration      integer NOT NULL DEFAULT 0,
		tags          jsonb NOT NULL DEFAULT '[]'::jsonb,
		transcript    jsonb,
		summary       jsonb,
		notes         jsonb,
		status        varchar(50) NOT NULL DEFAULT 'transcribed',
		error_message text,
		audio_path    varchar(500),
		created_at    timestamptz NOT NULL DEFAULT now(),
		updated_at    timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_lectures_user_id ON lectures (user_id)`,
}

const userColumns = `id::text, email, coalesce(password_hash, ''), name, coalesce(google_id, ''), created_at`

const lectureColumns = `id::text, user_id::text, title, course, date, duration, tags,
	transcript, summary, notes, status, error_message, audio_path, created_at, updated_at`

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and applies the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Msg("Postgres store ready")
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, u User) (User, error) {
	id := uuid.New()
	if u.ID != "" {
		parsed, err := uuid.Parse(u.ID)
		if err != nil {
			return User{}, fmt.Errorf("invalid user id: %w", err)
		}
		id = parsed
	}
	row := p.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, name, google_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		id, u.Email, nullIfEmpty(u.PasswordHash), u.Name, nullIfEmpty(u.GoogleID))
	return scanUser(row)
}

func (p *Postgres) UserByID(ctx context.Context, id string) (User, error) {
	uid, err := parseID(id)
	if err != nil {
		return User{}, err
	}
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uid))
}

func (p *Postgres) UserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (p *Postgres) UserByGoogleID(ctx context.Context, googleID string) (User, error) {
	if googleID == "" {
		return User{}, ErrNotFound
	}
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID))
}

func (p *Postgres) LinkGoogleID(ctx context.Context, userID, googleID, name string) (User, error) {
	uid, err := parseID(userID)
	if err != nil {
		return User{}, err
	}
	row := p.pool.QueryRow(ctx,
		`UPDATE users
		 SET google_id = $2, name = CASE WHEN name = '' THEN $3 ELSE name END
		 WHERE id = $1
		 RETURNING `+userColumns,
		uid, googleID, name)
	return scanUser(row)
}

func (p *Postgres) ListLectures(ctx context.Context, userID string) ([]Lecture, error) {
	uid, err := parseID(userID)
	if err != nil {
		return []Lecture{}, nil
	}
	rows, err := p.pool.Query(ctx,
		`SELECT `+lectureColumns+` FROM lectures WHERE user_id = $1 ORDER BY created_at DESC`, uid)
	if err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	defer rows.Close()

	out := []Lecture{}
	for rows.Next() {
		l, err := scanLecture(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	return out, nil
}

func (p *Postgres) GetLecture(ctx context.Context, userID, id string) (Lecture, error) {
	uid, lid, err := parseOwned(userID, id)
	if err != nil {
		return Lecture{}, err
	}
	return scanLecture(p.pool.QueryRow(ctx,
		`SELECT `+lectureColumns+` FROM lectures WHERE id = $1 AND user_id = $2`, lid, uid))
}

func (p *Postgres) CreateLecture(ctx context.Context, userID string, in NewLecture) (Lecture, error) {
	uid, err := parseID(userID)
	if err != nil {
		return Lecture{}, err
	}
	in = normalizeNew(in)
	tags, err := json.Marshal(in.Tags)
	if err != nil {
		return Lecture{}, fmt.Errorf("encode tags: %w", err)
	}
	return scanLecture(p.pool.QueryRow(ctx,
		`INSERT INTO lectures (id, user_id, title, course, date, duration, tags, transcript, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+lectureColumns,
		uuid.New(), uid, in.Title, in.Course, in.Date, in.Duration, tags, rawParam(in.Transcript), in.Status))
}

func (p *Postgres) UpdateLecture(ctx context.Context, userID, id string, up LectureUpdate) (Lecture, error) {
	uid, lid, err := parseOwned(userID, id)
	if err != nil {
		return Lecture{}, err
	}

	args := []any{lid, uid}
	sets := []string{"updated_at = now()"}
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if up.Title != nil {
		set("title", *up.Title)
	}
	if up.Course != nil {
		set("course", *up.Course)
	}
	if up.Tags != nil && *up.Tags != nil {
		tags, err := json.Marshal(*up.Tags)
		if err != nil {
			return Lecture{}, fmt.Errorf("encode tags: %w", err)
		}
		set("tags", tags)
	}
	if up.Status != nil {
		set("status", *up.Status)
	}
	if up.Transcript != nil {
		set("transcript", rawParam(up.Transcript))
	}
	if up.Summary != nil {
		set("summary", rawParam(up.Summary))
	}
	if up.Notes != nil {
		set("notes", rawParam(up.Notes))
	}
	if up.ErrorMessage.Set {
		set("error_message", up.ErrorMessage.Value)
	}
	if up.AudioPath.Set {
		set("audio_path", up.AudioPath.Value)
	}

	query := `UPDATE lectures SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 AND user_id = $2 RETURNING ` + lectureColumns
	return scanLecture(p.pool.QueryRow(ctx, query, args...))
}

func (p *Postgres) DeleteLecture(ctx context.Context, userID, id string) error {
	uid, lid, err := parseOwned(userID, id)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM lectures WHERE id = $1 AND user_id = $2`, lid, uid)
	if err != nil {
		return fmt.Errorf("delete lecture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func parseOwned(userID, id string) (uuid.UUID, uuid.UUID, error) {
	uid, err := parseID(userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	lid, err := parseID(id)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return uid, lid, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.GoogleID, &u.CreatedAt)
	if err != nil {
		return User{}, mapError(err)
	}
	return u, nil
}

func scanLecture(row pgx.Row) (Lecture, error) {
	var (
		l                          Lecture
		tags                       []byte
		transcript, summary, notes []byte
	)
	err := row.Scan(&l.ID, &l.UserID, &l.Title, &l.Course, &l.Date, &l.Duration, &tags,
		&transcript, &summary, &notes, &l.Status, &l.ErrorMessage, &l.AudioPath, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Lecture{}, mapError(err)
	}
	l.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &l.Tags); err != nil {
			return Lecture{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	l.Transcript = rawColumn(transcript)
	l.Summary = rawColumn(summary)
	l.Notes = rawColumn(notes)
	return l, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

// rawParam converts a document to a jsonb parameter; nil and JSON null both store SQL NULL.
func rawParam(r json.RawMessage) any {
	if r == nil || isNullJSON(r) {
		return nil
	}
	return []byte(r)
}

func rawColumn(b []byte) json.RawMessage {
	if b == nil {
		return nil
	}
	return json.RawMessage(b)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
