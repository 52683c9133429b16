package repository

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/younes-bami/hrcut-app/internal/model"
)

// AuthEventsRepository stores login attempts for audit and the /customers/me/logins view.
type AuthEventsRepository interface {
	Record(ctx context.Context, a model.LoginAttempt) error
	ListBySubject(ctx context.Context, subjectID string, limit, offset int) ([]model.LoginAttempt, error)
	EnsureSchema(ctx context.Context) error
}

type chAuthEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHAuthEventsRepository(ch *sqlx.DB) AuthEventsRepository {
	return &chAuthEventsRepository{ch: ch}
}

const loginAttemptsDDL = `
CREATE TABLE IF NOT EXISTS login_attempts (
    username   String,
    subject_id String,
    outcome    LowCardinality(String),
    remote_ip  String,
    created_at DateTime64(3)
) ENGINE = MergeTree
ORDER BY (subject_id, created_at)`

func (r *chAuthEventsRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.ch.ExecContext(ctx, loginAttemptsDDL)
	return err
}

func (r *chAuthEventsRepository) Record(ctx context.Context, a model.LoginAttempt) error {
	_, err := r.ch.ExecContext(ctx, `
		INSERT INTO login_attempts (username, subject_id, outcome, remote_ip, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, a.Username, a.SubjectID, string(a.Outcome), a.RemoteIP, a.CreatedAt)
	return err
}

func (r *chAuthEventsRepository) ListBySubject(ctx context.Context, subjectID string, limit, offset int) ([]model.LoginAttempt, error) {
	limit, offset = clampPage(limit, offset)

	var rows []model.LoginAttempt
	err := r.ch.SelectContext(ctx, &rows, `
		SELECT username, subject_id, outcome, remote_ip, created_at
		FROM login_attempts
		WHERE subject_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, subjectID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// MemoryAuthEventsRepository is used when no ClickHouse DSN is configured.
type MemoryAuthEventsRepository struct {
	mu       sync.Mutex
	attempts []model.LoginAttempt
}

func NewMemoryAuthEventsRepository() *MemoryAuthEventsRepository {
	return &MemoryAuthEventsRepository{}
}

var _ AuthEventsRepository = (*MemoryAuthEventsRepository)(nil)

func (r *MemoryAuthEventsRepository) EnsureSchema(context.Context) error { return nil }

func (r *MemoryAuthEventsRepository) Record(_ context.Context, a model.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

// ListBySubject returns newest first.
func (r *MemoryAuthEventsRepository) ListBySubject(_ context.Context, subjectID string, limit, offset int) ([]model.LoginAttempt, error) {
	limit, offset = clampPage(limit, offset)

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.LoginAttempt
	for i := len(r.attempts) - 1; i >= 0; i-- {
		if r.attempts[i].SubjectID == subjectID {
			out = append(out, r.attempts[i])
		}
	}
	if offset >= len(out) {
		return []model.LoginAttempt{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
