package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/document-chat/internal/core/domain"
)

// SessionRepository persists sessions in a single table. Rows past their
// expiry are invisible to Get and removed by DeleteExpired.
type SessionRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSessionRepository(db *sql.DB, ttl time.Duration) *SessionRepository {
	return &SessionRepository{db: db, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	format TEXT NOT NULL,
	content TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	extraction_ok BOOLEAN NOT NULL,
	warning TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_chat_sessions_expires_at ON chat_sessions(expires_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) Put(ctx context.Context, session domain.Session) (string, error) {
	session.ID = uuid.NewString()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.now()
	}
	var expiresAt sql.NullTime
	if r.ttl > 0 {
		expiresAt = sql.NullTime{Time: session.CreatedAt.Add(r.ttl), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_sessions (
	id, filename, format, content, summary, extraction_ok, warning, created_at, expires_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		session.ID, session.Filename, string(session.Format), session.Content, session.Summary,
		session.ExtractionOK, session.Warning, session.CreatedAt, expiresAt,
	)
	if err != nil {
		return "", domain.WrapError(domain.ErrTemporary, "insert session", err)
	}
	return session.ID, nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, format, content, summary, extraction_ok, warning, created_at
FROM chat_sessions
WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)
`, id, r.now())

	var session domain.Session
	var format string
	err := row.Scan(
		&session.ID, &session.Filename, &format, &session.Content, &session.Summary,
		&session.ExtractionOK, &session.Warning, &session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id=%s", id))
		}
		return nil, domain.WrapError(domain.ErrTemporary, "scan session", err)
	}
	session.Format = domain.Format(format)
	return &session, nil
}

// DeleteExpired removes expired rows and reports how many were dropped.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE expires_at IS NOT NULL AND expires_at <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (r *SessionRepository) Close() error {
	return r.db.Close()
}
