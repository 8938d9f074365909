package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists transcripts in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transcripts (
			owner TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS transcript_turns (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL REFERENCES transcripts(owner) ON DELETE CASCADE,
			seq BIGINT GENERATED ALWAYS AS IDENTITY,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_turns_owner_seq ON transcript_turns (owner, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) LoadOrCreate(ctx context.Context, owner string) (Transcript, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcripts (owner) VALUES ($1) ON CONFLICT (owner) DO NOTHING`,
		owner,
	)
	if err != nil {
		return Transcript{}, &StoreError{Op: "create", Err: err}
	}
	return s.Load(ctx, owner)
}

func (s *PostgresStore) Load(ctx context.Context, owner string) (Transcript, error) {
	tr := Transcript{Owner: owner}
	err := s.pool.QueryRow(ctx,
		`SELECT created_at, updated_at FROM transcripts WHERE owner=$1`,
		owner,
	).Scan(&tr.CreatedAt, &tr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transcript{}, &StoreError{Op: "load", Err: ErrNotFound}
	}
	if err != nil {
		return Transcript{}, &StoreError{Op: "load", Err: err}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, role, content, created_at
		 FROM transcript_turns WHERE owner=$1 ORDER BY seq`,
		owner,
	)
	if err != nil {
		return Transcript{}, &StoreError{Op: "load", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return Transcript{}, &StoreError{Op: "load", Err: fmt.Errorf("scan turn row: %w", err)}
		}
		tr.Turns = append(tr.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return Transcript{}, &StoreError{Op: "load", Err: fmt.Errorf("iterate turn rows: %w", err)}
	}

	return tr, nil
}

// Append inserts all turns inside one transaction so a pair from a concurrent
// exchange can never land between them.
func (s *PostgresStore) Append(ctx context.Context, owner string, turns []Turn) (Transcript, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Transcript{}, &StoreError{Op: "append", Err: err}
	}
	defer tx.Rollback(ctx)

	var exists string
	err = tx.QueryRow(ctx,
		`SELECT owner FROM transcripts WHERE owner=$1 FOR UPDATE`,
		owner,
	).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transcript{}, &StoreError{Op: "append", Err: ErrNotFound}
	}
	if err != nil {
		return Transcript{}, &StoreError{Op: "append", Err: err}
	}

	now := time.Now().UTC()
	for _, t := range turns {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO transcript_turns (id, owner, role, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			t.ID, owner, t.Role, t.Content, t.CreatedAt,
		); err != nil {
			return Transcript{}, &StoreError{Op: "append", Err: err}
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE transcripts SET updated_at=$2 WHERE owner=$1`,
		owner, now,
	); err != nil {
		return Transcript{}, &StoreError{Op: "append", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return Transcript{}, &StoreError{Op: "append", Err: err}
	}

	return s.Load(ctx, owner)
}

func (s *PostgresStore) Delete(ctx context.Context, owner string) error {
	// transcript_turns rows cascade with the owner record.
	if _, err := s.pool.Exec(ctx, `DELETE FROM transcripts WHERE owner=$1`, owner); err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
