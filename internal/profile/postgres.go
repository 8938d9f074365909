package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	stmt := `CREATE TABLE IF NOT EXISTS profiles (
		owner TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		resume_link TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init profiles schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, owner string) (Record, error) {
	rec := Record{Owner: owner}
	err := s.pool.QueryRow(ctx,
		`SELECT display_name, resume_link, updated_at FROM profiles WHERE owner=$1`,
		owner,
	).Scan(&rec.DisplayName, &rec.ResumeLink, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load profile: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec Record) (Record, error) {
	rec.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (owner, display_name, resume_link, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner) DO UPDATE
		 SET display_name=EXCLUDED.display_name,
		     resume_link=EXCLUDED.resume_link,
		     updated_at=EXCLUDED.updated_at`,
		rec.Owner, rec.DisplayName, rec.ResumeLink, rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("upsert profile: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
