// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the production Store, backing resource records
// with a single JSONB table keyed by (kind, id) and a generation
// column used for optimistic concurrency.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool against dsn and ensures
// the resources table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres datastore: dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS resources (
			kind       TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       JSONB NOT NULL,
			generation BIGINT NOT NULL,
			PRIMARY KEY (kind, id)
		)`)
	if err != nil {
		return fmt.Errorf("ensure resources schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, kind, id string) (Record, error) {
	var data json.RawMessage
	var gen int64
	err := s.pool.QueryRow(ctx,
		`SELECT data, generation FROM resources WHERE kind = $1 AND id = $2`,
		kind, id,
	).Scan(&data, &gen)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get resource %s/%s: %w", kind, id, err)
	}
	return Record{Kind: kind, ID: id, Data: data, Generation: gen}, nil
}

func (s *PostgresStore) Put(ctx context.Context, kind, id string, data json.RawMessage) (Record, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO resources (kind, id, data, generation)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (kind, id) DO UPDATE SET data = EXCLUDED.data, generation = 1`,
		kind, id, data,
	)
	if err != nil {
		return Record{}, fmt.Errorf("put resource %s/%s: %w", kind, id, err)
	}
	return Record{Kind: kind, ID: id, Data: data, Generation: 1}, nil
}

// CASUpdate runs the compare-and-swap inside a transaction so the
// generation check and the write are atomic under concurrent sagas
// racing the same resource.
func (s *PostgresStore) CASUpdate(ctx context.Context, kind, id string, expectedGeneration int64, next json.RawMessage) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin cas update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var currentGeneration int64
	err = tx.QueryRow(ctx,
		`SELECT generation FROM resources WHERE kind = $1 AND id = $2 FOR UPDATE`,
		kind, id,
	).Scan(&currentGeneration)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read generation for cas: %w", err)
	}
	if currentGeneration != expectedGeneration {
		return 0, ErrGenerationMismatch
	}

	newGeneration := currentGeneration + 1
	if _, err := tx.Exec(ctx,
		`UPDATE resources SET data = $1, generation = $2 WHERE kind = $3 AND id = $4`,
		next, newGeneration, kind, id,
	); err != nil {
		return 0, fmt.Errorf("apply cas update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit cas update: %w", err)
	}
	return newGeneration, nil
}

func (s *PostgresStore) Delete(ctx context.Context, kind, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM resources WHERE kind = $1 AND id = $2`, kind, id); err != nil {
		return fmt.Errorf("delete resource %s/%s: %w", kind, id, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
