package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type dialect struct {
	name   string
	schema string
	get    string
	set    string
	remove string
}

// SQLStore keeps values in a single two column table.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.schema); err != nil {
		return fmt.Errorf("%s migrate: %w", s.d.name, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	var v string
	err := s.db.QueryRowContext(ctx, s.d.get, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%s get %s: %w", s.d.name, key, err)
	}
	return v, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.d.set, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("%s set %s: %w", s.d.name, key, err)
	}
	return nil
}

func (s *SQLStore) Remove(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.d.remove, key); err != nil {
		return fmt.Errorf("%s remove %s: %w", s.d.name, key, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
