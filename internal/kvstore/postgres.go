package kvstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: `
create table if not exists rubricflow_kv (
  key text primary key,
  value text not null,
  updated_at timestamptz not null
);
`,
	get: `select value from rubricflow_kv where key=$1`,
	set: `insert into rubricflow_kv (key, value, updated_at) values ($1, $2, $3)
on conflict (key) do update set value = excluded.value, updated_at = excluded.updated_at`,
	remove: `delete from rubricflow_kv where key=$1`,
}

// NewPostgres wraps an open database. Call Migrate before first use.
func NewPostgres(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, d: postgresDialect}
}

// OpenPostgres connects through the pgx driver and creates the table.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := NewPostgres(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
