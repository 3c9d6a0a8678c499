package kvstore

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
create table if not exists rubricflow_kv (
  key text primary key,
  value text not null,
  updated_at timestamp not null
);
`,
	get: `select value from rubricflow_kv where key=?`,
	set: `insert into rubricflow_kv (key, value, updated_at) values (?, ?, ?)
on conflict (key) do update set value = excluded.value, updated_at = excluded.updated_at`,
	remove: `delete from rubricflow_kv where key=?`,
}

// OpenSQLite opens path (":memory:" for a private in-memory database) and
// creates the table.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Every pooled connection to :memory: would see its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	s := &SQLStore{db: db, d: sqliteDialect}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
