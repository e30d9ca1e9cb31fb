package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second

	cachesTable  = "sw_caches"
	entriesTable = "sw_cache_entries"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sw_caches (
	name       TEXT PRIMARY KEY,
	seq        BIGSERIAL NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sw_cache_entries (
	cache_name TEXT NOT NULL REFERENCES sw_caches(name) ON DELETE CASCADE,
	key        TEXT NOT NULL,
	seq        BIGSERIAL NOT NULL,
	status     INT NOT NULL,
	header     JSONB NOT NULL,
	body       BYTEA NOT NULL,
	stored_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (cache_name, key)
);

CREATE INDEX IF NOT EXISTS sw_cache_entries_order_idx ON sw_cache_entries (cache_name, seq);
`

// Postgres keeps caches in two tables. Insertion order is the entry's
// sequence number; a re-put gets a fresh one.
type Postgres struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *Postgres) EnsureSchema(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, postgresSchema)
		return err
	})
}

func (s *Postgres) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *Postgres) Open(ctx context.Context, name string) (Cache, error) {
	if err := validate(name); err != nil {
		return nil, err
	}

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.qb.Insert(cachesTable).
			Columns("name").
			Values(name).
			Suffix("ON CONFLICT (name) DO NOTHING").
			RunWith(s.db).
			ExecContext(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open cache %q: %w", name, err)
	}
	return &pgCache{store: s, name: name}, nil
}

func (s *Postgres) Has(ctx context.Context, name string) (bool, error) {
	var n int
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.qb.Select("count(*)").
			From(cachesTable).
			Where(sq.Eq{"name": name}).
			RunWith(s.db).
			QueryRowContext(ctx).
			Scan(&n)
	})
	return n > 0, err
}

func (s *Postgres) Names(ctx context.Context) ([]string, error) {
	var out []string
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.qb.Select("name").
			From(cachesTable).
			OrderBy("seq ASC").
			RunWith(s.db).
			QueryContext(ctx)
		if err != nil {
			return err
		}
		defer rows.Close()

		out, err = scanStrings(rows)
		return err
	})
	return out, err
}

func (s *Postgres) Delete(ctx context.Context, name string) (bool, error) {
	var n int64
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.qb.Delete(cachesTable).
			Where(sq.Eq{"name": name}).
			RunWith(s.db).
			ExecContext(ctx)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n > 0, err
}

func (s *Postgres) Match(ctx context.Context, key string) (Entry, bool, error) {
	q := s.qb.Select("e.key", "e.status", "e.header", "e.body", "e.stored_at").
		From(entriesTable + " e").
		Join(cachesTable + " c ON c.name = e.cache_name").
		Where(sq.Eq{"e.key": key}).
		OrderBy("c.seq ASC").
		Limit(1)
	return s.matchOne(ctx, q)
}

func (s *Postgres) matchOne(ctx context.Context, q sq.SelectBuilder) (Entry, bool, error) {
	var (
		e      Entry
		header []byte
	)
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return q.RunWith(s.db).QueryRowContext(ctx).
			Scan(&e.Key, &e.Status, &header, &e.Body, &e.StoredAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if err := json.Unmarshal(header, &e.Header); err != nil {
		return Entry{}, false, fmt.Errorf("decode header for %q: %w", e.Key, err)
	}
	return e, true, nil
}

type pgCache struct {
	store *Postgres
	name  string
}

func (c *pgCache) Name() string { return c.name }

func (c *pgCache) Match(ctx context.Context, key string) (Entry, bool, error) {
	q := c.store.qb.Select("key", "status", "header", "body", "stored_at").
		From(entriesTable).
		Where(sq.Eq{"cache_name": c.name, "key": key})
	return c.store.matchOne(ctx, q)
}

func (c *pgCache) Put(ctx context.Context, e Entry, limit int) ([]string, error) {
	if e.Key == "" {
		return nil, ErrEmptyKey
	}

	var evicted []string
	err := c.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := c.insert(ctx, tx, e); err != nil {
			return err
		}
		if limit <= 0 {
			return nil
		}

		var err error
		evicted, err = c.trim(ctx, tx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

func (c *pgCache) PutAll(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if e.Key == "" {
			return ErrEmptyKey
		}
	}

	return c.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, e := range entries {
			if err := c.insert(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// inTx runs fn in a transaction holding a row lock on the cache, which
// serialises concurrent puts against the same cache.
func (c *pgCache) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		tx, err := c.store.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var locked string
		err = c.store.qb.Select("name").
			From(cachesTable).
			Where(sq.Eq{"name": c.name}).
			Suffix("FOR UPDATE").
			RunWith(tx).
			QueryRowContext(ctx).
			Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			// deleted underneath us: recreate so the handle stays usable
			_, err = c.store.qb.Insert(cachesTable).Columns("name").Values(c.name).
				Suffix("ON CONFLICT (name) DO NOTHING").
				RunWith(tx).ExecContext(ctx)
		}
		if err != nil {
			return err
		}

		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (c *pgCache) insert(ctx context.Context, tx *sql.Tx, e Entry) error {
	header, err := json.Marshal(headerOrEmpty(e.Header))
	if err != nil {
		return err
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now().UTC()
	}
	if e.Body == nil {
		e.Body = []byte{}
	}

	if _, err := c.store.qb.Delete(entriesTable).
		Where(sq.Eq{"cache_name": c.name, "key": e.Key}).
		RunWith(tx).
		ExecContext(ctx); err != nil {
		return err
	}

	_, err = c.store.qb.Insert(entriesTable).
		Columns("cache_name", "key", "status", "header", "body", "stored_at").
		Values(c.name, e.Key, e.Status, header, e.Body, e.StoredAt).
		RunWith(tx).
		ExecContext(ctx)
	return err
}

func (c *pgCache) trim(ctx context.Context, tx *sql.Tx, limit int) ([]string, error) {
	var n int
	if err := c.store.qb.Select("count(*)").
		From(entriesTable).
		Where(sq.Eq{"cache_name": c.name}).
		RunWith(tx).
		QueryRowContext(ctx).
		Scan(&n); err != nil {
		return nil, err
	}
	if n <= limit {
		return nil, nil
	}

	rows, err := c.store.qb.Select("key").
		From(entriesTable).
		Where(sq.Eq{"cache_name": c.name}).
		OrderBy("seq ASC").
		Limit(uint64(n - limit)).
		RunWith(tx).
		QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	oldest, err := scanStrings(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if _, err := c.store.qb.Delete(entriesTable).
		Where(sq.Eq{"cache_name": c.name, "key": oldest}).
		RunWith(tx).
		ExecContext(ctx); err != nil {
		return nil, err
	}
	return oldest, nil
}

func (c *pgCache) Delete(ctx context.Context, key string) (bool, error) {
	var n int64
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := c.store.qb.Delete(entriesTable).
			Where(sq.Eq{"cache_name": c.name, "key": key}).
			RunWith(c.store.db).
			ExecContext(ctx)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n > 0, err
}

func (c *pgCache) Keys(ctx context.Context) ([]string, error) {
	var out []string
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := c.store.qb.Select("key").
			From(entriesTable).
			Where(sq.Eq{"cache_name": c.name}).
			OrderBy("seq ASC").
			RunWith(c.store.db).
			QueryContext(ctx)
		if err != nil {
			return err
		}
		defer rows.Close()

		out, err = scanStrings(rows)
		return err
	})
	return out, err
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	out := make([]string, 0, 16)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func headerOrEmpty(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
