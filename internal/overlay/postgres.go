package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS overlays (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps each overlay as a JSONB document keyed by id.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and creates the overlays table if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres overlay dsn required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres overlay config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres overlay pool: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create overlays table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, o Overlay) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO overlays (id, doc, created_at) VALUES ($1, $2, $3)`,
		o.ID, doc, o.CreatedAt.UTC())
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Overlay, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM overlays WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Overlay{}, ErrNotFound
		}
		return Overlay{}, err
	}
	return decodeDoc(doc)
}

func (s *PostgresStore) Replace(ctx context.Context, o Overlay) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE overlays SET doc = $2 WHERE id = $1`, o.ID, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM overlays WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM overlays WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Overlay, error) {
	rows, err := s.pool.Query(ctx, `
SELECT doc
FROM overlays
WHERE ($1 = '' OR doc->>'type' = $1)
  AND (NOT $2 OR (doc->>'visible')::boolean)
`, f.Type, f.VisibleOnly)
	if err != nil {
		return nil, err
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, err
	}

	out := make([]Overlay, 0, len(docs))
	for _, doc := range docs {
		o, err := decodeDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func decodeDoc(doc []byte) (Overlay, error) {
	var o Overlay
	if err := json.Unmarshal(doc, &o); err != nil {
		return Overlay{}, fmt.Errorf("decode overlay document: %w", err)
	}
	return o, nil
}
