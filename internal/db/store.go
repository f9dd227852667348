package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/joeblew999/plat-ogc/internal/datasource"
)

const schema = `CREATE TABLE IF NOT EXISTS datasources (
	id      INTEGER PRIMARY KEY,
	name    VARCHAR NOT NULL,
	options VARCHAR NOT NULL
)`

// DataSourceStore persists data source options in a DuckDB table, one JSON
// document per id.
type DataSourceStore struct {
	db *sql.DB
}

// NewDataSourceStore creates the table if needed.
func NewDataSourceStore(ctx context.Context, conn *sql.DB) (*DataSourceStore, error) {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create datasources table: %w", err)
	}
	return &DataSourceStore{db: conn}, nil
}

func (s *DataSourceStore) LoadAll(ctx context.Context) ([]datasource.Options, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, options FROM datasources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []datasource.Options
	for rows.Next() {
		var (
			id  int
			doc string
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		var o datasource.Options
		if err := json.Unmarshal([]byte(doc), &o); err != nil {
			return nil, fmt.Errorf("decode data source %d: %w", id, err)
		}
		o.ID = &id
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *DataSourceStore) Put(ctx context.Context, opts datasource.Options) error {
	if opts.ID == nil {
		return fmt.Errorf("%w: id is required", datasource.ErrInvalidConfig)
	}
	doc, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO datasources (id, name, options) VALUES (?, ?, ?)`,
		*opts.ID, opts.Name, string(doc))
	return err
}

func (s *DataSourceStore) Delete(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM datasources WHERE id = ?`, id)
	return err
}

// Count returns the number of stored data sources.
func (s *DataSourceStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM datasources`).Scan(&n)
	return n, err
}
