// Package db keeps the DuckDB catalog of source extents.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/akshaydinakar/wb-builder-exercise/internal/extent"
)

// Config holds database configuration. An empty DataDir opens an in-memory
// database.
type Config struct {
	DataDir string
	DBName  string
}

const schema = `CREATE TABLE IF NOT EXISTS source_extents (
	source     VARCHAR PRIMARY KEY,
	min_x      DOUBLE NOT NULL,
	min_y      DOUBLE NOT NULL,
	max_x      DOUBLE NOT NULL,
	max_y      DOUBLE NOT NULL,
	features   INTEGER NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SourceExtent is one catalog row.
type SourceExtent struct {
	Source    string        `json:"source" doc:"Source name" example:"boundary"`
	Extent    extent.Extent `json:"extent" doc:"Last computed extent"`
	Features  int           `json:"features" doc:"Number of features in the last load"`
	UpdatedAt time.Time     `json:"updatedAt" doc:"When the extent was recorded"`
}

// Catalog records the last computed extent of each source.
type Catalog struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database and ensures its schema.
func Open(cfg Config) (*Catalog, error) {
	dsn := ""
	if cfg.DataDir != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "geo"
		}
		dsn = filepath.Join(duckdbDir, name+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create source_extents: %w", err)
	}
	return &Catalog{db: conn}, nil
}

// DB returns the underlying connection pool for ad-hoc queries.
func (c *Catalog) DB() *sql.DB {
	return c.db
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Record stores the extent of a source, replacing any earlier row.
func (c *Catalog) Record(ctx context.Context, source string, ext extent.Extent, features int) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO source_extents VALUES (?, ?, ?, ?, ?, ?, ?)`,
		source, ext.MinX, ext.MinY, ext.MaxX, ext.MaxY, features, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record extent of %q: %w", source, err)
	}
	return nil
}

// Forget removes a source's row. Sources that load without coordinates
// have no extent to keep.
func (c *Catalog) Forget(ctx context.Context, source string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM source_extents WHERE source = ?`, source); err != nil {
		return fmt.Errorf("forget extent of %q: %w", source, err)
	}
	return nil
}

// List returns every recorded extent ordered by source name.
func (c *Catalog) List(ctx context.Context) ([]SourceExtent, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT source, min_x, min_y, max_x, max_y, features, updated_at FROM source_extents ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("list extents: %w", err)
	}
	defer rows.Close()

	out := []SourceExtent{}
	for rows.Next() {
		var r SourceExtent
		if err := rows.Scan(&r.Source, &r.Extent.MinX, &r.Extent.MinY, &r.Extent.MaxX, &r.Extent.MaxY, &r.Features, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan extent: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
