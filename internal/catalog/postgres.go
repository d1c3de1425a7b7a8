package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource loads the catalog from the crawler's Postgres sink.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a connection pool against the crawler database.
func NewPostgresSource(ctx context.Context, databaseURL string) (*PostgresSource, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSource{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresSource) Close() {
	s.pool.Close()
}

// Load reads the full assessments table and builds a snapshot. The table is
// written wholesale by the crawler; this core only ever reads it.
func (s *PostgresSource) Load(ctx context.Context) (*Snapshot, error) {
	query := `
		SELECT id, name, url, remote_support, adaptive_support, duration_minutes, test_types, description, embedding
		FROM assessments
		ORDER BY name
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var items []Assessment
	for rows.Next() {
		var a Assessment
		if err := rows.Scan(
			&a.ID, &a.Name, &a.URL, &a.RemoteSupport, &a.AdaptiveSupport,
			&a.DurationMinutes, &a.TestTypes, &a.Description, &a.Embedding,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read assessments: %w", err)
	}

	return NewSnapshot(items), nil
}
