package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a conversion id has no row.
var ErrNotFound = errors.New("conversion not found")

// Conversion is one row of the conversion history. Transcript text is never stored.
type Conversion struct {
	ID        uuid.UUID `json:"id"`
	Format    string    `json:"format"`
	Files     int       `json:"files"`
	FileNames []string  `json:"file_names"`
	Lines     int       `json:"lines"`
	Skipped   int       `json:"skipped"`
	Bytes     int64     `json:"bytes"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordConversion inserts a conversion. A zero CreatedAt means now.
func (s *Store) RecordConversion(ctx context.Context, c Conversion) error {
	if c.ID == uuid.Nil {
		return errors.New("record conversion: missing id")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.FileNames == nil {
		c.FileNames = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chattxt_conversions (id, format, files, file_names, lines, skipped, bytes, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Format, c.Files, c.FileNames, c.Lines, c.Skipped, c.Bytes, c.Source, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

// RecentConversions lists the latest conversions, newest first.
func (s *Store) RecentConversions(ctx context.Context, limit int) ([]Conversion, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, format, files, file_names, lines, skipped, bytes, source, created_at
		FROM chattxt_conversions
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer rows.Close()

	var out []Conversion
	for rows.Next() {
		var c Conversion
		if err := rows.Scan(&c.ID, &c.Format, &c.Files, &c.FileNames, &c.Lines, &c.Skipped, &c.Bytes, &c.Source, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConversion fetches one conversion by ID.
func (s *Store) GetConversion(ctx context.Context, id uuid.UUID) (*Conversion, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, format, files, file_names, lines, skipped, bytes, source, created_at
		FROM chattxt_conversions WHERE id = $1`, id)

	var c Conversion
	err := row.Scan(&c.ID, &c.Format, &c.Files, &c.FileNames, &c.Lines, &c.Skipped, &c.Bytes, &c.Source, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
