// Package store implements the relational page cache on PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lib/pq"

	core "github.com/rcabanilla/gridseer/internal/agent/core"
)

const searchPageLimit = 10

type Store struct {
	DB *sql.DB
}

// New constructs the Store from DATABASE_URL or POSTGRES_* env vars
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// SearchPages returns cached pages matching the query text. The match is a
// simple ILIKE over title and content; pages mentioning the Philippines are
// always considered relevant to the domain.
func (s *Store) SearchPages(ctx context.Context, query string) ([]core.EnergyDocument, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := s.DB.QueryContext(ctx, `
        SELECT url, title, source, content
        FROM cached_pages
        WHERE title ILIKE $1 OR content ILIKE $1 OR content ILIKE '%Philippines%'
        ORDER BY created_at DESC
        LIMIT $2`, pattern, searchPageLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search cached pages: %w", err)
	}
	defer rows.Close()

	var docs []core.EnergyDocument
	for rows.Next() {
		var d core.EnergyDocument
		var title, source, content sql.NullString
		if err := rows.Scan(&d.URL, &title, &source, &content); err != nil {
			return nil, err
		}
		d.Title = title.String
		d.Source = source.String
		d.Content = content.String
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// InsertPages inserts the documents into cached_pages. A uniqueness violation
// on any row is reported as core.ErrPageConflict so the caller can retry as an
// upsert.
func (s *Store) InsertPages(ctx context.Context, docs []core.EnergyDocument) error {
	for _, d := range docs {
		_, err := s.DB.ExecContext(ctx, `
            INSERT INTO cached_pages (url, title, source, content)
            VALUES ($1, $2, $3, $4)`, d.URL, d.Title, d.Source, pageContent(d))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert %s: %w", d.URL, core.ErrPageConflict)
			}
			return fmt.Errorf("failed to insert page %s: %w", d.URL, err)
		}
	}
	return nil
}

// UpsertPages inserts the documents, replacing any existing row with the same
// URL.
func (s *Store) UpsertPages(ctx context.Context, docs []core.EnergyDocument) error {
	for _, d := range docs {
		_, err := s.DB.ExecContext(ctx, `
            INSERT INTO cached_pages (url, title, source, content)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (url) DO UPDATE SET
                title = EXCLUDED.title,
                source = EXCLUDED.source,
                content = EXCLUDED.content`, d.URL, d.Title, d.Source, pageContent(d))
		if err != nil {
			return fmt.Errorf("failed to upsert page %s: %w", d.URL, err)
		}
	}
	return nil
}

func pageContent(d core.EnergyDocument) string {
	if d.Content != "" {
		return d.Content
	}
	return d.Snippet
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
