// Package postgres reads crawled pages from a PostgreSQL table.
//
// The table keeps one row per page. Array columns hold JSON text so rows
// written by other tools can carry malformed data; such values are read as
// empty lists instead of failing the whole read.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallnest/ragpipe/corpus"
)

// DBPool defines the subset of a connection pool used by Source.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Source reads corpus records from PostgreSQL.
type Source struct {
	pool      DBPool
	tableName string
}

var _ corpus.Source = (*Source)(nil)

// Options configures the connection.
type Options struct {
	ConnString string
	TableName  string // Default "pages"
}

// New connects to PostgreSQL and creates a Source.
func New(ctx context.Context, opts Options) (*Source, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewWithPool(pool, opts.TableName), nil
}

// NewWithPool creates a Source over an existing pool.
func NewWithPool(pool DBPool, tableName string) *Source {
	if tableName == "" {
		tableName = "pages"
	}
	return &Source{pool: pool, tableName: tableName}
}

// InitSchema creates the pages table if it doesn't exist.
func (s *Source) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		ld_json_scripts TEXT,
		image_urls TEXT,
		page_hrefs TEXT,
		link_tags TEXT,
		meta_tags TEXT
	)`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Source) Close() {
	s.pool.Close()
}

// Put inserts or replaces records. A replaced record keeps its position.
func (s *Source) Put(ctx context.Context, records ...corpus.Record) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, content, title, url, ld_json_scripts, image_urls, page_hrefs, link_tags, meta_tags) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, title = EXCLUDED.title, url = EXCLUDED.url, ld_json_scripts = EXCLUDED.ld_json_scripts, image_urls = EXCLUDED.image_urls, page_hrefs = EXCLUDED.page_hrefs, link_tags = EXCLUDED.link_tags, meta_tags = EXCLUDED.meta_tags`, s.tableName)

	for _, r := range records {
		if r.ID == "" {
			r.ID = r.Document().ID
		}
		_, err := s.pool.Exec(ctx, query,
			r.ID,
			r.Content,
			r.Title,
			r.URL,
			string(corpus.EncodeStrings(r.LDJSONScripts)),
			string(corpus.EncodeStrings(r.ImageURLs)),
			string(corpus.EncodeStrings(r.PageHrefs)),
			string(corpus.EncodeValues(r.LinkTags)),
			string(corpus.EncodeValues(r.MetaTags)),
		)
		if err != nil {
			return fmt.Errorf("failed to save page %s: %w", r.ID, err)
		}
	}
	return nil
}

// Records implements corpus.Source, returning pages in insertion order.
func (s *Source) Records(ctx context.Context) ([]corpus.Record, error) {
	query := fmt.Sprintf(`SELECT id, content, title, url, COALESCE(ld_json_scripts, ''), COALESCE(image_urls, ''), COALESCE(page_hrefs, ''), COALESCE(link_tags, ''), COALESCE(meta_tags, '') FROM %s ORDER BY seq`, s.tableName)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var records []corpus.Record
	for rows.Next() {
		var (
			r                                   corpus.Record
			scripts, images, hrefs, links, tags string
		)
		if err := rows.Scan(&r.ID, &r.Content, &r.Title, &r.URL, &scripts, &images, &hrefs, &links, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan page row: %w", err)
		}
		r.LDJSONScripts = corpus.ParseStrings([]byte(scripts))
		r.ImageURLs = corpus.ParseStrings([]byte(images))
		r.PageHrefs = corpus.ParseStrings([]byte(hrefs))
		r.LinkTags = corpus.ParseValues([]byte(links))
		r.MetaTags = corpus.ParseValues([]byte(tags))
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating page rows: %w", err)
	}
	return records, nil
}
