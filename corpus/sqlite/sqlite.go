// Package sqlite reads crawled pages from a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smallnest/ragpipe/corpus"
)

// Source reads corpus records from SQLite.
type Source struct {
	db        *sql.DB
	tableName string
}

var _ corpus.Source = (*Source)(nil)

// Options configures the database.
type Options struct {
	Path      string
	TableName string // Default "pages"
}

// New opens the database and creates the pages table if needed.
func New(opts Options) (*Source, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	if opts.Path == ":memory:" {
		// every connection would open its own empty database
		db.SetMaxOpenConns(1)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "pages"
	}

	s := &Source{db: db, tableName: tableName}
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates the pages table if it doesn't exist.
func (s *Source) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			ld_json_scripts TEXT,
			image_urls TEXT,
			page_hrefs TEXT,
			link_tags TEXT,
			meta_tags TEXT
		);
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Source) Close() error {
	return s.db.Close()
}

// Put inserts or replaces records in a single transaction. A replaced record
// keeps its position.
func (s *Source) Put(ctx context.Context, records ...corpus.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, title, url, ld_json_scripts, image_urls, page_hrefs, link_tags, meta_tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			title = excluded.title,
			url = excluded.url,
			ld_json_scripts = excluded.ld_json_scripts,
			image_urls = excluded.image_urls,
			page_hrefs = excluded.page_hrefs,
			link_tags = excluded.link_tags,
			meta_tags = excluded.meta_tags
	`, s.tableName)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if r.ID == "" {
			r.ID = r.Document().ID
		}
		_, err := tx.ExecContext(ctx, query,
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

	return tx.Commit()
}

// Records implements corpus.Source, returning pages in insertion order.
func (s *Source) Records(ctx context.Context) ([]corpus.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, content, title, url,
			COALESCE(ld_json_scripts, ''), COALESCE(image_urls, ''), COALESCE(page_hrefs, ''),
			COALESCE(link_tags, ''), COALESCE(meta_tags, '')
		FROM %s
		ORDER BY seq ASC
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query)
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
