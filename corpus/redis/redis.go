// Package redis reads crawled pages from Redis.
//
// Each page is a hash at <prefix>page:<id> with the fields content, title,
// url, ldJsonScripts, imageUrls, pageHrefs, linkTags and metaTags; array
// fields hold JSON text. The list <prefix>pages keeps page IDs in crawl order.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/smallnest/ragpipe/corpus"
)

// Source reads corpus records from Redis.
type Source struct {
	client *redis.Client
	prefix string
}

var _ corpus.Source = (*Source)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Key prefix, default "ragpipe:"
}

// New creates a Source.
func New(opts Options) *Source {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "ragpipe:"
	}

	return &Source{client: client, prefix: prefix}
}

func (s *Source) pageKey(id string) string {
	return fmt.Sprintf("%spage:%s", s.prefix, id)
}

func (s *Source) listKey() string {
	return s.prefix + "pages"
}

// Close closes the client.
func (s *Source) Close() error {
	return s.client.Close()
}

// maxPutAttempts bounds the optimistic retries of a single page write.
const maxPutAttempts = 16

// Put stores records. New IDs are appended to the page list; existing pages
// are replaced in place. Each page is written in a WATCH transaction, so
// concurrent writers never list the same ID twice.
func (s *Source) Put(ctx context.Context, records ...corpus.Record) error {
	for _, r := range records {
		if r.ID == "" {
			r.ID = r.Document().ID
		}
		if err := s.put(ctx, r); err != nil {
			return fmt.Errorf("failed to save page %s to redis: %w", r.ID, err)
		}
	}
	return nil
}

func (s *Source) put(ctx context.Context, r corpus.Record) error {
	key := s.pageKey(r.ID)
	write := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key,
				"content", r.Content,
				"title", r.Title,
				"url", r.URL,
				"ldJsonScripts", corpus.EncodeStrings(r.LDJSONScripts),
				"imageUrls", corpus.EncodeStrings(r.ImageURLs),
				"pageHrefs", corpus.EncodeStrings(r.PageHrefs),
				"linkTags", corpus.EncodeValues(r.LinkTags),
				"metaTags", corpus.EncodeValues(r.MetaTags),
			)
			if exists == 0 {
				pipe.RPush(ctx, s.listKey(), r.ID)
			}
			return nil
		})
		return err
	}

	for range maxPutAttempts {
		err := s.client.Watch(ctx, write, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

// Records implements corpus.Source. IDs listed without a page hash are skipped.
func (s *Source) Records(ctx context.Context) ([]corpus.Record, error) {
	ids, err := s.client.LRange(ctx, s.listKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	if len(ids) == 0 {
		return []corpus.Record{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.pageKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}

	records := make([]corpus.Record, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		records = append(records, corpus.Record{
			ID:            ids[i],
			Content:       fields["content"],
			Title:         fields["title"],
			URL:           fields["url"],
			LDJSONScripts: corpus.ParseStrings([]byte(fields["ldJsonScripts"])),
			ImageURLs:     corpus.ParseStrings([]byte(fields["imageUrls"])),
			PageHrefs:     corpus.ParseStrings([]byte(fields["pageHrefs"])),
			LinkTags:      corpus.ParseValues([]byte(fields["linkTags"])),
			MetaTags:      corpus.ParseValues([]byte(fields["metaTags"])),
		})
	}
	return records, nil
}
