// Package feed polls the remote syndication feed and turns entries into
// queueable articles.
package feed

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"briefbot/internal/storage"
	"briefbot/pkg/logx"
)

type Config struct {
	URL string
}

type Fetcher struct {
	parser *gofeed.Parser
	log    logx.Logger

	mu  sync.Mutex
	cfg Config
}

// First image URL in rendered entry content, best effort.
var imageRe = regexp.MustCompile(`(?i)\bhttps?://\S+?\.(?:jpg|png|gif)\b`)

func New(cfg Config, log logx.Logger) *Fetcher {
	return &Fetcher{cfg: cfg, parser: gofeed.NewParser(), log: log}
}

func (f *Fetcher) Apply(cfg Config) {
	f.mu.Lock()
	f.cfg = cfg
	f.mu.Unlock()
}

func (f *Fetcher) url() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.URL
}

// Fetch retrieves the feed and returns the entries published after
// lastFetch, newest data only. Entries without a parseable publish time
// are stamped with now. The caller queues the result and advances the
// fetch watermark; a returned error means the whole tick must be
// retried without advancing it.
func (f *Fetcher) Fetch(ctx context.Context, lastFetch, now time.Time) ([]storage.Article, error) {
	url := f.url()
	parsed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	var out []storage.Article
	for _, item := range parsed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		published := now
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		}
		// Publish time is the sole incremental filter; feed order is
		// not assumed.
		if !published.After(lastFetch) {
			f.log.Trace("entry too old", logx.String("title", item.Title))
			continue
		}
		out = append(out, storage.Article{
			ID:           ArticleID(item.Link),
			Title:        item.Title,
			Link:         item.Link,
			ImageURL:     extractImageURL(item.Content),
			PublishedTs:  published,
			DiscoveredTs: now,
		})
	}
	return out, nil
}

// ArticleID derives the content-addressed article id from the link.
func ArticleID(link string) string {
	sum := sha1.Sum([]byte(link))
	return hex.EncodeToString(sum[:])
}

// extractImageURL returns the first image URL found in rendered content,
// or "" when there is none. Extraction never fails an entry.
func extractImageURL(content string) string {
	if content == "" {
		return ""
	}
	return imageRe.FindString(content)
}
