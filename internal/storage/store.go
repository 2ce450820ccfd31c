package storage

import (
	"context"
	"time"

	"briefbot/pkg/logx"
)

// Store is the persistence API used by the core and the command surface.
type Store interface {
	// Subscription registry.
	Subscriptions(ctx context.Context) ([]Subscription, error)
	SubscriptionsByFrequency(ctx context.Context, f Frequency) ([]Subscription, error)
	GuildSubscriptions(ctx context.Context, guildID string) ([]Subscription, error)
	IsSubscribed(ctx context.Context, guildID, channelID string) (bool, error)
	AddSubscription(ctx context.Context, sub Subscription) error
	RemoveSubscription(ctx context.Context, guildID, channelID string) error

	// Per-cadence watermarks. A zero time means "never set".
	Watermark(ctx context.Context, key string) (time.Time, error)
	SetWatermark(ctx context.Context, key string, t time.Time) error

	// Article queue. QueueArticle is insert-if-absent; ArticlesBetween
	// selects discovered_ts in (start, end], ordered by published_ts.
	QueueArticle(ctx context.Context, a Article) error
	ArticlesBetween(ctx context.Context, start, end time.Time) ([]Article, error)
	PruneArticles(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}

// Open initializes the SQLite store at cfg.Path and runs migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, log)
}
