package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"briefbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- Subscriptions ----

func (s *sqliteStore) Subscriptions(ctx context.Context) ([]Subscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT guild_id, channel_id, silent, frequency FROM subscriptions`)
}

func (s *sqliteStore) SubscriptionsByFrequency(ctx context.Context, f Frequency) ([]Subscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT guild_id, channel_id, silent, frequency FROM subscriptions WHERE frequency = ?`, int(f))
}

func (s *sqliteStore) GuildSubscriptions(ctx context.Context, guildID string) ([]Subscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT guild_id, channel_id, silent, frequency FROM subscriptions WHERE guild_id = ?`, guildID)
}

func (s *sqliteStore) querySubscriptions(ctx context.Context, q string, args ...any) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		var silent, freq int
		if err := rows.Scan(&sub.GuildID, &sub.ChannelID, &silent, &freq); err != nil {
			return nil, err
		}
		sub.Silent = SilentMode(silent)
		sub.Frequency = Frequency(freq)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *sqliteStore) IsSubscribed(ctx context.Context, guildID, channelID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM subscriptions WHERE guild_id = ? AND channel_id = ?`,
		guildID, channelID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) AddSubscription(ctx context.Context, sub Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (guild_id, channel_id, silent, frequency) VALUES (?,?,?,?)`,
		sub.GuildID, sub.ChannelID, int(sub.Silent), int(sub.Frequency))
	return err
}

func (s *sqliteStore) RemoveSubscription(ctx context.Context, guildID, channelID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE guild_id = ? AND channel_id = ?`,
		guildID, channelID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Watermarks ----

func (s *sqliteStore) Watermark(ctx context.Context, key string) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM system WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(sec, 0), nil
}

func (s *sqliteStore) SetWatermark(ctx context.Context, key string, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system (key, value) VALUES (?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, strconv.FormatInt(t.Unix(), 10))
	return err
}

// ---- Article queue ----

func (s *sqliteStore) QueueArticle(ctx context.Context, a Article) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO articles (id, title, link, image_url, published_ts, discovered_ts)
		 VALUES (?,?,?,?,?,?)`,
		a.ID, a.Title, a.Link, nullStr(a.ImageURL), a.PublishedTs.Unix(), a.DiscoveredTs.Unix())
	return err
}

func (s *sqliteStore) ArticlesBetween(ctx context.Context, start, end time.Time) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, link, image_url, published_ts, discovered_ts
		 FROM articles WHERE discovered_ts > ? AND discovered_ts <= ?
		 ORDER BY published_ts ASC`,
		start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var arts []Article
	for rows.Next() {
		var a Article
		var img sql.NullString
		var pub, disc int64
		if err := rows.Scan(&a.ID, &a.Title, &a.Link, &img, &pub, &disc); err != nil {
			return nil, err
		}
		a.ImageURL = img.String
		a.PublishedTs = time.Unix(pub, 0)
		a.DiscoveredTs = time.Unix(disc, 0)
		arts = append(arts, a)
	}
	return arts, rows.Err()
}

func (s *sqliteStore) PruneArticles(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM articles WHERE discovered_ts < ?`, olderThan.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
