package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"briefbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestQueueArticleIdempotent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	first := Article{
		ID:           "abc",
		Title:        "A",
		Link:         "http://x/1",
		PublishedTs:  time.Unix(1000, 0),
		DiscoveredTs: time.Unix(2000, 0),
	}
	if err := st.QueueArticle(ctx, first); err != nil {
		t.Fatalf("QueueArticle: %v", err)
	}

	// Re-queuing the same id must keep the original discovery time.
	dup := first
	dup.DiscoveredTs = time.Unix(9000, 0)
	if err := st.QueueArticle(ctx, dup); err != nil {
		t.Fatalf("QueueArticle dup: %v", err)
	}

	got, err := st.ArticlesBetween(ctx, time.Unix(0, 0), time.Unix(5000, 0))
	if err != nil {
		t.Fatalf("ArticlesBetween: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 article, got %d", len(got))
	}
	if !got[0].DiscoveredTs.Equal(time.Unix(2000, 0)) {
		t.Fatalf("DiscoveredTs = %v, want original %v", got[0].DiscoveredTs, time.Unix(2000, 0))
	}
}

func TestArticlesBetweenWindow(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	w0 := time.Unix(100, 0)
	w1 := time.Unix(200, 0)
	w2 := time.Unix(300, 0)

	seed := []Article{
		{ID: "at-w0", Title: "at-w0", Link: "l0", PublishedTs: time.Unix(5, 0), DiscoveredTs: w0},
		{ID: "in-first", Title: "in-first", Link: "l1", PublishedTs: time.Unix(3, 0), DiscoveredTs: time.Unix(150, 0)},
		{ID: "at-w1", Title: "at-w1", Link: "l2", PublishedTs: time.Unix(4, 0), DiscoveredTs: w1},
		{ID: "in-second", Title: "in-second", Link: "l3", PublishedTs: time.Unix(1, 0), DiscoveredTs: time.Unix(250, 0)},
	}
	for _, a := range seed {
		if err := st.QueueArticle(ctx, a); err != nil {
			t.Fatalf("QueueArticle(%s): %v", a.ID, err)
		}
	}

	// Window start is exclusive, end inclusive.
	first, err := st.ArticlesBetween(ctx, w0, w1)
	if err != nil {
		t.Fatalf("ArticlesBetween: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first window: expected 2 articles, got %d", len(first))
	}
	// Ordered by published time ascending, not discovery.
	if first[0].ID != "in-first" || first[1].ID != "at-w1" {
		t.Fatalf("first window order = [%s %s]", first[0].ID, first[1].ID)
	}

	second, err := st.ArticlesBetween(ctx, w1, w2)
	if err != nil {
		t.Fatalf("ArticlesBetween: %v", err)
	}
	if len(second) != 1 || second[0].ID != "in-second" {
		t.Fatalf("second window: got %+v", second)
	}
}

func TestArticleImageURLNullable(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	withImg := Article{ID: "i1", Title: "t", Link: "l", ImageURL: "http://x/a.png",
		PublishedTs: time.Unix(1, 0), DiscoveredTs: time.Unix(10, 0)}
	noImg := Article{ID: "i2", Title: "t", Link: "l2",
		PublishedTs: time.Unix(2, 0), DiscoveredTs: time.Unix(10, 0)}
	for _, a := range []Article{withImg, noImg} {
		if err := st.QueueArticle(ctx, a); err != nil {
			t.Fatalf("QueueArticle: %v", err)
		}
	}
	got, err := st.ArticlesBetween(ctx, time.Unix(0, 0), time.Unix(10, 0))
	if err != nil {
		t.Fatalf("ArticlesBetween: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
	if got[0].ImageURL != "http://x/a.png" || got[1].ImageURL != "" {
		t.Fatalf("image urls = %q, %q", got[0].ImageURL, got[1].ImageURL)
	}
}

func TestWatermarks(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	// Migrations seed the keys with "0", which reads as unset.
	got, err := st.Watermark(ctx, KeyLastFetch)
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("fresh watermark = %v, want zero", got)
	}

	now := time.Unix(1700000000, 0)
	for _, key := range []string{KeyLastFetch, KeyLastSendHourly, KeyLastSendDaily} {
		if err := st.SetWatermark(ctx, key, now); err != nil {
			t.Fatalf("SetWatermark(%s): %v", key, err)
		}
		got, err := st.Watermark(ctx, key)
		if err != nil {
			t.Fatalf("Watermark(%s): %v", key, err)
		}
		if !got.Equal(now) {
			t.Fatalf("Watermark(%s) = %v, want %v", key, got, now)
		}
	}

	// Advancing overwrites in place.
	later := now.Add(time.Hour)
	if err := st.SetWatermark(ctx, KeyLastFetch, later); err != nil {
		t.Fatalf("SetWatermark: %v", err)
	}
	got, err = st.Watermark(ctx, KeyLastFetch)
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	if !got.Equal(later) {
		t.Fatalf("Watermark = %v, want %v", got, later)
	}
}

func TestSubscriptions(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	subs := []Subscription{
		{GuildID: "g1", ChannelID: "c1", Silent: SilentAll, Frequency: FreqHourly},
		{GuildID: "g1", ChannelID: "c2", Silent: SilentNone, Frequency: FreqRealtime},
		{GuildID: "g2", ChannelID: "c3", Silent: SilentFirst, Frequency: FreqHourly},
	}
	for _, s := range subs {
		if err := st.AddSubscription(ctx, s); err != nil {
			t.Fatalf("AddSubscription: %v", err)
		}
	}

	ok, err := st.IsSubscribed(ctx, "g1", "c1")
	if err != nil || !ok {
		t.Fatalf("IsSubscribed(g1,c1) = %v, %v", ok, err)
	}
	ok, err = st.IsSubscribed(ctx, "g1", "c3")
	if err != nil || ok {
		t.Fatalf("IsSubscribed(g1,c3) = %v, %v", ok, err)
	}

	hourly, err := st.SubscriptionsByFrequency(ctx, FreqHourly)
	if err != nil {
		t.Fatalf("SubscriptionsByFrequency: %v", err)
	}
	if len(hourly) != 2 {
		t.Fatalf("hourly subscriptions = %d, want 2", len(hourly))
	}
	for _, s := range hourly {
		if s.Frequency != FreqHourly {
			t.Fatalf("unexpected frequency %v", s.Frequency)
		}
	}

	guild, err := st.GuildSubscriptions(ctx, "g1")
	if err != nil {
		t.Fatalf("GuildSubscriptions: %v", err)
	}
	if len(guild) != 2 {
		t.Fatalf("guild subscriptions = %d, want 2", len(guild))
	}

	if err := st.RemoveSubscription(ctx, "g1", "c1"); err != nil {
		t.Fatalf("RemoveSubscription: %v", err)
	}
	if err := st.RemoveSubscription(ctx, "g1", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove = %v, want ErrNotFound", err)
	}
}

func TestPruneArticles(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	old := Article{ID: "old", Title: "t", Link: "l", PublishedTs: time.Unix(1, 0), DiscoveredTs: time.Unix(100, 0)}
	fresh := Article{ID: "fresh", Title: "t", Link: "l2", PublishedTs: time.Unix(2, 0), DiscoveredTs: time.Unix(500, 0)}
	for _, a := range []Article{old, fresh} {
		if err := st.QueueArticle(ctx, a); err != nil {
			t.Fatalf("QueueArticle: %v", err)
		}
	}

	n, err := st.PruneArticles(ctx, time.Unix(200, 0))
	if err != nil {
		t.Fatalf("PruneArticles: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}
	got, err := st.ArticlesBetween(ctx, time.Unix(0, 0), time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("ArticlesBetween: %v", err)
	}
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Fatalf("remaining = %+v", got)
	}
}
