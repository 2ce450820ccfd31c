package app

import (
	"context"
	"time"

	"briefbot/internal/storage"
	"briefbot/pkg/logx"
)

// fetchTick is the fetch-cadence work unit: poll the feed, queue new
// articles, deliver the realtime batch, then advance last_fetch.
//
// A feed failure aborts the tick without advancing the watermark, so
// the same window is retried next tick. Once the feed parsed, the
// watermark advances no matter what, trading guaranteed delivery for a
// bounded replay window.
func (a *App) fetchTick(ctx context.Context, now time.Time) {
	last, err := a.store.Watermark(ctx, storage.KeyLastFetch)
	if err != nil {
		a.log.Error("read fetch watermark", logx.Err(err))
		return
	}

	articles, err := a.fetcher.Fetch(ctx, last, now)
	if err != nil {
		a.log.Warn("feed fetch failed, retrying next tick", logx.Err(err))
		return
	}
	queued := 0
	for _, art := range articles {
		if err := a.store.QueueArticle(ctx, art); err != nil {
			a.log.Warn("queue article failed",
				logx.String("id", art.ID), logx.String("link", art.Link), logx.Err(err))
			continue
		}
		queued++
	}
	if queued > 0 {
		a.log.Info("articles queued", logx.Int("count", queued))
	}

	// Realtime reuses the fetch watermark as its own window bound.
	a.deliverWindow(ctx, last, now, storage.FreqRealtime)

	if err := a.store.SetWatermark(ctx, storage.KeyLastFetch, now); err != nil {
		a.log.Error("advance fetch watermark", logx.Err(err))
	}

	a.pruneQueue(ctx, now)
}

// sendTick is the hourly/daily work unit: extract the window since the
// cadence's watermark, deliver, then advance the watermark. The advance
// is unconditional, exactly once per tick.
func (a *App) sendTick(ctx context.Context, now time.Time, key string, freq storage.Frequency) {
	last, err := a.store.Watermark(ctx, key)
	if err != nil {
		a.log.Error("read watermark", logx.String("key", key), logx.Err(err))
		return
	}

	a.deliverWindow(ctx, last, now, freq)

	if err := a.store.SetWatermark(ctx, key, now); err != nil {
		a.log.Error("advance watermark", logx.String("key", key), logx.Err(err))
	}
}

// deliverWindow extracts articles discovered in (start, end] and fans
// them out. Extraction and delivery failures are logged, never
// propagated: the cadence's watermark discipline is the caller's.
func (a *App) deliverWindow(ctx context.Context, start, end time.Time, freq storage.Frequency) {
	batch, err := a.store.ArticlesBetween(ctx, start, end)
	if err != nil {
		a.log.Error("extract batch failed",
			logx.String("freq", freq.String()), logx.Err(err))
		return
	}
	if len(batch) == 0 {
		a.log.Debug("empty batch", logx.String("freq", freq.String()))
		return
	}
	if _, err := a.engine.Deliver(ctx, batch, freq); err != nil {
		a.log.Error("delivery failed",
			logx.String("freq", freq.String()), logx.Err(err))
	}
}

func (a *App) pruneQueue(ctx context.Context, now time.Time) {
	a.mu.Lock()
	retention := a.retention
	a.mu.Unlock()
	if retention <= 0 {
		return
	}
	n, err := a.store.PruneArticles(ctx, now.Add(-retention))
	if err != nil {
		a.log.Warn("article prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		a.log.Debug("articles pruned", logx.Int64("count", n))
	}
}

// initWatermarks sets all three watermarks to now on first run so a
// fresh install does not replay the feed's whole backlog.
func (a *App) initWatermarks(ctx context.Context, now time.Time) error {
	last, err := a.store.Watermark(ctx, storage.KeyLastFetch)
	if err != nil {
		return err
	}
	if !last.IsZero() {
		return nil
	}
	a.log.Info("first run, initializing watermarks", logx.Time("now", now))
	for _, key := range []string{storage.KeyLastFetch, storage.KeyLastSendHourly, storage.KeyLastSendDaily} {
		if err := a.store.SetWatermark(ctx, key, now); err != nil {
			return err
		}
	}
	return nil
}
