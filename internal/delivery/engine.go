// Package delivery fans rendered articles out to subscriptions of a
// cadence, honoring each subscription's silence mode and falling back
// from webhook to direct channel sends.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"briefbot/internal/storage"
	"briefbot/internal/transport"
	"briefbot/pkg/logx"
)

type Config struct {
	WebhookName string
	AvatarURL   string
	Footer      string
	RatePerSec  int
}

// Subscriptions is the slice of the store the engine reads.
type Subscriptions interface {
	SubscriptionsByFrequency(ctx context.Context, f storage.Frequency) ([]storage.Subscription, error)
}

type Engine struct {
	adapter transport.Adapter
	subs    Subscriptions
	log     logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

// Outcome is the per-subscription result of one delivery pass.
type Outcome struct {
	Sub     storage.Subscription
	Sent    int
	Skipped bool // destination no longer resolves
	Err     error
}

func New(cfg Config, adapter transport.Adapter, subs Subscriptions, log logx.Logger) *Engine {
	e := &Engine{adapter: adapter, subs: subs, log: log}
	e.Apply(cfg)
	return e
}

func (e *Engine) Apply(cfg Config) {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	e.mu.Lock()
	e.cfg = cfg
	e.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	e.mu.Unlock()
}

func (e *Engine) snapshot() (Config, *rate.Limiter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg, e.limiter
}

// Deliver sends every article to every subscription of the given
// cadence. One subscription's failure never aborts the others; the
// returned outcomes carry the per-subscription errors.
func (e *Engine) Deliver(ctx context.Context, articles []storage.Article, freq storage.Frequency) ([]Outcome, error) {
	if len(articles) == 0 {
		return nil, nil
	}
	subs, err := e.subs.SubscriptionsByFrequency(ctx, freq)
	if err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil, nil
	}

	cfg, _ := e.snapshot()
	msgs := make([]transport.Message, 0, len(articles))
	for _, a := range articles {
		msgs = append(msgs, Render(a, cfg.Footer))
	}

	start := time.Now()
	e.log.Info("delivery pass started",
		logx.String("freq", freq.String()),
		logx.Int("articles", len(articles)),
		logx.Int("subscriptions", len(subs)))

	outcomes := make([]Outcome, 0, len(subs))
	failed := 0
	for _, sub := range subs {
		o := e.deliverOne(ctx, sub, msgs)
		if o.Err != nil {
			failed++
			e.log.Warn("delivery to subscription failed",
				logx.String("guild", sub.GuildID),
				logx.String("channel", sub.ChannelID),
				logx.Err(o.Err))
		}
		outcomes = append(outcomes, o)
	}

	fields := []logx.Field{
		logx.String("freq", freq.String()),
		logx.Int("failed", failed),
		logx.Duration("dur", time.Since(start)),
	}
	if failed > 0 {
		e.log.Warn("delivery pass finished with failures", fields...)
	} else {
		e.log.Info("delivery pass finished", fields...)
	}
	return outcomes, nil
}

// deliverOne is the failure boundary around a single subscription.
func (e *Engine) deliverOne(ctx context.Context, sub storage.Subscription, msgs []transport.Message) (out Outcome) {
	out = Outcome{Sub: sub}
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic: %v", r)
			e.log.Error("panic delivering to subscription",
				logx.String("channel", sub.ChannelID),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	if _, err := e.adapter.ResolveChannel(ctx, sub.ChannelID); err != nil {
		if errors.Is(err, transport.ErrChannelNotFound) {
			// Stale subscription; skip, do not fail the batch.
			e.log.Debug("channel gone, skipping subscription",
				logx.String("guild", sub.GuildID),
				logx.String("channel", sub.ChannelID))
			out.Skipped = true
			return out
		}
		out.Err = err
		return out
	}

	cfg, _ := e.snapshot()

	send := func(ctx context.Context, m transport.Message, silent bool) error {
		return e.adapter.Send(ctx, sub.ChannelID, m, silent)
	}
	if e.adapter.CanManageWebhooks(ctx, sub.ChannelID) {
		sender, err := e.adapter.CreateSender(ctx, sub.ChannelID, cfg.WebhookName, cfg.AvatarURL)
		if err != nil {
			// Fall back to direct sends rather than dropping the batch.
			e.log.Warn("webhook create failed, sending directly",
				logx.String("channel", sub.ChannelID), logx.Err(err))
		} else {
			// Teardown must happen on every exit path, send failures and
			// panics included.
			defer func() {
				dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if derr := sender.Destroy(dctx); derr != nil {
					e.log.Warn("webhook delete failed",
						logx.String("channel", sub.ChannelID), logx.Err(derr))
				}
			}()
			send = sender.Send
		}
	}

	out.Sent, out.Err = e.sendAll(ctx, sub.Silent, msgs, send)
	return out
}

// sendAll runs the per-batch silence state machine over the messages
// and reports how many actually went out. The state resets with each
// batch: ALL silences everything, NONE nothing, FIRST notifies on the
// first message then flips to silent.
func (e *Engine) sendAll(ctx context.Context, mode storage.SilentMode, msgs []transport.Message, send func(context.Context, transport.Message, bool) error) (int, error) {
	_, lim := e.snapshot()
	silent := mode == storage.SilentAll
	sent := 0
	for i, m := range msgs {
		if err := lim.Wait(ctx); err != nil {
			return sent, err
		}
		if err := send(ctx, m, silent); err != nil {
			return sent, fmt.Errorf("send message %d/%d: %w", i+1, len(msgs), err)
		}
		sent++
		if mode == storage.SilentFirst {
			silent = true
		}
	}
	return sent, nil
}
