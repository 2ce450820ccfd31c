package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"briefbot/pkg/logx"
)

func TestHourTickDailyGate(t *testing.T) {
	t.Parallel()
	var hourly, daily atomic.Int32
	s := New(Config{DailyHour: 17}, Jobs{
		Hourly: func(context.Context, time.Time) { hourly.Add(1) },
		Daily:  func(context.Context, time.Time) { daily.Add(1) },
	}, logx.Nop())

	at16 := time.Date(2024, 3, 1, 16, 0, 0, 0, time.Local)
	s.hourTick(context.Background(), at16)
	if hourly.Load() != 1 || daily.Load() != 0 {
		t.Fatalf("at 16h: hourly=%d daily=%d, want 1/0", hourly.Load(), daily.Load())
	}

	at17 := time.Date(2024, 3, 1, 17, 0, 0, 0, time.Local)
	s.hourTick(context.Background(), at17)
	if hourly.Load() != 2 || daily.Load() != 1 {
		t.Fatalf("at 17h: hourly=%d daily=%d, want 2/1", hourly.Load(), daily.Load())
	}
}

func TestHourTickOrder(t *testing.T) {
	t.Parallel()
	var order []string
	s := New(Config{DailyHour: 8}, Jobs{
		Hourly: func(context.Context, time.Time) { order = append(order, "hourly") },
		Daily:  func(context.Context, time.Time) { order = append(order, "daily") },
	}, logx.Nop())

	s.hourTick(context.Background(), time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local))
	if len(order) != 2 || order[0] != "hourly" || order[1] != "daily" {
		t.Fatalf("order = %v, want hourly before daily", order)
	}
}

func TestStartRunsFetchImmediately(t *testing.T) {
	t.Parallel()
	fetched := make(chan time.Time, 1)
	s := New(Config{FetchInterval: time.Hour}, Jobs{
		Fetch: func(_ context.Context, now time.Time) {
			select {
			case fetched <- now:
			default:
			}
		},
	}, logx.Nop())

	s.Start(context.Background())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	select {
	case <-fetched:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch tick did not run at start")
	}
}

func TestStopPreventsFurtherTicks(t *testing.T) {
	t.Parallel()
	var count atomic.Int32
	s := New(Config{FetchInterval: 20 * time.Millisecond}, Jobs{
		Fetch: func(context.Context, time.Time) { count.Add(1) },
	}, logx.Nop())

	s.Start(context.Background())
	time.Sleep(60 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)

	after := count.Load()
	if after == 0 {
		t.Fatal("fetch tick never ran")
	}
	time.Sleep(80 * time.Millisecond)
	if got := count.Load(); got != after {
		t.Fatalf("ticks continued after stop: %d -> %d", after, got)
	}
}

func TestWithDefaults(t *testing.T) {
	t.Parallel()
	cfg := withDefaults(Config{})
	if cfg.FetchInterval != time.Minute {
		t.Fatalf("FetchInterval = %v, want 1m", cfg.FetchInterval)
	}
	// Hour 0 is valid (midnight); only out-of-range values fall back.
	if cfg.DailyHour != 0 {
		t.Fatalf("DailyHour = %d, want 0", cfg.DailyHour)
	}
	cfg = withDefaults(Config{FetchInterval: 5 * time.Second, DailyHour: 8})
	if cfg.FetchInterval != 5*time.Second || cfg.DailyHour != 8 {
		t.Fatalf("explicit values overridden: %+v", cfg)
	}
	cfg = withDefaults(Config{DailyHour: 24})
	if cfg.DailyHour != 17 {
		t.Fatalf("invalid hour = %d, want fallback 17", cfg.DailyHour)
	}
}
