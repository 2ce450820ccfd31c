package commands

import (
	"context"
	"path/filepath"
	"testing"

	"briefbot/internal/storage"
	"briefbot/pkg/logx"
)

func newService(t *testing.T) *Service {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st, logx.Nop())
}

func TestSubscribeLifecycle(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	reply, err := svc.Subscribe(ctx, "g1", "c1", storage.SilentFirst, storage.FreqDaily)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if reply != ReplySubscribed {
		t.Fatalf("reply = %q", reply)
	}

	reply, err = svc.Subscribe(ctx, "g1", "c1", storage.SilentNone, storage.FreqHourly)
	if err != nil {
		t.Fatalf("duplicate Subscribe: %v", err)
	}
	if reply != ReplyAlreadySubscribed {
		t.Fatalf("duplicate reply = %q", reply)
	}

	subs, err := svc.List(ctx, "g1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(subs))
	}
	// The duplicate subscribe must not have altered the original row.
	if subs[0].Silent != storage.SilentFirst || subs[0].Frequency != storage.FreqDaily {
		t.Fatalf("subscription mutated: %+v", subs[0])
	}

	reply, err = svc.Unsubscribe(ctx, "g1", "c1")
	if err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if reply != ReplyUnsubscribed {
		t.Fatalf("reply = %q", reply)
	}

	reply, err = svc.Unsubscribe(ctx, "g1", "c1")
	if err != nil {
		t.Fatalf("second Unsubscribe: %v", err)
	}
	if reply != ReplyNotSubscribed {
		t.Fatalf("reply = %q", reply)
	}
}

func TestListScopedToGuild(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.Subscribe(ctx, "g1", "c1", storage.SilentNone, storage.FreqRealtime); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := svc.Subscribe(ctx, "g2", "c2", storage.SilentAll, storage.FreqHourly); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	subs, err := svc.List(ctx, "g1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(subs) != 1 || subs[0].ChannelID != "c1" {
		t.Fatalf("g1 subscriptions = %+v", subs)
	}
}

func TestLabels(t *testing.T) {
	t.Parallel()
	if SilentLabel(storage.SilentFirst) == SilentLabel(storage.SilentAll) {
		t.Fatal("silent labels must be distinct")
	}
	if FrequencyLabel(storage.FreqRealtime) != "Real-time" {
		t.Fatalf("realtime label = %q", FrequencyLabel(storage.FreqRealtime))
	}
	if FrequencyLabel(storage.FreqHourly) != "Hourly" || FrequencyLabel(storage.FreqDaily) != "Daily" {
		t.Fatal("unexpected frequency labels")
	}
}
