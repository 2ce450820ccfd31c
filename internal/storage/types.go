package storage

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// SilentMode controls push-notification suppression across one batch.
type SilentMode int

const (
	// SilentNone sends every message with a notification.
	SilentNone SilentMode = iota
	// SilentFirst notifies on the first message of a batch only.
	SilentFirst
	// SilentAll suppresses notifications on every message.
	SilentAll
)

func (m SilentMode) String() string {
	switch m {
	case SilentNone:
		return "none"
	case SilentFirst:
		return "first"
	case SilentAll:
		return "all"
	default:
		return "unknown"
	}
}

// Frequency is the delivery cadence of a subscription.
type Frequency int

const (
	FreqRealtime Frequency = iota
	FreqHourly
	FreqDaily
)

func (f Frequency) String() string {
	switch f {
	case FreqRealtime:
		return "realtime"
	case FreqHourly:
		return "hourly"
	case FreqDaily:
		return "daily"
	default:
		return "unknown"
	}
}

// Subscription is one registered delivery destination.
// Unique per (GuildID, ChannelID). Written by the command surface,
// read-only for the delivery engine.
type Subscription struct {
	GuildID   string
	ChannelID string
	Silent    SilentMode
	Frequency Frequency
}

// Article is one discovered feed item. Immutable once queued.
// ID is the hex sha1 of the link, so re-queuing the same link is a no-op.
type Article struct {
	ID           string
	Title        string
	Link         string
	ImageURL     string // empty when extraction found nothing
	PublishedTs  time.Time
	DiscoveredTs time.Time
}

// Watermark keys, one row per cadence in the system table.
const (
	KeyLastFetch      = "last_fetch"
	KeyLastSendHourly = "last_send_hourly"
	KeyLastSendDaily  = "last_send_daily"
)
