package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Feed     FeedConfig     `json:"feed"`
	Delivery DeliveryConfig `json:"delivery"`
	Discord  DiscordConfig  `json:"discord"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
}

// FeedConfig describes the polled feed and the branding applied to
// outgoing messages. All durations are Go duration strings.
type FeedConfig struct {
	URL string `json:"url"`

	// FetchInterval is the fetch/realtime cadence period. Default "1m".
	FetchInterval string `json:"fetch_interval,omitempty"`

	// AvatarURL is the sender avatar used for webhook deliveries.
	AvatarURL string `json:"avatar_url,omitempty"`

	// Footer is the branding marker on every embed.
	Footer string `json:"footer,omitempty"`

	// WebhookName is the ephemeral sender identity's display name.
	WebhookName string `json:"webhook_name,omitempty"`

	// Retention bounds the article queue's age. "0s" disables pruning.
	// Default "720h" (30 days).
	Retention string `json:"retention,omitempty"`
}

type DeliveryConfig struct {
	// DailyHour is the local hour (0-23) of the daily batch.
	// Omitted means 17.
	DailyHour *int `json:"daily_hour,omitempty"`

	// RatePerSec caps outbound message sends. Default 5.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type DiscordConfig struct {
	Token string `json:"token"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

const (
	DefaultFetchInterval = time.Minute
	DefaultRetention     = 30 * 24 * time.Hour
	DefaultDailyHour     = 17
	DefaultRatePerSec    = 5
)

// FetchIntervalOrDefault parses feed.fetch_interval.
func (c *Config) FetchIntervalOrDefault() (time.Duration, error) {
	return ParseDurationOrDefault("feed.fetch_interval", c.Feed.FetchInterval, DefaultFetchInterval)
}

// RetentionOrDefault parses feed.retention. Zero disables pruning, and
// an explicit "0s" is honored as such.
func (c *Config) RetentionOrDefault() (time.Duration, error) {
	raw := strings.TrimSpace(c.Feed.Retention)
	if raw == "" {
		return DefaultRetention, nil
	}
	return ParseDurationField("feed.retention", raw)
}

func (c *Config) DailyHourOrDefault() int {
	if c.Delivery.DailyHour == nil {
		return DefaultDailyHour
	}
	return *c.Delivery.DailyHour
}

func (c *Config) RatePerSecOrDefault() int {
	if c.Delivery.RatePerSec <= 0 {
		return DefaultRatePerSec
	}
	return c.Delivery.RatePerSec
}

// Validate rejects configs the app cannot start (or keep running) with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Feed.URL) == "" {
		return errors.New("feed.url is required")
	}
	if strings.TrimSpace(c.Discord.Token) == "" {
		return errors.New("discord.token is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if h := c.Delivery.DailyHour; h != nil && (*h < 0 || *h > 23) {
		return fmt.Errorf("delivery.daily_hour: %d is not an hour (0-23)", *h)
	}
	if _, err := c.FetchIntervalOrDefault(); err != nil {
		return err
	}
	if _, err := c.RetentionOrDefault(); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	return nil
}
