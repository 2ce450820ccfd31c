// Package commands implements the subscribe/unsubscribe/list operations
// exposed to guild managers. It only ever writes subscription rows; the
// core's tables stay core-owned.
package commands

import (
	"context"
	"fmt"

	"briefbot/internal/storage"
	"briefbot/pkg/logx"
)

// Reply texts. Localization is out of scope; plain English constants.
const (
	ReplySubscribed        = "This channel will now receive the news brief."
	ReplyAlreadySubscribed = "This channel is already subscribed."
	ReplyUnsubscribed      = "This channel will no longer receive the news brief."
	ReplyNotSubscribed     = "This channel is not subscribed."
	ReplyListEmpty         = "No subscriptions in this server."
	ReplyListTitle         = "News brief subscriptions"
)

type Service struct {
	store storage.Store
	log   logx.Logger
}

func New(store storage.Store, log logx.Logger) *Service {
	return &Service{store: store, log: log}
}

// Subscribe registers a channel. Subscribing twice is answered, not an
// error.
func (s *Service) Subscribe(ctx context.Context, guildID, channelID string, silent storage.SilentMode, freq storage.Frequency) (string, error) {
	subscribed, err := s.store.IsSubscribed(ctx, guildID, channelID)
	if err != nil {
		return "", fmt.Errorf("check subscription: %w", err)
	}
	if subscribed {
		return ReplyAlreadySubscribed, nil
	}
	err = s.store.AddSubscription(ctx, storage.Subscription{
		GuildID:   guildID,
		ChannelID: channelID,
		Silent:    silent,
		Frequency: freq,
	})
	if err != nil {
		return "", fmt.Errorf("add subscription: %w", err)
	}
	s.log.Info("channel subscribed",
		logx.String("guild", guildID),
		logx.String("channel", channelID),
		logx.String("silent", silent.String()),
		logx.String("freq", freq.String()))
	return ReplySubscribed, nil
}

func (s *Service) Unsubscribe(ctx context.Context, guildID, channelID string) (string, error) {
	subscribed, err := s.store.IsSubscribed(ctx, guildID, channelID)
	if err != nil {
		return "", fmt.Errorf("check subscription: %w", err)
	}
	if !subscribed {
		return ReplyNotSubscribed, nil
	}
	if err := s.store.RemoveSubscription(ctx, guildID, channelID); err != nil {
		return "", fmt.Errorf("remove subscription: %w", err)
	}
	s.log.Info("channel unsubscribed",
		logx.String("guild", guildID),
		logx.String("channel", channelID))
	return ReplyUnsubscribed, nil
}

func (s *Service) List(ctx context.Context, guildID string) ([]storage.Subscription, error) {
	return s.store.GuildSubscriptions(ctx, guildID)
}

// SilentLabel is the user-facing name of a silence mode.
func SilentLabel(m storage.SilentMode) string {
	switch m {
	case storage.SilentFirst:
		return "First message notifies"
	case storage.SilentAll:
		return "All messages silent"
	default:
		return "All messages notify"
	}
}

// FrequencyLabel is the user-facing name of a cadence.
func FrequencyLabel(f storage.Frequency) string {
	switch f {
	case storage.FreqHourly:
		return "Hourly"
	case storage.FreqDaily:
		return "Daily"
	default:
		return "Real-time"
	}
}
