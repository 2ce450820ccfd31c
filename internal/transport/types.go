// Package transport defines the delivery capability the core depends on.
// The Discord implementation lives in transport/discord; tests use fakes.
package transport

import (
	"context"
	"errors"
)

// ErrChannelNotFound reports that a destination channel no longer resolves.
// The delivery engine skips such subscriptions instead of failing the batch.
var ErrChannelNotFound = errors.New("channel not found")

// Message is one rendered article, shaped as a rich embed.
type Message struct {
	Title    string
	URL      string
	Color    int
	ImageURL string // thumbnail; empty means none
	Footer   string
}

// Channel is a resolved destination.
type Channel struct {
	ID      string
	GuildID string
	Name    string
}

// Sender is an ephemeral sender identity (a temporary webhook on Discord).
// Destroy must be called on every exit path once Create succeeded.
type Sender interface {
	Send(ctx context.Context, m Message, silent bool) error
	Destroy(ctx context.Context) error
}

// Adapter is the outbound delivery surface.
//
// Send delivers under the bot's own identity. CreateSender acquires an
// ephemeral identity with a custom name/avatar for a batch; callers that
// get one must Destroy it afterward.
type Adapter interface {
	ResolveChannel(ctx context.Context, channelID string) (Channel, error)
	CanManageWebhooks(ctx context.Context, channelID string) bool

	Send(ctx context.Context, channelID string, m Message, silent bool) error
	CreateSender(ctx context.Context, channelID, name, avatarURL string) (Sender, error)
}
