// Package discord implements transport.Adapter on top of discordgo.
package discord

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"briefbot/internal/transport"
	"briefbot/pkg/logx"
)

type Config struct {
	Token string
}

type Adapter struct {
	cfg Config
	log logx.Logger

	session *discordgo.Session

	runMu   sync.Mutex
	running bool
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	// The bot only sends; guild metadata is enough.
	s.Identify.Intents = discordgo.IntentsGuilds
	return &Adapter{cfg: cfg, log: log, session: s}, nil
}

func (a *Adapter) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	if err := a.session.Open(); err != nil {
		return err
	}
	a.running = true
	a.log.Info("discord gateway connected")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	return a.session.Close()
}

func (a *Adapter) ResolveChannel(ctx context.Context, channelID string) (transport.Channel, error) {
	ch, err := a.session.State.Channel(channelID)
	if err != nil {
		ch, err = a.session.Channel(channelID, discordgo.WithContext(ctx))
	}
	if err != nil {
		if isUnknownChannel(err) {
			return transport.Channel{}, transport.ErrChannelNotFound
		}
		return transport.Channel{}, err
	}
	return transport.Channel{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name}, nil
}

// isUnknownChannel reports whether err is Discord's unknown-channel
// REST error. Transient failures (rate limits, network) stay as-is so
// callers do not treat a live subscription as stale.
func isUnknownChannel(err error) bool {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil {
		return rest.Message.Code == discordgo.ErrCodeUnknownChannel
	}
	return false
}

func (a *Adapter) CanManageWebhooks(ctx context.Context, channelID string) bool {
	if a.session.State == nil || a.session.State.User == nil {
		return false
	}
	perms, err := a.session.UserChannelPermissions(a.session.State.User.ID, channelID)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionManageWebhooks != 0
}

func (a *Adapter) Send(ctx context.Context, channelID string, m transport.Message, silent bool) error {
	send := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed(m)}}
	if silent {
		send.Flags = discordgo.MessageFlagsSuppressNotifications
	}
	_, err := a.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	return err
}

func (a *Adapter) CreateSender(ctx context.Context, channelID, name, avatarURL string) (transport.Sender, error) {
	wh, err := a.session.WebhookCreate(channelID, name, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return &webhookSender{session: a.session, id: wh.ID, token: wh.Token, avatarURL: avatarURL}, nil
}

// webhookSender sends under a temporary webhook identity and deletes it
// on Destroy.
type webhookSender struct {
	session   *discordgo.Session
	id        string
	token     string
	avatarURL string
}

func (w *webhookSender) Send(ctx context.Context, m transport.Message, silent bool) error {
	params := &discordgo.WebhookParams{
		Embeds:    []*discordgo.MessageEmbed{embed(m)},
		AvatarURL: w.avatarURL,
	}
	if silent {
		params.Flags = discordgo.MessageFlagsSuppressNotifications
	}
	_, err := w.session.WebhookExecute(w.id, w.token, false, params, discordgo.WithContext(ctx))
	return err
}

func (w *webhookSender) Destroy(ctx context.Context) error {
	return w.session.WebhookDelete(w.id, discordgo.WithContext(ctx))
}

func embed(m transport.Message) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Type:  discordgo.EmbedTypeArticle,
		Title: m.Title,
		URL:   m.URL,
		Color: m.Color,
	}
	if m.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: m.Footer}
	}
	if m.ImageURL != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: m.ImageURL}
	}
	return e
}
