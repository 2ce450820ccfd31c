package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"briefbot/internal/commands"
	"briefbot/internal/storage"
	"briefbot/pkg/logx"
)

const commandName = "brief"

// BindCommands registers the /brief command group and routes its
// interactions to the command service. Call before Start.
func (a *Adapter) BindCommands(svc *commands.Service) {
	a.session.AddHandler(func(s *discordgo.Session, _ *discordgo.Ready) {
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, "", commandDefinition()); err != nil {
			a.log.Error("slash command registration failed", logx.Err(err))
		}
	})
	a.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		a.handleInteraction(s, i, svc)
	})
}

func commandDefinition() *discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageServer)
	dm := false
	return &discordgo.ApplicationCommand{
		Name:                     commandName,
		Description:              "News brief subscriptions",
		DefaultMemberPermissions: &manageGuild,
		DMPermission:             &dm,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "subscribe",
				Description: "Subscribe this channel to the news brief",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "silent",
						Description: "Notification behavior for a batch",
						Required:    true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: commands.SilentLabel(storage.SilentNone), Value: int(storage.SilentNone)},
							{Name: commands.SilentLabel(storage.SilentFirst), Value: int(storage.SilentFirst)},
							{Name: commands.SilentLabel(storage.SilentAll), Value: int(storage.SilentAll)},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "frequency",
						Description: "How often batches are sent",
						Required:    true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: commands.FrequencyLabel(storage.FreqRealtime), Value: int(storage.FreqRealtime)},
							{Name: commands.FrequencyLabel(storage.FreqHourly), Value: int(storage.FreqHourly)},
							{Name: commands.FrequencyLabel(storage.FreqDaily), Value: int(storage.FreqDaily)},
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "unsubscribe",
				Description: "Unsubscribe this channel from the news brief",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List this server's subscriptions",
			},
		},
	}
}

func (a *Adapter) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate, svc *commands.Service) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != commandName || len(data.Options) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub := data.Options[0]
	var (
		reply string
		emb   *discordgo.MessageEmbed
		err   error
	)
	switch sub.Name {
	case "subscribe":
		var silent, freq int64
		for _, opt := range sub.Options {
			switch opt.Name {
			case "silent":
				silent = opt.IntValue()
			case "frequency":
				freq = opt.IntValue()
			}
		}
		reply, err = svc.Subscribe(ctx, i.GuildID, i.ChannelID,
			storage.SilentMode(silent), storage.Frequency(freq))
	case "unsubscribe":
		reply, err = svc.Unsubscribe(ctx, i.GuildID, i.ChannelID)
	case "list":
		var subs []storage.Subscription
		subs, err = svc.List(ctx, i.GuildID)
		if err == nil {
			if len(subs) == 0 {
				reply = commands.ReplyListEmpty
			} else {
				emb = listEmbed(subs)
			}
		}
	default:
		return
	}

	if err != nil {
		a.log.Error("command failed",
			logx.String("command", sub.Name),
			logx.String("guild", i.GuildID),
			logx.Err(err))
		reply = "Something went wrong, try again later."
	}

	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: reply},
	}
	if emb != nil {
		resp.Data = &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{emb}}
	}
	if err := s.InteractionRespond(i.Interaction, resp); err != nil {
		a.log.Warn("interaction respond failed", logx.Err(err))
	}
}

func listEmbed(subs []storage.Subscription) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title: commands.ReplyListTitle,
		Color: 0x00FF00,
	}
	for _, sub := range subs {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("<#%s>", sub.ChannelID),
			Value:  commands.SilentLabel(sub.Silent) + " - " + commands.FrequencyLabel(sub.Frequency),
			Inline: true,
		})
	}
	return e
}
