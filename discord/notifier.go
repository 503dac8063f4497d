package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/phturb/campaign-codex-backend-go/codex"
	"github.com/phturb/campaign-codex-backend-go/model"
)

// sender is the slice of *discordgo.Session the notifier posts through.
type sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type discordNotifier struct {
	session   *discordgo.Session
	s         sender
	channelID string
}

type DiscordNotifier interface {
	codex.Notifier
	Open() error
	Close() error
}

var _ DiscordNotifier = (*discordNotifier)(nil)

func NewDiscordNotifier(token, channelID string) (*discordNotifier, error) {
	if token == "" || channelID == "" {
		return nil, errors.New("discord notifier needs a token and a channel id")
	}
	ds, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	ds.Identify.Intents = discordgo.IntentsGuildMessages

	d := &discordNotifier{
		session:   ds,
		s:         ds,
		channelID: channelID,
	}
	ds.AddHandler(d.onReady)
	return d, nil
}

func (d *discordNotifier) onReady(s *discordgo.Session, e *discordgo.Ready) {
	slog.Info("discord bot started as '" + e.User.Username + "'")
}

func (d *discordNotifier) Open() error {
	if d.session == nil {
		return nil
	}
	return d.session.Open()
}

func (d *discordNotifier) Close() error {
	if d.session == nil {
		return nil
	}
	return d.session.Close()
}

func sessionMessage(s *model.Session) string {
	return fmt.Sprintf("Session logged: %s (%s)", s.Title, s.Date)
}

// SessionLogged posts a one-line announcement of s to the configured channel.
func (d *discordNotifier) SessionLogged(ctx context.Context, s *model.Session) error {
	if s == nil {
		return errors.New("no session to announce")
	}
	_, err := d.s.ChannelMessageSend(d.channelID, sessionMessage(s), discordgo.WithContext(ctx))
	if err != nil {
		slog.Error(fmt.Sprintf("[SessionLogged] - unable to post to channel %s : %s", d.channelID, err.Error()))
		return err
	}
	slog.Info(fmt.Sprintf("[SessionLogged] - announced session %d", s.ID))
	return nil
}
