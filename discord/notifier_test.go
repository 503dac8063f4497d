package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/phturb/campaign-codex-backend-go/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(channelID, content)
	msg, _ := args.Get(0).(*discordgo.Message)
	return msg, args.Error(1)
}

func TestNewDiscordNotifier(t *testing.T) {
	_, err := NewDiscordNotifier("", "channel")
	assert.Error(t, err)
	_, err = NewDiscordNotifier("token", "")
	assert.Error(t, err)

	n, err := NewDiscordNotifier("token", "channel")
	require.NoError(t, err)
	assert.Equal(t, "channel", n.channelID)
}

func TestSessionLogged(t *testing.T) {
	s := &model.Session{Title: "The Sea Ghost", Date: "2024-03-02"}
	s.ID = 7

	t.Run("Posts to the configured channel", func(t *testing.T) {
		ms := &MockSender{}
		ms.On("ChannelMessageSend", "channel", "Session logged: The Sea Ghost (2024-03-02)").
			Return(&discordgo.Message{ID: "1"}, nil).Once()
		d := &discordNotifier{s: ms, channelID: "channel"}

		require.NoError(t, d.SessionLogged(context.Background(), s))
		ms.AssertExpectations(t)
	})

	t.Run("Send failures are returned", func(t *testing.T) {
		ms := &MockSender{}
		ms.On("ChannelMessageSend", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))
		d := &discordNotifier{s: ms, channelID: "channel"}

		assert.EqualError(t, d.SessionLogged(context.Background(), s), "rate limited")
	})

	t.Run("Nil session", func(t *testing.T) {
		d := &discordNotifier{s: &MockSender{}, channelID: "channel"}
		assert.Error(t, d.SessionLogged(context.Background(), nil))
	})
}
