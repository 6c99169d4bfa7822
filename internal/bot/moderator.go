package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/mattermost/gulag-bot/internal/restrict"
	"github.com/rs/zerolog"
)

// Moderator carries out punishments on Mattermost. Mattermost has no
// channel bans or timed mutes, so both are recorded as restrictions and
// enforced by deleting the user's posts.
type Moderator struct {
	api    mattermostAPI
	store  restrict.Store
	logger zerolog.Logger
}

func (m *Moderator) Ban(chatID, userID string) error {
	if err := m.store.Save(context.Background(), restrict.Restriction{
		ChannelID: chatID,
		UserID:    userID,
		Kind:      restrict.Ban,
	}); err != nil {
		return err
	}
	return m.Kick(chatID, userID)
}

func (m *Moderator) Kick(chatID, userID string) error {
	if _, err := m.api.RemoveUserFromChannel(chatID, userID); err != nil {
		return fmt.Errorf("remove %s from %s: %w", userID, chatID, err)
	}
	return nil
}

func (m *Moderator) RestrictMessaging(chatID, userID string, until time.Time) error {
	m.logger.Debug().Str("user", userID).Time("until", until).Msg("Muting")
	return m.store.Save(context.Background(), restrict.Restriction{
		ChannelID: chatID,
		UserID:    userID,
		Kind:      restrict.Mute,
		ExpiresAt: &until,
	})
}
