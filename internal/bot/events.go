package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattermost/gulag-bot/internal/gulag"
	"github.com/mattermost/gulag-bot/internal/restrict"
	"github.com/mattermost/mattermost-server/v6/model"
)

const maxBackoff = 30 * time.Second

func (app *Application) listenToEvents(ctx context.Context) {
	scheme := "ws"
	if app.config.MattermostServer.Scheme == "https" {
		scheme = "wss"
	}

	failCount := 0
	for ctx.Err() == nil {
		ws, err := model.NewWebSocketClient4(
			fmt.Sprintf("%s://%s", scheme, app.config.MattermostServer.Host+app.config.MattermostServer.Path),
			app.mattermostClient.AuthToken,
		)
		if err != nil {
			failCount++
			backoff := time.Duration(failCount) * time.Second
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			app.logger.Warn().Err(err).Dur("backoff", backoff).Msg("Mattermost websocket disconnected, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		failCount = 0
		app.logger.Info().Msg("Mattermost websocket connected")

		app.wsMu.Lock()
		app.mattermostWebSocketClient = ws
		app.wsMu.Unlock()

		ws.Listen()
		app.consume(ctx, ws.EventChannel)
	}
}

func (app *Application) consume(ctx context.Context, events <-chan *model.WebSocketEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			// Posts from different channels are independent.
			go app.handleWebSocketEvent(event)
		}
	}
}

func (app *Application) handleWebSocketEvent(event *model.WebSocketEvent) {
	app.handleEvent(event.EventType(), event.GetData())
}

func (app *Application) handleEvent(eventType string, data map[string]interface{}) {
	if eventType != model.WebsocketEventPosted {
		return
	}

	raw, _ := data["post"].(string)
	post := &model.Post{}
	if err := json.Unmarshal([]byte(raw), post); err != nil {
		app.logger.Error().Err(err).Msg("Could not cast event to *model.Post")
		return
	}

	if app.mattermostUser != nil && post.UserId == app.mattermostUser.Id {
		return
	}

	channelType, _ := data["channel_type"].(string)
	app.handlePost(post, model.ChannelType(channelType))
}

func (app *Application) handlePost(post *model.Post, channelType model.ChannelType) {
	app.logger.Debug().Str("message", post.Message).Str("channel", post.ChannelId).Msg("")

	if app.enforceRestriction(post) {
		return
	}

	switch {
	case app.helpRegex.MatchString(post.Message):
		app.sendResponse(post.ChannelId, app.handler.Help(app.config.Trigger), post)
	case app.triggerRegex.MatchString(post.Message):
		cmd := &postCommand{app: app, post: post, channelType: channelType}
		err := app.handler.StartVote(cmd)
		switch {
		case err == nil, errors.Is(err, gulag.ErrNotInGroup), errors.Is(err, gulag.ErrNoReplyTarget):
		default:
			app.logger.Error().Err(err).Str("channel", post.ChannelId).Msg("Failed to start vote")
		}
	}
}

// enforceRestriction removes posts by users banned or muted in the channel.
func (app *Application) enforceRestriction(post *model.Post) bool {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.ActionTimeout)
	defer cancel()

	r, err := app.restrictions.Active(ctx, post.ChannelId, post.UserId, app.now())
	if err != nil {
		app.logger.Error().Err(err).Str("user", post.UserId).Msg("Failed to look up restriction")
		return false
	}
	if r == nil {
		return false
	}

	if _, err := app.api.DeletePost(post.Id); err != nil {
		app.logger.Warn().Err(err).Str("post", post.Id).Msg("Failed to delete restricted post")
	}
	if r.Kind == restrict.Ban {
		if _, err := app.api.RemoveUserFromChannel(post.ChannelId, post.UserId); err != nil {
			app.logger.Warn().Err(err).Str("user", post.UserId).Msg("Failed to remove banned user")
		}
	}
	app.logger.Debug().Str("user", post.UserId).Str("kind", string(r.Kind)).Msg("Restricted post removed")
	return true
}

func (app *Application) sendResponse(channelId string, msg string, originalPost *model.Post) {
	post := &model.Post{
		ChannelId: channelId,
		Message:   msg,
		RootId:    threadRoot(originalPost),
	}

	if _, _, err := app.api.CreatePost(post); err != nil {
		app.logger.Error().Err(err).Str("channel", channelId).Msg("Failed to create post")
	}
}

// threadRoot answers inside the thread of post, starting one if needed.
func threadRoot(post *model.Post) string {
	if post.RootId == "" {
		return post.Id
	}
	return post.RootId
}
