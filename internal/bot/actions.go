package bot

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mattermost/gulag-bot/internal/gulag"
	"github.com/mattermost/gulag-bot/internal/vote"
	"github.com/mattermost/mattermost-server/v6/model"
)

const (
	contextVoteID = "vote_id"
	contextSide   = "side"
	contextSecret = "secret"
)

// attachments renders vote buttons as an interactive message attachment.
// Each button posts its vote ID, side and the action secret back to the
// action endpoint.
func (app *Application) attachments(buttons []gulag.Button) []*model.SlackAttachment {
	actions := make([]*model.PostAction, 0, len(buttons))
	for _, b := range buttons {
		style := "primary"
		if b.Side == vote.Punish {
			style = "danger"
		}
		actions = append(actions, &model.PostAction{
			Id:    string(b.Side),
			Type:  model.PostActionTypeButton,
			Name:  b.Label,
			Style: style,
			Integration: &model.PostActionIntegration{
				URL: app.config.ActionURL,
				Context: map[string]interface{}{
					contextVoteID: string(b.VoteID),
					contextSide:   string(b.Side),
					contextSecret: app.config.ActionSecret,
				},
			},
		})
	}
	return []*model.SlackAttachment{{Actions: actions}}
}

// Router serves the interactive message callbacks.
func (app *Application) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), app.requestLogger())
	r.POST("/actions/vote", app.handleVoteAction)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "open_votes": app.handler.Tracker().Len()})
	})
	return r
}

func (app *Application) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		app.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("Request")
	}
}

func (app *Application) handleVoteAction(c *gin.Context) {
	var req model.PostActionIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	secret := stringValue(req.Context[contextSecret])
	if app.config.ActionSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(app.config.ActionSecret)) != 1 {
		app.logger.Warn().Str("user", req.UserId).Str("channel", req.ChannelId).Msg("Rejected vote action with bad secret")
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	id, _ := req.Context[contextVoteID].(string)
	side := vote.Side(stringValue(req.Context[contextSide]))
	if id == "" || !side.Valid() || req.UserId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vote context"})
		return
	}

	// A button only counts in the channel its vote was started in.
	if target, ok := app.handler.Tracker().Target(vote.ID(id)); ok && target.ChatID != req.ChannelId {
		app.logger.Warn().Str("vote", id).Str("channel", req.ChannelId).Msg("Rejected vote action from another channel")
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	cb := &actionCallback{app: app, req: &req}
	app.handler.Ballot(cb, vote.ID(id), side)
	c.JSON(http.StatusOK, cb.response)
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

// actionCallback is a gulag.Callback answered through the integration
// response: edits become Update, notices become ephemeral text.
type actionCallback struct {
	app      *Application
	req      *model.PostActionIntegrationRequest
	response model.PostActionIntegrationResponse
}

func (cb *actionCallback) Voter() gulag.UserRef {
	return gulag.UserRef{ID: cb.req.UserId, Name: cb.req.UserName}
}

func (cb *actionCallback) EditMessage(text string, buttons []gulag.Button) {
	post := &model.Post{
		Id:        cb.req.PostId,
		ChannelId: cb.req.ChannelId,
		Message:   text,
	}
	attachments := []*model.SlackAttachment{}
	if len(buttons) > 0 {
		attachments = cb.app.attachments(buttons)
	}
	post.AddProp("attachments", attachments)
	cb.response.Update = post
}

func (cb *actionCallback) NotifyVoter(text string) {
	cb.response.EphemeralText = text
}
