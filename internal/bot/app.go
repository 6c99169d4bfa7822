// Package bot connects the gulag vote handler to a Mattermost server.
package bot

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/mattermost/gulag-bot/internal/config"
	"github.com/mattermost/gulag-bot/internal/gulag"
	"github.com/mattermost/gulag-bot/internal/restrict"
	"github.com/mattermost/mattermost-server/v6/model"
	"github.com/rs/zerolog"
)

// mattermostAPI is the part of *model.Client4 the bot calls.
type mattermostAPI interface {
	CreatePost(post *model.Post) (*model.Post, *model.Response, error)
	GetPost(postId string, etag string) (*model.Post, *model.Response, error)
	DeletePost(postId string) (*model.Response, error)
	GetUser(userId, etag string) (*model.User, *model.Response, error)
	GetChannel(channelId, etag string) (*model.Channel, *model.Response, error)
	RemoveUserFromChannel(channelId, userId string) (*model.Response, error)
}

// Application holds the dependencies of the running bot.
type Application struct {
	config                    config.Config
	logger                    zerolog.Logger
	api                       mattermostAPI
	mattermostClient          *model.Client4
	mattermostWebSocketClient *model.WebSocketClient
	mattermostUser            *model.User
	mattermostTeam            *model.Team

	handler      *gulag.Handler
	restrictions restrict.Store
	server       *http.Server

	triggerRegex *regexp.Regexp
	helpRegex    *regexp.Regexp

	wsMu sync.Mutex
	now  func() time.Time
}

func newApplication(cfg config.Config, logger zerolog.Logger, api mattermostAPI, store restrict.Store) *Application {
	trigger := regexp.QuoteMeta(cfg.Trigger)
	return &Application{
		config:       cfg,
		logger:       logger,
		api:          api,
		restrictions: store,
		triggerRegex: regexp.MustCompile(`^` + trigger + `(\s|$)`),
		helpRegex:    regexp.MustCompile(`^` + trigger + `\s+help\b`),
		now:          time.Now,
	}
}

// New logs in to Mattermost and returns a bot that is ready to Run.
func New(cfg config.Config, logger zerolog.Logger, store restrict.Store) (*Application, error) {
	client := model.NewAPIv4Client(cfg.MattermostServer.String())
	client.SetToken(cfg.MattermostToken)
	client.HTTPClient.Timeout = cfg.ActionTimeout

	app := newApplication(cfg, logger, client, store)
	app.mattermostClient = client

	user, resp, err := client.GetUser("me", "")
	if err != nil {
		return nil, err
	}
	app.logger.Debug().Interface("user", user).Interface("resp", resp).Msg("")
	app.logger.Info().Str("user", user.Username).Msg("Logged in to mattermost")
	app.mattermostUser = user

	if cfg.MattermostTeamName != "" {
		team, resp, err := client.GetTeamByName(cfg.MattermostTeamName, "")
		if err != nil {
			return nil, err
		}
		app.logger.Debug().Interface("team", team).Interface("resp", resp).Msg("")
		app.mattermostTeam = team
	}
	return app, nil
}

// Moderator returns the punishment backend that acts through this bot.
func (app *Application) Moderator() *Moderator {
	return &Moderator{
		api:    app.api,
		store:  app.restrictions,
		logger: app.logger,
	}
}

func (app *Application) SetHandler(h *gulag.Handler) {
	app.handler = h
}

// Run serves button callbacks and listens to the websocket until ctx ends.
func (app *Application) Run(ctx context.Context) error {
	if app.handler == nil {
		return errors.New("bot: no vote handler set")
	}

	app.server = &http.Server{
		Addr:              app.config.Listen,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		app.logger.Info().Str("addr", app.config.Listen).Msg("Action endpoint listening")
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	go app.purgeRestrictions(ctx, 10*time.Minute)
	go app.listenToEvents(ctx)

	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			return err
		}
	}
	return nil
}

// Shutdown stops the HTTP server and websocket and waits for punishments
// that are still running.
func (app *Application) Shutdown(ctx context.Context) error {
	var err error
	if app.server != nil {
		app.logger.Info().Msg("Stopping action endpoint")
		err = app.server.Shutdown(ctx)
	}

	app.wsMu.Lock()
	if app.mattermostWebSocketClient != nil {
		app.logger.Info().Msg("Closing websocket connection")
		app.mattermostWebSocketClient.Close()
	}
	app.wsMu.Unlock()

	if app.handler != nil {
		app.handler.Wait()
	}
	app.logger.Info().Msg("Shutdown")
	return err
}

func (app *Application) purgeRestrictions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.restrictions.Purge(ctx, app.now())
			if err != nil {
				app.logger.Error().Err(err).Msg("Failed to purge restrictions")
				continue
			}
			if n > 0 {
				app.logger.Debug().Int64("purged", n).Msg("Expired restrictions removed")
			}
		}
	}
}
