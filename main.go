package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattermost/gulag-bot/internal/bot"
	"github.com/mattermost/gulag-bot/internal/config"
	"github.com/mattermost/gulag-bot/internal/db"
	"github.com/mattermost/gulag-bot/internal/gulag"
	"github.com/mattermost/gulag-bot/internal/i18n"
	"github.com/mattermost/gulag-bot/internal/punish"
	"github.com/mattermost/gulag-bot/internal/restrict"
	"github.com/mattermost/gulag-bot/internal/vote"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(
		zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC822,
		},
	).With().Timestamp().Logger().Level(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	}
	logger.Info().Str("config", cfg.String()).Msg("")

	var store restrict.Store = restrict.NewMemoryStore()
	gormDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect database")
	}
	if gormDB != nil {
		if err := db.AutoMigrate(gormDB); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		store = restrict.NewGormStore(gormDB)
		logger.Info().Msg("Restrictions stored in database")
	}

	app, err := bot.New(cfg, logger, store)
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not log in")
	}

	enforcer := punish.NewEnforcer(app.Moderator(), punish.Options{
		Kind:    cfg.Punishment,
		MuteFor: cfg.MuteDuration(),
		Timeout: cfg.ActionTimeout,
		Logger:  logger,
	})
	app.SetHandler(gulag.NewHandler(
		vote.NewTracker(cfg.VotesRequired),
		enforcer,
		i18n.New(cfg.Locale),
		logger,
	))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Bot stopped")
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown")
	}
}
