// Package db opens the optional postgres database that backs restrictions.
package db

import (
	"fmt"
	stdlog "log"
	"net/url"
	"os"
	"strings"

	"github.com/mattermost/gulag-bot/internal/restrict"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to databaseURL. An empty URL means no database: nil, nil.
func Open(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		return nil, nil
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %s", u.Scheme)
	}

	// Silent: the bot logs through zerolog, gorm only reports errors via return values.
	newLogger := logger.New(
		stdlog.New(os.Stdout, "", stdlog.LstdFlags),
		logger.Config{
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)
	return gorm.Open(postgres.Open(databaseURL), &gorm.Config{Logger: newLogger})
}

func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(&restrict.Restriction{})
}
