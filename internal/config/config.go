package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattermost/gulag-bot/internal/punish"
)

const (
	DefaultVotes         = 5
	DefaultMuteMinutes   = 60
	DefaultTrigger       = "!gulag"
	DefaultListen        = ":8081"
	DefaultActionURL     = "http://localhost:8081/actions/vote"
	DefaultActionTimeout = 10 * time.Second
)

type Config struct {
	MattermostUserName string
	MattermostTeamName string
	MattermostToken    string
	MattermostServer   *url.URL

	VotesRequired int
	Punishment    punish.Kind
	MuteMinutes   int
	Locale        string
	Trigger       string
	Listen        string
	ActionURL     string
	ActionTimeout time.Duration
	// ActionSecret is echoed back by Mattermost in every button context.
	ActionSecret string

	DatabaseURL string
	Debug       bool
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func getenvInt(key string, def, floor int) (int, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < floor {
		return 0, fmt.Errorf("%s: must be at least %d, got %d", key, floor, n)
	}
	return n, nil
}

// Load reads the environment and validates every setting.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		MattermostTeamName: os.Getenv("MM_TEAM"),
		MattermostUserName: os.Getenv("MM_USERNAME"),
		MattermostToken:    os.Getenv("MM_TOKEN"),
		Locale:             getenv("GULAG_LOCALE", "en"),
		Trigger:            getenv("GULAG_TRIGGER", DefaultTrigger),
		Listen:             getenv("GULAG_LISTEN", DefaultListen),
		ActionURL:          getenv("GULAG_ACTION_URL", DefaultActionURL),
		ActionSecret:       getenv("GULAG_ACTION_SECRET", ""),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Debug:              getenvBool("DEBUG", false),
	}

	server, err := url.Parse(os.Getenv("MM_SERVER"))
	if err != nil {
		errs = append(errs, fmt.Errorf("MM_SERVER: %w", err))
	}
	cfg.MattermostServer = server

	if cfg.VotesRequired, err = getenvInt("GULAG_VOTES", DefaultVotes, 1); err != nil {
		errs = append(errs, err)
	}
	if cfg.MuteMinutes, err = getenvInt("GULAG_MUTE_MINUTES", DefaultMuteMinutes, 1); err != nil {
		errs = append(errs, err)
	}
	if cfg.Punishment, err = punish.ParseKind(getenv("GULAG_PUNISHMENT", string(punish.Ban))); err != nil {
		errs = append(errs, fmt.Errorf("GULAG_PUNISHMENT: %w", err))
	}

	cfg.ActionTimeout = DefaultActionTimeout
	if v := getenv("GULAG_ACTION_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("GULAG_ACTION_TIMEOUT: %w", err))
		case d <= 0:
			errs = append(errs, fmt.Errorf("GULAG_ACTION_TIMEOUT: must be positive, got %s", d))
		default:
			cfg.ActionTimeout = d
		}
	}

	if cfg.ActionSecret == "" {
		cfg.ActionSecret = uuid.NewString()
	}

	if _, err := url.ParseRequestURI(cfg.ActionURL); err != nil {
		errs = append(errs, fmt.Errorf("GULAG_ACTION_URL: %w", err))
	}

	return cfg, errors.Join(errs...)
}

func (c Config) MuteDuration() time.Duration {
	return time.Duration(c.MuteMinutes) * time.Minute
}

// String prints the configuration with the token and action secret masked.
func (c Config) String() string {
	server := ""
	if c.MattermostServer != nil {
		server = c.MattermostServer.String()
	}
	token := ""
	if c.MattermostToken != "" {
		token = "***"
	}
	secret := ""
	if c.ActionSecret != "" {
		secret = "***"
	}
	db := "memory"
	if c.DatabaseURL != "" {
		db = maskDSN(c.DatabaseURL)
	}
	return fmt.Sprintf(
		"server=%s team=%s user=%s token=%s votes=%d punishment=%s mute=%dm locale=%s trigger=%s listen=%s action_url=%s action_secret=%s db=%s",
		server, c.MattermostTeamName, c.MattermostUserName, token,
		c.VotesRequired, c.Punishment, c.MuteMinutes, c.Locale, c.Trigger,
		c.Listen, c.ActionURL, secret, db,
	)
}

func maskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		if u.User != nil {
			u.User = url.User(u.User.Username())
		}
		return u.String()
	}
	parts := strings.Fields(dsn)
	for i, p := range parts {
		if strings.HasPrefix(strings.ToLower(p), "password=") {
			parts[i] = "password=***"
		}
	}
	return strings.Join(parts, " ")
}
