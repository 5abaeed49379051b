package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/beekhof/class-sync/internal/auth"
	"github.com/beekhof/class-sync/internal/calendar"
	"github.com/beekhof/class-sync/internal/config"
	"github.com/beekhof/class-sync/internal/store"
	"github.com/beekhof/class-sync/internal/sync"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "classsync",
		Usage: "Keep a class schedule in sync with Google Calendar.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to a JSON or YAML config file"},
			&cli.StringFlag{Name: "account", Usage: "Account the schedule belongs to (overrides CLASSSYNC_ACCOUNT)"},
			&cli.StringFlag{Name: "credentials", Usage: "Google OAuth client secrets file (overrides GOOGLE_CREDENTIALS_PATH)"},
			&cli.StringFlag{Name: "token-dir", Usage: "Directory holding per-account token files"},
			&cli.StringFlag{Name: "database-url", Usage: "Postgres connection string; without it a JSON state file is used"},
			&cli.StringFlag{Name: "state", Usage: "JSON state file"},
			&cli.StringFlag{Name: "time-zone", Usage: "IANA time zone class times are entered in"},
			&cli.StringFlag{Name: "calendar-color", Usage: "Colour id for new semester calendars"},
			&cli.BoolFlag{Name: "validate-locations", Usage: "Require BUILDING ROOM locations with a known building code"},
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}, Usage: "debug, info, warn or error"},
		},
		Commands: []*cli.Command{
			authCommand(),
			createCommand(),
			updateCommand(),
			deleteCommand(),
			deleteOccurrencesCommand(),
			occurrencesCommand(),
			listCommand(),
			checkCommand(),
			eventColorCommand(),
			calendarsCommand(),
			exportCommand(),
			semesterCommand(),
		},
	}
}

// env is everything a command needs, built from the global flags.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	tokens *auth.Manager
	syncer *sync.Syncer
	out    io.Writer
	close  func() error
}

func setup(c *cli.Context) (*env, error) {
	logger := setupLogger(c.String("log-level"))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig(c.String("config"), config.Flags{
		CredentialsPath:   c.String("credentials"),
		TokenDir:          c.String("token-dir"),
		Account:           c.String("account"),
		DatabaseURL:       c.String("database-url"),
		StatePath:         c.String("state"),
		TimeZone:          c.String("time-zone"),
		CalendarColor:     c.String("calendar-color"),
		ValidateLocations: c.Bool("validate-locations"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	e := &env{cfg: cfg, logger: logger, out: c.App.Writer, close: func() error { return nil }}

	if cfg.DatabaseURL != "" {
		db, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		e.store, e.close = db, db.Close
	} else {
		file, err := store.OpenFile(cfg.StatePath)
		if err != nil {
			return nil, err
		}
		e.store = file
	}

	e.tokens = &auth.Manager{Store: auth.NewFileTokenStore(cfg.TokenDir), Logger: logger}
	if cfg.CredentialsPath != "" {
		oauthConfig, err := auth.LoadOAuthConfig(cfg.CredentialsPath)
		if err != nil {
			return nil, err
		}
		e.tokens.Refresher = &auth.OAuthRefresher{Config: oauthConfig}
	} else {
		logger.Warn("no credentials file configured, access tokens will not be refreshed")
	}

	e.syncer = sync.NewSyncer(sync.Options{
		Store:             e.store,
		Tokens:            e.tokens,
		Connector:         &calendar.GoogleConnector{Endpoint: cfg.Endpoint},
		Location:          cfg.Location(),
		PrimaryCalendarID: cfg.CalendarID,
		CalendarColorID:   cfg.DefaultCalendarColor,
		BuildingCodes:     cfg.Buildings(),
		Logger:            logger,
	})
	return e, nil
}

// withEnv wraps a command action with setup and teardown.
func withEnv(action func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer func() {
			if err := e.close(); err != nil {
				e.logger.Warn("failed to close store", "error", err)
			}
		}()
		return action(c, e)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
