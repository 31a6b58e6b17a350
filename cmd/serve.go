package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/mmstr/mmstr/internal/api"
	"github.com/mmstr/mmstr/internal/config"
	"github.com/mmstr/mmstr/internal/database"
	"github.com/mmstr/mmstr/internal/flow"
	"github.com/mmstr/mmstr/internal/judge"
	"github.com/mmstr/mmstr/internal/llm"
	"github.com/mmstr/mmstr/internal/retry"
	"github.com/mmstr/mmstr/internal/store"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the MMSTR API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "Use the in-memory store instead of postgres",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Log.Level)

	st, err := buildStore(c.Bool("memory"), cfg, logger)
	if err != nil {
		return err
	}

	j, err := buildJudge(cfg, logger)
	if err != nil {
		return err
	}

	svc := flow.NewService(st, j, logger)

	port := cfg.Server.Port
	if c.Int("port") > 0 {
		port = c.Int("port")
	}

	server := api.NewServer(port, svc, st, logger)
	return server.Start()
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}

func buildStore(memory bool, cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	if memory {
		logger.Warn().Msg("using in-memory store, data will not survive a restart")
		return store.NewInMemoryStore(), nil
	}
	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.Migrate(context.Background(), db); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return store.NewPostgresStore(db), nil
}

func buildJudge(cfg *config.Config, logger zerolog.Logger) (judge.Judge, error) {
	if cfg.AI.Provider == "fake" {
		logger.Warn().Msg("using the fake judge, every interpretation will be accepted")
		return judge.NewAcceptingFake(), nil
	}

	client, err := llm.NewLangchainClient(llm.Options{
		Provider:          cfg.AI.Provider,
		APIKey:            cfg.AI.APIKey,
		Model:             cfg.AI.Model,
		Temperature:       cfg.AI.Temperature,
		BaseURL:           cfg.AI.BaseURL,
		RequestsPerSecond: cfg.AI.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	retries := retry.DefaultConfig()
	if cfg.AI.MaxRetries > 0 {
		retries.MaxRetries = cfg.AI.MaxRetries
	}
	timeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second

	resilient := llm.NewResilientClient(client, timeout, retries, logger)
	return judge.NewLLMJudge(resilient, logger), nil
}
