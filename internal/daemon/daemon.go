// Package daemon wires slackfm together and runs it: the Slack bot, the
// callback HTTP server and the link-state sweeper.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/slackfm/internal/artwork"
	"github.com/jfmyers9/slackfm/internal/config"
	"github.com/jfmyers9/slackfm/internal/cooldown"
	"github.com/jfmyers9/slackfm/internal/leaderboard"
	"github.com/jfmyers9/slackfm/internal/link"
	"github.com/jfmyers9/slackfm/internal/server"
	"github.com/jfmyers9/slackfm/internal/slackbot"
	"github.com/jfmyers9/slackfm/internal/store"
	"github.com/jfmyers9/slackfm/pkg/lastfm"
)

// task is a long-running component. run blocks until ctx is cancelled.
type task struct {
	name string
	run  func(ctx context.Context) error
}

// Daemon owns the process-wide components.
type Daemon struct {
	config  *config.Config
	store   *store.Store
	bot     *slackbot.Bot
	http    *server.Server
	sweeper *Sweeper
	logger  zerolog.Logger
}

// lastfmLogger adapts zerolog to the lastfm client's debug logger.
type lastfmLogger struct {
	logger zerolog.Logger
}

func (l lastfmLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// New creates a new Daemon instance
func New(cfg *config.Config, logger zerolog.Logger) (*Daemon, error) {
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d, err := build(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func build(cfg *config.Config, db *store.Store, logger zerolog.Logger) (*Daemon, error) {
	lfm, err := lastfm.NewClient(lastfm.Config{
		APIKey:     cfg.LastFM.APIKey,
		APISecret:  cfg.LastFM.APISecret,
		MaxRetries: cfg.LastFM.MaxRetries,
		UserAgent:  "slackfm",
		Logger:     lastfmLogger{logger: logger.With().Str("component", "lastfm").Logger()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Last.fm client: %w", err)
	}

	slackClient, err := slackbot.NewClient(slackbot.Config{
		BotToken: cfg.Slack.BotToken,
		AppToken: cfg.Slack.AppToken,
		Debug:    cfg.Slack.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Slack client: %w", err)
	}

	links, err := link.NewService(db, db, lfm.Auth(), link.Options{
		CallbackURL: cfg.LastFM.CallbackURL,
		TTL:         cfg.Link.TTL,
		Notifier:    slackbot.NewNotifier(slackClient),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create link service: %w", err)
	}

	counter := leaderboard.LastFMCounter{Client: lfm}
	fanOut := leaderboard.Options{
		CallDelay:      cfg.Leaderboard.CallDelay,
		CallTimeout:    cfg.Leaderboard.CallTimeout,
		MaxInFlight:    cfg.Leaderboard.MaxInFlight,
		CrownThreshold: cfg.Leaderboard.CrownThreshold,
		Logger:         logger,
	}
	catalog := slackbot.LastFMCatalog{Client: lfm}

	bot := slackbot.New(slackClient, slackbot.Deps{
		Links:      links,
		Identities: db,
		Crowns:     db,
		Ranker:     leaderboard.New(db, db, counter, fanOut),
		Presence:   leaderboard.NewPresence(db, counter, fanOut),
		Catalog:    catalog,
		Profiles:   catalog,
		Artwork:    artwork.New(logger),
		Gate: cooldown.New(cooldown.Options{
			Window:     cfg.Cooldown.Window,
			EvictAfter: cfg.Cooldown.EvictAfter,
		}),
	}, cfg.Slack.Debug, logger)

	return &Daemon{
		config: cfg,
		store:  db,
		bot:    bot,
		http: server.New(links, server.Options{
			CallbackLimit: cfg.Server.CallbackRateLimit,
			DB:            db,
			Logger:        logger,
		}),
		sweeper: NewSweeper(links, cfg.Link.SweepInterval, logger),
		logger:  logger.With().Str("component", "daemon").Logger(),
	}, nil
}

// Run starts the daemon and blocks until shutdown signal received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Second signal forces exit
		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	return d.run(ctx, d.tasks())
}

func (d *Daemon) tasks() []task {
	return []task{
		{name: "slack", run: d.bot.Run},
		{name: "http", run: func(ctx context.Context) error { return d.http.Run(ctx, d.config.Server.Addr) }},
		{name: "sweeper", run: d.sweeper.Run},
	}
}

// run starts every task and waits for all of them. The first task to fail
// stops the others; its error is returned.
func (d *Daemon) run(ctx context.Context, tasks []task) error {
	d.logger.Info().Msg("Starting daemon")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)

	for _, t := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := t.run(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error().Err(err).Str("task", t.name).Msg("Task failed")
			once.Do(func() {
				firstErr = fmt.Errorf("%s: %w", t.name, err)
				cancel()
			})
		}()
	}

	wg.Wait()

	d.logger.Info().Msg("Daemon stopped")
	return firstErr
}

// Shutdown gracefully shuts down the daemon
func (d *Daemon) Shutdown() error {
	d.logger.Info().Msg("Shutting down daemon")

	if err := d.store.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
