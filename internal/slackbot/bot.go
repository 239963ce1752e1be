// Package slackbot implements the Slack side of slackfm: slash commands and
// block actions received over Socket Mode.
package slackbot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/jfmyers9/slackfm/internal/cooldown"
	"github.com/jfmyers9/slackfm/internal/leaderboard"
	"github.com/jfmyers9/slackfm/internal/link"
	"github.com/jfmyers9/slackfm/internal/store"
)

const (
	commandTimeout     = time.Minute
	linkedCountTTL     = 30 * time.Minute
	linkedCountEntries = 1024
)

// SlackAPI is the subset of *slack.Client the bot uses.
type SlackAPI interface {
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Linker starts and removes account links.
type Linker interface {
	Initiate(ctx context.Context, userID, workspaceID string) (*link.Initiation, error)
	Unlink(ctx context.Context, userID, workspaceID string) (bool, error)
	TTL() time.Duration
}

// IdentityReader reads linked identities.
type IdentityReader interface {
	GetIdentity(ctx context.Context, userID, workspaceID string) (*store.Identity, error)
	CountIdentities(ctx context.Context, workspaceID string) (int, error)
}

// CrownReader reads crown standings.
type CrownReader interface {
	CrownCounts(ctx context.Context, workspaceID string) ([]store.CrownCount, error)
}

// Ranker computes who-knows leaderboards.
type Ranker interface {
	Rank(ctx context.Context, workspaceID string, subject leaderboard.Subject) (*leaderboard.Result, error)
}

// PresenceReader finds who in a workspace is listening right now.
type PresenceReader interface {
	Listening(ctx context.Context, workspaceID string) ([]leaderboard.Listener, error)
}

// ImageLookup finds cover images. Empty results are fine.
type ImageLookup interface {
	Artist(ctx context.Context, artist string) string
	Album(ctx context.Context, artist, album string) string
}

// Deps are the services commands run against.
type Deps struct {
	Links      Linker
	Identities IdentityReader
	Crowns     CrownReader
	Ranker     Ranker
	Catalog    Catalog
	Profiles   Profiles
	Presence   PresenceReader
	Artwork    ImageLookup // optional
	Gate       *cooldown.Gate
}

// Config holds configuration for the Slack bot.
type Config struct {
	BotToken string // xoxb-... Slack bot token
	AppToken string // xapp-... Slack app-level token (for Socket Mode)
	Debug    bool
}

// NewClient creates the Slack Web API client shared by the bot and the link
// notifier.
func NewClient(cfg Config) (*slack.Client, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("app token is required for Socket Mode")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("app token must start with xapp-")
	}

	return slack.New(
		cfg.BotToken,
		slack.OptionDebug(cfg.Debug),
		slack.OptionAppLevelToken(cfg.AppToken),
	), nil
}

// Bot dispatches Slack commands.
type Bot struct {
	api         SlackAPI
	socketMode  *socketmode.Client
	deps        Deps
	handlers    map[string]handlerFunc
	names       *NameCache
	linkedCount *expirable.LRU[string, int]
	post        func(ctx context.Context, url string, msg *slack.WebhookMessage) error
	now         func() time.Time
	started     time.Time
	logger      zerolog.Logger
	wg          sync.WaitGroup
}

// New creates a Socket Mode bot on client.
func New(client *slack.Client, deps Deps, debug bool, logger zerolog.Logger) *Bot {
	b := newBot(client, deps, logger)
	b.socketMode = socketmode.New(client, socketmode.OptionDebug(debug))
	return b
}

func newBot(api SlackAPI, deps Deps, logger zerolog.Logger) *Bot {
	if deps.Gate == nil {
		deps.Gate = cooldown.New(cooldown.Options{})
	}

	b := &Bot{
		api:         api,
		deps:        deps,
		names:       NewNameCache(api, logger),
		linkedCount: expirable.NewLRU[string, int](linkedCountEntries, nil, linkedCountTTL),
		post:        slack.PostWebhookContext,
		now:         time.Now,
		started:     time.Now(),
		logger:      logger.With().Str("component", "slackbot").Logger(),
	}
	b.handlers = b.commands()
	return b
}

// Run starts the bot event loop. Blocks until ctx is cancelled, then waits
// for in-flight commands to finish.
func (b *Bot) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-loopCtx.Done():
				return
			case evt, ok := <-b.socketMode.Events:
				if !ok {
					return
				}
				b.handleEvent(ctx, evt)
			}
		}
	}()

	err := b.socketMode.RunContext(ctx)
	stopLoop()
	b.drain(done)
	return err
}

// drain waits for the event loop to exit and then for the commands it
// started. The loop is the only caller of async, so no Add can race Wait.
func (b *Bot) drain(loopDone <-chan struct{}) {
	<-loopDone
	b.wg.Wait()
}

func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.logger.Info().Msg("Connecting to Socket Mode")

	case socketmode.EventTypeConnected:
		b.logger.Info().Msg("Connected to Socket Mode")

	case socketmode.EventTypeConnectionError:
		b.logger.Warn().Interface("data", evt.Data).Msg("Socket Mode connection error")

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		b.socketMode.Ack(*evt.Request)
		b.async(ctx, func(ctx context.Context) { b.HandleCommand(ctx, cmd) })

	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		b.socketMode.Ack(*evt.Request)
		b.async(ctx, func(ctx context.Context) { b.HandleInteraction(ctx, callback) })
	}
}

// async runs fn off the event loop with a bounded context.
func (b *Bot) async(ctx context.Context, fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		fn(ctx)
	}()
}
