package slackbot

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/slack-go/slack"
)

// Responder replies to the command that triggered it.
type Responder func(ctx context.Context, msg *slack.WebhookMessage) error

type request struct {
	slack.SlashCommand
	received time.Time
}

type handlerFunc func(ctx context.Context, req *request, respond Responder) error

const (
	actionConfirmUnlink = "confirm_unlink"
	actionLinkLastFM    = "link_lastfm"
)

// helpEntry documents one slash command.
type helpEntry struct {
	command string
	usage   string
}

// help lists the registered commands in the order /slackfmcommands shows
// them.
var help = []helpEntry{
	{"/linklastfm", "Link your Last.fm account"},
	{"/unlink", "Unlink your Last.fm account"},
	{"/nowplaying", "Show current/last played track"},
	{"/recent", "Show recently played tracks"},
	{"/plays", "Show total, monthly and weekly scrobbles"},
	{"/profile", "Show Last.fm profile stats"},
	{"/toptracks", "Show all-time top tracks"},
	{"/topalbums", "Show all-time top albums"},
	{"/artist", "Show info about last played artist"},
	{"/album", "Show info about last played album"},
	{"/song", "Show info about last played song"},
	{"/cover", "Show the cover of last played album"},
	{"/whoknows", "Top listeners for an artist"},
	{"/whoknowsalbum", "Top listeners for an album"},
	{"/whoknowssong", "Top listeners for a song"},
	{"/whoslistening", "Show who is listening right now"},
	{"/crownboard", "Show who holds the most crowns"},
	{"/linkedcount", "Show how many users linked Last.fm"},
	{"/ping", "Check the bot responds"},
	{"/uptime", "Show how long the bot has been running"},
	{"/about", "About slack.fm"},
	{"/slackfmcommands", "List these commands"},
}

func (b *Bot) commands() map[string]handlerFunc {
	return map[string]handlerFunc{
		"/linklastfm":      b.handleLink,
		"/unlink":          b.handleUnlink,
		"/nowplaying":      b.handleNowPlaying,
		"/recent":          b.handleRecent,
		"/plays":           b.handlePlays,
		"/profile":         b.handleProfile,
		"/toptracks":       b.handleTopTracks,
		"/topalbums":       b.handleTopAlbums,
		"/artist":          b.handleArtistInfo,
		"/album":           b.handleAlbumInfo,
		"/song":            b.handleSongInfo,
		"/cover":           b.handleCover,
		"/whoknows":        b.handleWhoKnows,
		"/whoknowsalbum":   b.handleWhoKnowsAlbum,
		"/whoknowssong":    b.handleWhoKnowsSong,
		"/whoslistening":   b.handleWhosListening,
		"/crownboard":      b.handleCrownboard,
		"/linkedcount":     b.handleLinkedCount,
		"/ping":            b.handlePing,
		"/uptime":          b.handleUptime,
		"/about":           b.handleAbout,
		"/slackfmcommands": b.handleHelp,
	}
}

// HandleCommand runs a slash command through the cooldown gate and replies
// on the command's response URL.
func (b *Bot) HandleCommand(ctx context.Context, cmd slack.SlashCommand) {
	req := &request{SlashCommand: cmd, received: b.now()}
	respond := b.responder(cmd.ResponseURL)

	log := b.logger.With().
		Str("command", cmd.Command).
		Str("user", cmd.UserID).
		Str("workspace", cmd.TeamID).
		Logger()

	handler, ok := b.handlers[cmd.Command]
	if !ok {
		b.reply(ctx, respond, ephemeral(fmt.Sprintf("Unknown command: %s", cmd.Command)))
		return
	}

	if remaining, ok := b.deps.Gate.Allow(cmd.UserID, cmd.Command); !ok {
		seconds := int(math.Ceil(remaining.Seconds()))
		b.reply(ctx, respond, ephemeral(fmt.Sprintf(
			"⏱️ Please wait %d second(s) before using %s again.", seconds, cmd.Command)))
		return
	}

	log.Debug().Str("text", cmd.Text).Msg("Handling command")

	if err := handler(ctx, req, b.withFooter(respond, cmd.UserID)); err != nil {
		log.Error().Err(err).Msg("Command failed")
		b.reply(ctx, respond, ephemeral("⚠️ Something went wrong. Please try again later."))
	}
}

// HandleInteraction handles block actions.
func (b *Bot) HandleInteraction(ctx context.Context, callback slack.InteractionCallback) {
	if callback.Type != slack.InteractionTypeBlockActions {
		return
	}

	respond := b.responder(callback.ResponseURL)
	for _, action := range callback.ActionCallback.BlockActions {
		switch action.ActionID {
		case actionConfirmUnlink:
			if err := b.confirmUnlink(ctx, callback, respond); err != nil {
				b.logger.Error().Err(err).Str("user", callback.User.ID).Msg("Unlink failed")
				b.reply(ctx, respond, ephemeral("❌ Failed to unlink your account. Please try again."))
			}
		case actionLinkLastFM:
			// URL button; the browser does the work.
		default:
			b.logger.Debug().Str("action", action.ActionID).Msg("Ignoring unknown action")
		}
	}
}

func (b *Bot) responder(url string) Responder {
	return func(ctx context.Context, msg *slack.WebhookMessage) error {
		return b.post(ctx, url, msg)
	}
}

func (b *Bot) reply(ctx context.Context, respond Responder, msg *slack.WebhookMessage) {
	if err := respond(ctx, msg); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to send response")
	}
}

// withFooter appends the "Command run by" context to block responses.
func (b *Bot) withFooter(respond Responder, userID string) Responder {
	return func(ctx context.Context, msg *slack.WebhookMessage) error {
		if msg.Blocks != nil && len(msg.Blocks.BlockSet) > 0 {
			now := b.now()
			msg.Blocks.BlockSet = append(msg.Blocks.BlockSet,
				slack.NewDividerBlock(),
				slack.NewContextBlock("",
					mrkdwn(fmt.Sprintf("Command run by <@%s> at <!date^%d^{date_short_pretty} {time}|%s>",
						userID, now.Unix(), now.UTC().Format(time.RFC1123))),
				),
			)
		}
		return respond(ctx, msg)
	}
}

func ephemeral(text string) *slack.WebhookMessage {
	return &slack.WebhookMessage{Text: text, ResponseType: slack.ResponseTypeEphemeral}
}

func blocksMessage(responseType string, fallback string, blocks ...slack.Block) *slack.WebhookMessage {
	return &slack.WebhookMessage{
		Text:         fallback,
		ResponseType: responseType,
		Blocks:       &slack.Blocks{BlockSet: blocks},
	}
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func section(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(mrkdwn(text), nil, nil)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
