package slackbot

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/slack-go/slack"

	"github.com/jfmyers9/slackfm/pkg/lastfm"
)

const (
	recentLimit    = 5
	listeningShown = 5
)

func (b *Bot) handleNowPlaying(ctx context.Context, req *request, respond Responder) error {
	id, problem, err := b.targetIdentity(ctx, req)
	if err != nil {
		return err
	}
	if problem != "" {
		return respond(ctx, ephemeral(problem))
	}

	tracks, err := b.deps.Profiles.RecentTracks(ctx, id.LastFMUsername, 1)
	if err != nil {
		b.logger.Warn().Err(err).Str("lastfm_user", id.LastFMUsername).Msg("Recent tracks lookup failed")
		return respond(ctx, ephemeral("⚠️ Failed to fetch now playing track from Last.fm."))
	}
	if len(tracks) == 0 {
		return respond(ctx, ephemeral(fmt.Sprintf("No recent tracks found for *%s*.", id.LastFMUsername)))
	}

	t := tracks[0]
	header := fmt.Sprintf("📻 <@%s> last played:", id.UserID)
	if t.NowPlaying {
		header = fmt.Sprintf("🎶 <@%s> is now playing:", id.UserID)
	}
	text := fmt.Sprintf("%s\n*%s* by *%s*", header, t.Name, t.Artist)

	blocks := []slack.Block{slack.NewSectionBlock(mrkdwn(text), nil, imageAccessory(t.Image.Largest(), "Album cover for "+t.Album))}
	if t.Album != "" {
		blocks = append(blocks, slack.NewContextBlock("", mrkdwn("_Album: "+t.Album+"_")))
	}
	return respond(ctx, blocksMessage(slack.ResponseTypeInChannel, text, blocks...))
}

func (b *Bot) handleRecent(ctx context.Context, req *request, respond Responder) error {
	id, problem, err := b.targetIdentity(ctx, req)
	if err != nil {
		return err
	}
	if problem != "" {
		return respond(ctx, ephemeral(problem))
	}

	tracks, err := b.deps.Profiles.RecentTracks(ctx, id.LastFMUsername, recentLimit)
	if err != nil {
		b.logger.Warn().Err(err).Str("lastfm_user", id.LastFMUsername).Msg("Recent tracks lookup failed")
		return respond(ctx, ephemeral("⚠️ Could not fetch recent tracks."))
	}
	if len(tracks) == 0 {
		return respond(ctx, ephemeral(fmt.Sprintf("No recent tracks found for *%s*.", id.LastFMUsername)))
	}
	// A now playing track comes on top of the requested limit.
	if len(tracks) > recentLimit {
		tracks = tracks[:recentLimit]
	}

	header := fmt.Sprintf("🎧 *%d Recent Tracks by* <@%s>", len(tracks), id.UserID)
	blocks := []slack.Block{section(header), slack.NewDividerBlock()}
	for i, t := range tracks {
		line := fmt.Sprintf("*%d. %s –* %s", i+1, t.Artist, t.Name)
		if t.Album != "" {
			line += " • _" + t.Album + "_"
		}
		switch {
		case t.NowPlaying:
			line += "\n🎶 Now playing"
		case !t.PlayedAt.IsZero():
			line += "\n🕒 " + slackDate(t.PlayedAt, "{date_short_pretty} {time}", time.RFC1123)
		}
		blocks = append(blocks, slack.NewSectionBlock(mrkdwn(line), nil, imageAccessory(t.Image.Largest(), t.Name)))
	}
	return respond(ctx, blocksMessage(slack.ResponseTypeInChannel, header, blocks...))
}

// handlePlays reports total, monthly and weekly scrobbles.
func (b *Bot) handlePlays(ctx context.Context, req *request, respond Responder) error {
	id, problem, err := b.targetIdentity(ctx, req)
	if err != nil {
		return err
	}
	if problem != "" {
		return respond(ctx, ephemeral(problem))
	}

	failed := ephemeral("⚠️ Could not fetch scrobble stats.")
	info, err := b.deps.Profiles.UserInfo(ctx, id.LastFMUsername)
	if err != nil {
		b.logger.Warn().Err(err).Str("lastfm_user", id.LastFMUsername).Msg("User info lookup failed")
		return respond(ctx, failed)
	}

	now := b.now()
	month, err := b.deps.Profiles.CountScrobbles(ctx, id.LastFMUsername, now.Add(-30*24*time.Hour), now)
	if err != nil {
		b.logger.Warn().Err(err).Str("lastfm_user", id.LastFMUsername).Msg("Monthly scrobble count failed")
		return respond(ctx, failed)
	}
	week, err := b.deps.Profiles.CountScrobbles(ctx, id.LastFMUsername, now.Add(-7*24*time.Hour), now)
	if err != nil {
		b.logger.Warn().Err(err).Str("lastfm_user", id.LastFMUsername).Msg("Weekly scrobble count failed")
		return respond(ctx, failed)
	}

	text := fmt.Sprintf("📈 <@%s>'s scrobbles:\n• *Total:* %s\n• *This month:* %s\n• *This week:* %s\n_Monthly and weekly stats may be inaccurate._",
		id.UserID, humanize.Comma(int64(info.PlayCount)), humanize.Comma(int64(month)), humanize.Comma(int64(week)))
	if info.URL != "" {
		text += "\n🔗 " + info.URL
	}
	return respond(ctx, &slack.WebhookMessage{Text: text, ResponseType: slack.ResponseTypeInChannel})
}

func (b *Bot) handleTopTracks(ctx context.Context, req *request, respond Responder) error {
	return b.topChart(ctx, req, respond, "🎵 *All-Time Top 10 Tracks for* %s", "tracks", b.deps.Profiles.TopTracks)
}

func (b *Bot) handleTopAlbums(ctx context.Context, req *request, respond Responder) error {
	return b.topChart(ctx, req, respond, "📀 *All-Time Top 10 Albums for* %s", "albums", b.deps.Profiles.TopAlbums)
}

func (b *Bot) topChart(ctx context.Context, req *request, respond Responder, title, noun string,
	fetch func(ctx context.Context, username string, limit int) ([]lastfm.TopItem, error)) error {
	id, problem, err := b.targetIdentity(ctx, req)
	if err != nil {
		return err
	}
	if problem != "" {
		return respond(ctx, ephemeral(problem))
	}

	items, err := fetch(ctx, id.LastFMUsername, topN)
	if err != nil {
		b.logger.Warn().Err(err).Str("lastfm_user", id.LastFMUsername).Msgf("Top %s lookup failed", noun)
		return respond(ctx, ephemeral(fmt.Sprintf("⚠️ Could not fetch top %s.", noun)))
	}
	if len(items) == 0 {
		return respond(ctx, ephemeral(fmt.Sprintf("No top %s found for *%s*.", noun, id.LastFMUsername)))
	}

	header := fmt.Sprintf(title, b.names.Name(ctx, id.UserID))
	blocks := []slack.Block{section(header), slack.NewDividerBlock()}
	for i, it := range items {
		line := fmt.Sprintf("*%d. %s* by *%s* – %s", i+1, it.Name, it.Artist, plural(it.PlayCount, "play"))
		blocks = append(blocks, slack.NewSectionBlock(mrkdwn(line), nil, imageAccessory(it.Image.Largest(), it.Name)))
	}
	return respond(ctx, blocksMessage(slack.ResponseTypeInChannel, header, blocks...))
}

func (b *Bot) handleProfile(ctx context.Context, req *request, respond Responder) error {
	id, problem, err := b.targetIdentity(ctx, req)
	if err != nil {
		return err
	}
	if problem != "" {
		return respond(ctx, ephemeral(problem))
	}

	info, err := b.deps.Profiles.UserInfo(ctx, id.LastFMUsername)
	if err != nil {
		b.logger.Warn().Err(err).Str("lastfm_user", id.LastFMUsername).Msg("User info lookup failed")
		return respond(ctx, ephemeral("⚠️ Failed to fetch Last.fm profile."))
	}

	name := b.names.Name(ctx, id.UserID)
	text := fmt.Sprintf("🎧 *%s's Last.fm profile:*\n*Username:* %s\n*Scrobbles:* %s",
		name, info.Name, humanize.Comma(int64(info.PlayCount)))
	if !info.Registered.IsZero() {
		text += "\n*Registered:* " + slackDate(info.Registered, "{date_long}", "January 2, 2006")
	}

	blocks := []slack.Block{slack.NewSectionBlock(mrkdwn(text), nil, imageAccessory(info.Image.Largest(), info.Name+"'s avatar"))}
	if info.URL != "" {
		button := slack.NewButtonBlockElement("", "", slack.NewTextBlockObject(slack.PlainTextType, "View Last.fm Profile", false, false))
		button.URL = info.URL
		blocks = append(blocks, slack.NewActionBlock("", button))
	}
	return respond(ctx, blocksMessage(slack.ResponseTypeInChannel, text, blocks...))
}

// handleWhosListening shows up to five linked users who are playing
// something right now.
func (b *Bot) handleWhosListening(ctx context.Context, req *request, respond Responder) error {
	listeners, err := b.deps.Presence.Listening(ctx, req.TeamID)
	if err != nil {
		return fmt.Errorf("scanning listeners: %w", err)
	}
	if len(listeners) == 0 {
		return respond(ctx, &slack.WebhookMessage{
			Text:         "🎧 Nobody is currently listening to music in this workspace! Time to start scrobbling! 🎵",
			ResponseType: slack.ResponseTypeInChannel,
		})
	}

	shown := listeners
	if len(shown) > listeningShown {
		shown = shown[:listeningShown]
	}

	header := fmt.Sprintf("🎧 *%s currently listening to music:*", people(len(listeners)))
	blocks := []slack.Block{section(header), slack.NewDividerBlock()}
	for _, l := range shown {
		line := fmt.Sprintf("🎵 %s is jamming to:\n*%s* by *%s*", b.names.Name(ctx, l.UserID), l.Track, l.Artist)
		if l.Album != "" {
			line += "\n_Album: " + l.Album + "_"
		}
		blocks = append(blocks, slack.NewSectionBlock(mrkdwn(line), nil, imageAccessory(l.Image, l.Track+" album art")))
	}
	if more := len(listeners) - len(shown); more > 0 {
		blocks = append(blocks, slack.NewContextBlock("", mrkdwn(fmt.Sprintf("_And %s listening! 🎶_", people(more)))))
	}
	return respond(ctx, blocksMessage(slack.ResponseTypeInChannel, header, blocks...))
}

func people(n int) string {
	if n == 1 {
		return "1 person is"
	}
	return fmt.Sprintf("%d people are", n)
}

func imageAccessory(url, alt string) *slack.Accessory {
	if url == "" {
		return nil
	}
	return slack.NewAccessory(slack.NewImageBlockElement(url, alt))
}

// slackDate renders t with a Slack date token, falling back to layout.
func slackDate(t time.Time, token, layout string) string {
	return fmt.Sprintf("<!date^%d^%s|%s>", t.Unix(), token, t.UTC().Format(layout))
}
