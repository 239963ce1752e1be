package slackbot

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/slack-go/slack"

	"github.com/jfmyers9/slackfm/internal/leaderboard"
	"github.com/jfmyers9/slackfm/internal/store"
)

// infoCard is what the info commands show about an artist, album or track.
type infoCard struct {
	Image     string
	URL       string
	Listeners int
	Plays     int
	UserPlays int
}

func (b *Bot) handleArtistInfo(ctx context.Context, req *request, respond Responder) error {
	return b.subjectInfo(ctx, req, respond, leaderboard.KindArtist)
}

func (b *Bot) handleAlbumInfo(ctx context.Context, req *request, respond Responder) error {
	return b.subjectInfo(ctx, req, respond, leaderboard.KindAlbum)
}

func (b *Bot) handleSongInfo(ctx context.Context, req *request, respond Responder) error {
	return b.subjectInfo(ctx, req, respond, leaderboard.KindTrack)
}

// subjectRequest returns the request to resolve a subject from. A lone
// mention means "what that user last played".
func (b *Bot) subjectRequest(ctx context.Context, req *request) (*request, string, error) {
	target, ok := mentionedUser(req.Text)
	if !ok {
		return req, "", nil
	}
	if _, problem, err := b.identityOf(ctx, req, target); err != nil || problem != "" {
		return nil, problem, err
	}
	sub := *req
	sub.UserID = target
	sub.Text = ""
	return &sub, "", nil
}

// subjectInfo shows listener and play statistics for an artist, album or
// track, including the plays of whoever the subject was resolved for.
func (b *Bot) subjectInfo(ctx context.Context, req *request, respond Responder, kind leaderboard.Kind) error {
	subReq, problem, err := b.subjectRequest(ctx, req)
	if err != nil {
		return err
	}
	if problem != "" {
		return respond(ctx, ephemeral(problem))
	}

	subject, problem, err := b.resolveSubject(ctx, subReq, kind)
	if err != nil {
		return err
	}
	if problem != "" {
		return respond(ctx, ephemeral(problem))
	}

	username := ""
	id, err := b.deps.Identities.GetIdentity(ctx, subReq.UserID, req.TeamID)
	switch {
	case err == nil:
		username = id.LastFMUsername
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("loading identity: %w", err)
	}

	card, err := b.card(ctx, subject, username)
	if err != nil {
		b.logger.Warn().Err(err).Str("subject", subject.Name()).Msgf("%s info lookup failed", kind)
		return respond(ctx, ephemeral(fmt.Sprintf("⚠️ Could not fetch %s info.", kindNoun(kind))))
	}

	name := b.names.Name(ctx, subReq.UserID)
	var emoji, label, title string
	switch kind {
	case leaderboard.KindAlbum:
		emoji, label = "💿", "Album"
		title = fmt.Sprintf("*Album:* %s\n*Artist:* %s", subject.Album, subject.Artist)
	case leaderboard.KindTrack:
		emoji, label = "🎵", "Song"
		title = fmt.Sprintf("*Song:* %s\n*Artist:* %s", subject.Track, subject.Artist)
	default:
		emoji, label = "🎤", "Artist"
		title = "*Artist:* " + subject.Artist
	}
	header := fmt.Sprintf("%s *%s info*", emoji, label)
	if subReq.Text == "" {
		header = fmt.Sprintf("%s *Last played %s by* %s", emoji, kindNoun(kind), name)
	}

	fields := []*slack.TextBlockObject{
		mrkdwn("*Listeners:*\n" + humanize.Comma(int64(card.Listeners))),
		mrkdwn("*Global plays:*\n" + humanize.Comma(int64(card.Plays))),
	}
	if username != "" {
		fields = append(fields, mrkdwn(fmt.Sprintf("*%s plays:*\n%s", name, humanize.Comma(int64(card.UserPlays)))))
	}

	blocks := []slack.Block{
		section(header),
		slack.NewSectionBlock(mrkdwn(title), nil, imageAccessory(card.Image, subject.Name())),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(nil, fields, nil),
	}
	if card.URL != "" {
		button := slack.NewButtonBlockElement("", "", slack.NewTextBlockObject(slack.PlainTextType, "View on Last.fm", false, false))
		button.URL = card.URL
		blocks = append(blocks, slack.NewActionBlock("", button))
	}
	return respond(ctx, blocksMessage(slack.ResponseTypeInChannel, subject.Name(), blocks...))
}

func (b *Bot) card(ctx context.Context, subject leaderboard.Subject, username string) (*infoCard, error) {
	switch subject.Kind {
	case leaderboard.KindAlbum:
		info, err := b.deps.Profiles.AlbumInfo(ctx, subject.Artist, subject.Album, username)
		if err != nil {
			return nil, err
		}
		return &infoCard{
			Image:     info.Image.Largest(),
			URL:       info.URL,
			Listeners: int(info.Listeners),
			Plays:     int(info.PlayCount),
			UserPlays: int(info.UserPlayCount),
		}, nil
	case leaderboard.KindTrack:
		info, err := b.deps.Profiles.TrackInfo(ctx, subject.Artist, subject.Track, username)
		if err != nil {
			return nil, err
		}
		return &infoCard{
			Image:     info.Album.Image.Largest(),
			URL:       info.URL,
			Listeners: int(info.Listeners),
			Plays:     int(info.PlayCount),
			UserPlays: int(info.UserPlayCount),
		}, nil
	default:
		info, err := b.deps.Profiles.ArtistInfo(ctx, subject.Artist, username)
		if err != nil {
			return nil, err
		}
		card := &infoCard{
			URL:       info.URL,
			Listeners: int(info.Stats.Listeners),
			Plays:     int(info.Stats.PlayCount),
			UserPlays: int(info.Stats.UserPlayCount),
		}
		if card.Image = b.image(ctx, subject); card.Image == "" {
			card.Image = info.Image.Largest()
		}
		return card, nil
	}
}

// handleCover shows the cover of the caller's last played album, or of an
// album named in the text.
func (b *Bot) handleCover(ctx context.Context, req *request, respond Responder) error {
	subReq, problem, err := b.subjectRequest(ctx, req)
	if err != nil {
		return err
	}
	if problem != "" {
		return respond(ctx, ephemeral(problem))
	}

	subject, problem, err := b.resolveSubject(ctx, subReq, leaderboard.KindAlbum)
	if err != nil {
		return err
	}
	if problem != "" {
		return respond(ctx, ephemeral(problem))
	}

	info, err := b.deps.Profiles.AlbumInfo(ctx, subject.Artist, subject.Album, "")
	if err != nil {
		b.logger.Warn().Err(err).Str("album", subject.Album).Msg("Album info lookup failed")
		return respond(ctx, ephemeral("⚠️ Could not fetch album cover."))
	}

	text := fmt.Sprintf("*%s* by *%s*", subject.Album, subject.Artist)
	if subReq.Text == "" {
		text += fmt.Sprintf(" (last played by %s)", b.names.Name(ctx, subReq.UserID))
	}

	blocks := []slack.Block{section(text)}
	if image := info.Image.Largest(); image != "" {
		blocks = append(blocks, slack.NewImageBlock(image, subject.Album, "", nil))
	} else {
		blocks = append(blocks, slack.NewContextBlock("", mrkdwn("_No album cover available._")))
	}
	return respond(ctx, blocksMessage(slack.ResponseTypeInChannel, text, blocks...))
}

func kindNoun(kind leaderboard.Kind) string {
	if kind == leaderboard.KindTrack {
		return "song"
	}
	return kind.String()
}
