package slackbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/jfmyers9/slackfm/internal/leaderboard"
	"github.com/jfmyers9/slackfm/internal/store"
)

const topN = 10

func (b *Bot) handleWhoKnows(ctx context.Context, req *request, respond Responder) error {
	return b.whoKnows(ctx, req, respond, leaderboard.KindArtist)
}

func (b *Bot) handleWhoKnowsAlbum(ctx context.Context, req *request, respond Responder) error {
	return b.whoKnows(ctx, req, respond, leaderboard.KindAlbum)
}

func (b *Bot) handleWhoKnowsSong(ctx context.Context, req *request, respond Responder) error {
	return b.whoKnows(ctx, req, respond, leaderboard.KindTrack)
}

func (b *Bot) whoKnows(ctx context.Context, req *request, respond Responder, kind leaderboard.Kind) error {
	subject, problem, err := b.resolveSubject(ctx, req, kind)
	if err != nil {
		return err
	}
	if problem != "" {
		return respond(ctx, ephemeral(problem))
	}

	result, err := b.deps.Ranker.Rank(ctx, req.TeamID, subject)
	if err != nil {
		return fmt.Errorf("ranking %s %q: %w", kind, subject.Name(), err)
	}
	if result.Empty() {
		return respond(ctx, ephemeral("⚠️ No linked users found in this workspace."))
	}

	blocks := b.renderLeaderboard(ctx, req.UserID, result)
	return respond(ctx, blocksMessage(slack.ResponseTypeInChannel, "Top 10 for "+subject.Name(), blocks...))
}

// resolveSubject works out what to rank from the command text, or from the
// caller's last played track when the text is empty. A non-empty problem is
// a message for the caller.
func (b *Bot) resolveSubject(ctx context.Context, req *request, kind leaderboard.Kind) (leaderboard.Subject, string, error) {
	subject := leaderboard.Subject{Kind: kind}
	query := strings.TrimSpace(req.Text)

	if query == "" {
		id, err := b.deps.Identities.GetIdentity(ctx, req.UserID, req.TeamID)
		if errors.Is(err, store.ErrNotFound) {
			return subject, notLinkedText, nil
		}
		if err != nil {
			return subject, "", fmt.Errorf("loading identity: %w", err)
		}

		track, err := b.deps.Catalog.LastTrack(ctx, id.LastFMUsername)
		if err != nil {
			b.logger.Debug().Err(err).Str("lastfm_user", id.LastFMUsername).Msg("Recent tracks lookup failed")
			return subject, fmt.Sprintf("⚠️ Could not fetch your last played %s.", kind), nil
		}
		if track == nil {
			return subject, "⚠️ No recent tracks found.", nil
		}

		subject.Artist = track.Artist
		subject.Album = track.Album
		subject.Track = track.Name
		if kind == leaderboard.KindAlbum && subject.Album == "" {
			return subject, "⚠️ Your last played track doesn't have album information.", nil
		}
		return subject, "", nil
	}

	switch kind {
	case leaderboard.KindArtist:
		subject.Artist = query
		match, err := b.deps.Catalog.SearchArtist(ctx, query)
		switch {
		case err != nil:
			// Rank on the text as typed.
			b.logger.Debug().Err(err).Str("query", query).Msg("Artist search failed")
		case match == nil:
			return subject, fmt.Sprintf("⚠️ No artist found matching %q. Please check the spelling.", query), nil
		default:
			subject.Artist = match.Name
		}
		return subject, "", nil

	case leaderboard.KindAlbum:
		if artist, album, ok := splitPair(query); ok {
			subject.Artist, subject.Album = artist, album
			return subject, "", nil
		}
		match, err := b.deps.Catalog.SearchAlbum(ctx, query)
		if err != nil {
			return subject, fmt.Sprintf("⚠️ Could not search for album %q. Try using \"Artist - Album\" format.", query), nil
		}
		if match == nil {
			return subject, fmt.Sprintf("⚠️ No album found matching %q. Try using \"Artist - Album\" format.", query), nil
		}
		subject.Artist, subject.Album = match.Artist, match.Name
		return subject, "", nil

	default:
		if artist, track, ok := splitPair(query); ok {
			subject.Artist, subject.Track = artist, track
			return subject, "", nil
		}
		match, err := b.deps.Catalog.SearchTrack(ctx, query)
		if err != nil {
			return subject, fmt.Sprintf("⚠️ Could not search for song %q. Try using \"Artist - Song\" format.", query), nil
		}
		if match == nil {
			return subject, fmt.Sprintf("⚠️ No song found matching %q. Try using \"Artist - Song\" format.", query), nil
		}
		subject.Artist, subject.Track = match.Artist, match.Name
		return subject, "", nil
	}
}

// splitPair splits "Artist - Name" on the first separator.
func splitPair(s string) (string, string, bool) {
	artist, name, ok := strings.Cut(s, " - ")
	if !ok {
		return "", "", false
	}
	artist, name = strings.TrimSpace(artist), strings.TrimSpace(name)
	if artist == "" || name == "" {
		return "", "", false
	}
	return artist, name, true
}

func (b *Bot) renderLeaderboard(ctx context.Context, callerID string, result *leaderboard.Result) []slack.Block {
	subject := result.Subject

	var header string
	switch subject.Kind {
	case leaderboard.KindAlbum:
		header = fmt.Sprintf("📀 *Top 10 for* *%s* by *%s*:", subject.Album, subject.Artist)
	case leaderboard.KindTrack:
		header = fmt.Sprintf("🎵 *Top 10 for* *%s* by *%s*:", subject.Track, subject.Artist)
	default:
		header = fmt.Sprintf(":trophy: *Top 10 for* *%s*:", subject.Artist)
	}

	if crown := result.Crown; crown != nil {
		switch crown.Type {
		case leaderboard.TransitionStealer:
			header += fmt.Sprintf("\n:crown: *%s has stolen the crown!*", b.names.Name(ctx, crown.Holder))
		case leaderboard.TransitionFirst:
			header += fmt.Sprintf("\n:crown: *%s is the first to earn the crown!*", b.names.Name(ctx, crown.Holder))
		}
	}

	var accessory *slack.Accessory
	if image := b.image(ctx, subject); image != "" {
		accessory = slack.NewAccessory(slack.NewImageBlockElement(image, subject.Name()+" cover"))
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(mrkdwn(header), nil, accessory),
		slack.NewDividerBlock(),
	}

	for i, e := range result.Entries {
		if i == topN {
			break
		}
		line := fmt.Sprintf("*%d. %s* — %s", i+1, b.names.Name(ctx, e.UserID), plural(e.PlayCount, "play"))
		if crown := result.Crown; i == 0 && crown.HasHolder() && crown.Holder == e.UserID {
			line += " :crown:"
			if crown.Type == leaderboard.TransitionNone && !crown.Since.IsZero() {
				line += fmt.Sprintf(" (since <!date^%d^{date_short}|%s>)", crown.Since.Unix(), crown.Since.UTC().Format("Jan 2, 2006"))
			}
		}
		blocks = append(blocks, section(line))
	}

	if rank := result.RankOf(callerID); rank > topN {
		e := result.Entries[rank-1]
		blocks = append(blocks,
			slack.NewDividerBlock(),
			section(fmt.Sprintf("Your rank: *%d* — %s", rank, plural(e.PlayCount, "play"))),
		)
	}

	return blocks
}

func (b *Bot) image(ctx context.Context, subject leaderboard.Subject) string {
	if b.deps.Artwork == nil {
		return ""
	}
	if subject.Kind == leaderboard.KindAlbum {
		return b.deps.Artwork.Album(ctx, subject.Artist, subject.Album)
	}
	return b.deps.Artwork.Artist(ctx, subject.Artist)
}
