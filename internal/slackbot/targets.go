package slackbot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/slack-go/slack"

	"github.com/jfmyers9/slackfm/internal/store"
)

const otherNotLinkedText = "⚠️ That user hasn't linked their Last.fm account."

var mentionPattern = regexp.MustCompile(`^<@([UW][A-Z0-9]+)(?:\|[^>]+)?>$`)

// mentionedUser returns the user ID of a lone Slack mention.
func mentionedUser(text string) (string, bool) {
	m := mentionPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// resolveTarget works out whose data a command shows: the caller when the
// text is empty, a mentioned user, or the user whose handle or display name
// matches the text. A non-empty problem is a message for the caller.
func (b *Bot) resolveTarget(ctx context.Context, req *request) (string, string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return req.UserID, "", nil
	}
	if id, ok := mentionedUser(text); ok {
		return id, "", nil
	}

	name := strings.TrimPrefix(text, "@")
	users, err := b.api.GetUsersContext(ctx, slack.GetUsersOptionLimit(1000))
	if err != nil {
		b.logger.Warn().Err(err).Msg("Failed to list Slack users")
		return "", "⚠️ Slack API error looking up user.", nil
	}
	for _, u := range users {
		if strings.EqualFold(u.Name, name) || strings.EqualFold(u.Profile.DisplayName, name) {
			return u.ID, "", nil
		}
	}
	return "", "⚠️ Could not find that user.", nil
}

// targetIdentity resolves the command's target user and loads their link.
func (b *Bot) targetIdentity(ctx context.Context, req *request) (*store.Identity, string, error) {
	userID, problem, err := b.resolveTarget(ctx, req)
	if err != nil || problem != "" {
		return nil, problem, err
	}
	return b.identityOf(ctx, req, userID)
}

func (b *Bot) identityOf(ctx context.Context, req *request, userID string) (*store.Identity, string, error) {
	id, err := b.deps.Identities.GetIdentity(ctx, userID, req.TeamID)
	if errors.Is(err, store.ErrNotFound) {
		if userID == req.UserID {
			return nil, notLinkedText, nil
		}
		return nil, otherNotLinkedText, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading identity: %w", err)
	}
	return id, "", nil
}
