package slackbot

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/jfmyers9/slackfm/internal/store"
)

// Notifier tells users by direct message that a link completed.
type Notifier struct {
	api SlackAPI
}

// NewNotifier creates a Notifier.
func NewNotifier(api SlackAPI) *Notifier {
	return &Notifier{api: api}
}

// NotifyLinked sends a DM to the newly linked user.
func (n *Notifier) NotifyLinked(ctx context.Context, id store.Identity) error {
	text := fmt.Sprintf("✅ Your Last.fm account *%s* is now linked.", id.LastFMUsername)
	_, _, err := n.api.PostMessageContext(ctx, id.UserID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(section(text)),
	)
	if err != nil {
		return fmt.Errorf("posting link confirmation: %w", err)
	}
	return nil
}
