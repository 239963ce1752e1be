package slackbot

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/jfmyers9/slackfm/internal/store"
)

const notLinkedText = "⚠️ You haven't linked your Last.fm profile. Use `/linklastfm` first!"

// handleLink issues a single-use authorization link.
func (b *Bot) handleLink(ctx context.Context, req *request, respond Responder) error {
	initiation, err := b.deps.Links.Initiate(ctx, req.UserID, req.TeamID)
	if err != nil {
		return fmt.Errorf("initiating link: %w", err)
	}

	text := "Link your Last.fm account to use the who-knows commands."
	label := "🔗 Link Last.fm"
	if initiation.Existing != nil {
		text = fmt.Sprintf("You are already linked to last.fm account: *%s*", initiation.Existing.LastFMUsername)
		label = "🔁 Re-link Last.fm"
	}

	button := slack.NewButtonBlockElement(actionLinkLastFM, "", slack.NewTextBlockObject(slack.PlainTextType, label, true, false))
	button.URL = initiation.AuthorizationURL
	button.Style = slack.StylePrimary

	return respond(ctx, blocksMessage(slack.ResponseTypeEphemeral, text,
		section(text),
		slack.NewActionBlock("", button),
		slack.NewContextBlock("", mrkdwn(fmt.Sprintf("This link works once and expires in %d minutes.", int(b.deps.Links.TTL().Minutes())))),
	))
}

// handleUnlink asks for confirmation before removing a link.
func (b *Bot) handleUnlink(ctx context.Context, req *request, respond Responder) error {
	id, err := b.deps.Identities.GetIdentity(ctx, req.UserID, req.TeamID)
	if errors.Is(err, store.ErrNotFound) {
		return respond(ctx, ephemeral("❌ You are not linked to any Last.fm account."))
	}
	if err != nil {
		return fmt.Errorf("loading identity: %w", err)
	}

	text := fmt.Sprintf("⚠️ Are you sure you want to unlink your Last.fm account *%s*?", id.LastFMUsername)
	button := slack.NewButtonBlockElement(actionConfirmUnlink, req.UserID, slack.NewTextBlockObject(slack.PlainTextType, "Unlink", false, false))
	button.Style = slack.StyleDanger

	return respond(ctx, blocksMessage(slack.ResponseTypeEphemeral, text,
		slack.NewSectionBlock(mrkdwn(text), nil, slack.NewAccessory(button)),
	))
}

// confirmUnlink removes the clicking user's link in the workspace the click
// came from. The button value is not trusted.
func (b *Bot) confirmUnlink(ctx context.Context, callback slack.InteractionCallback, respond Responder) error {
	removed, err := b.deps.Links.Unlink(ctx, callback.User.ID, callback.Team.ID)
	if err != nil {
		return err
	}

	msg := ephemeral("✅ Your Last.fm account has been successfully unlinked.")
	if !removed {
		msg = ephemeral("❌ You are not linked to any Last.fm account.")
	}
	msg.ReplaceOriginal = true
	return respond(ctx, msg)
}
