package slackbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

func (b *Bot) handleCrownboard(ctx context.Context, req *request, respond Responder) error {
	counts, err := b.deps.Crowns.CrownCounts(ctx, req.TeamID)
	if err != nil {
		return fmt.Errorf("loading crown counts: %w", err)
	}
	if len(counts) == 0 {
		return respond(ctx, ephemeral("⚠️ No crowns found."))
	}

	blocks := []slack.Block{
		section(":crown: *Top 10 Crown Holders*"),
		slack.NewDividerBlock(),
	}
	rank := 0
	for i, c := range counts {
		if c.UserID == req.UserID {
			rank = i + 1
		}
		if i < topN {
			blocks = append(blocks, section(fmt.Sprintf("*%d. %s* — %s", i+1, b.names.Name(ctx, c.UserID), plural(c.Crowns, "crown"))))
		}
	}
	if rank > topN {
		blocks = append(blocks,
			slack.NewDividerBlock(),
			section(fmt.Sprintf("Your rank: *%d* — %s", rank, plural(counts[rank-1].Crowns, "crown"))),
		)
	}

	return respond(ctx, blocksMessage(slack.ResponseTypeInChannel, "Top 10 Crown Holders", blocks...))
}

// handleLinkedCount reports linked users. Counts are cached per workspace
// for thirty minutes.
func (b *Bot) handleLinkedCount(ctx context.Context, req *request, respond Responder) error {
	count, ok := b.linkedCount.Get(req.TeamID)
	if !ok {
		var err error
		count, err = b.deps.Identities.CountIdentities(ctx, req.TeamID)
		if err != nil {
			return fmt.Errorf("counting identities: %w", err)
		}
		b.linkedCount.Add(req.TeamID, count)
	}

	verb := "users have"
	if count == 1 {
		verb = "user has"
	}
	text := fmt.Sprintf("📊 *%d* %s linked their last.fm accounts in this workspace.", count, verb)
	return respond(ctx, blocksMessage(slack.ResponseTypeInChannel, text, section(text)))
}

func (b *Bot) handlePing(ctx context.Context, req *request, respond Responder) error {
	latency := b.now().Sub(req.received).Milliseconds()
	return respond(ctx, ephemeral(fmt.Sprintf("🏓 Pong! (internal latency: %dms)", latency)))
}

func (b *Bot) handleUptime(ctx context.Context, req *request, respond Responder) error {
	return respond(ctx, ephemeral(b.uptime()))
}

func (b *Bot) uptime() string {
	d := b.now().Sub(b.started)
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	return fmt.Sprintf(":clock1: Uptime: %dd %dh %dm %ds", days, int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func (b *Bot) handleAbout(ctx context.Context, req *request, respond Responder) error {
	text := "*slack.fm* – A Last.fm bot for Slack :musical_note:\n\n" +
		"• Link your Last.fm account and show off your music stats.\n" +
		"• View your or others' now playing track, profile, top albums and songs.\n" +
		"• See who knows an artist best and collect crowns.\n\n" +
		b.uptime() + "\n\n" +
		"_Use `/slackfmcommands` for all commands._"
	return respond(ctx, ephemeral(text))
}

func (b *Bot) handleHelp(ctx context.Context, req *request, respond Responder) error {
	var sb strings.Builder
	sb.WriteString("*🎵 slack.fm Commands*\n")
	for _, h := range help {
		fmt.Fprintf(&sb, "\n• `%s` - %s", h.command, h.usage)
	}
	return respond(ctx, ephemeral(sb.String()))
}
