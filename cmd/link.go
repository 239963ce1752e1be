package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/slackfm/internal/config"
	"github.com/jfmyers9/slackfm/internal/link"
	"github.com/jfmyers9/slackfm/internal/store"
	"github.com/jfmyers9/slackfm/pkg/lastfm"
)

var (
	linkUser      string
	linkWorkspace string
	linkSweep     bool
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Issue a Last.fm link URL for a Slack user",
	Long: `Issue a single-use Last.fm authorization URL on behalf of a Slack user.

This does the same as the /linklastfm command and is useful when a user
cannot run slash commands. The URL expires after the configured link TTL
and the running server completes the link when it is visited.

With --sweep, expired link requests are removed instead.`,
	RunE: runLink,
}

func init() {
	rootCmd.AddCommand(linkCmd)

	linkCmd.Flags().StringVar(&linkUser, "user", "", "Slack user ID (e.g. U0123ABCD)")
	linkCmd.Flags().StringVar(&linkWorkspace, "workspace", "", "Slack workspace (team) ID (e.g. T0123ABCD)")
	linkCmd.Flags().BoolVar(&linkSweep, "sweep", false, "Remove expired link requests and exit")
}

func runLink(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := lastfm.NewClient(lastfm.Config{
		APIKey:    cfg.LastFM.APIKey,
		APISecret: cfg.LastFM.APISecret,
	})
	if err != nil {
		return fmt.Errorf("failed to create Last.fm client: %w", err)
	}

	svc, err := link.NewService(db, db, client.Auth(), link.Options{
		CallbackURL: cfg.LastFM.CallbackURL,
		TTL:         cfg.Link.TTL,
		Logger:      setupLogger(logFile, logLevel),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if linkSweep {
		n, err := svc.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("failed to sweep link states: %w", err)
		}
		fmt.Fprintf(out, "Removed %d expired link request(s)\n", n)
		return nil
	}

	if linkUser == "" || linkWorkspace == "" {
		return fmt.Errorf("--user and --workspace are required")
	}

	initiation, err := svc.Initiate(ctx, linkUser, linkWorkspace)
	if err != nil {
		return err
	}

	if initiation.Existing != nil {
		fmt.Fprintf(out, "%s is currently linked to %s; visiting the URL re-links.\n",
			linkUser, initiation.Existing.LastFMUsername)
	}
	fmt.Fprintf(out, "Authorization URL (valid for %s, single use):\n\n  %s\n",
		svc.TTL(), initiation.AuthorizationURL)
	return nil
}
