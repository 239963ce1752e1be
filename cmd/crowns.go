package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/slackfm/internal/config"
	"github.com/jfmyers9/slackfm/internal/store"
)

var (
	crownsWorkspace string
	crownsLimit     int
	crownsWidth     int
)

// crownsCmd represents the crowns command
var crownsCmd = &cobra.Command{
	Use:   "crowns",
	Short: "Print the crown standings of a workspace",
	Long: `Print the crown standings of a workspace from the database.

Columns are aligned by display width, so names with emoji or CJK
characters line up. Long names are truncated with "...".`,
	RunE: runCrowns,
}

// usersCmd represents the users command
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Print the linked users of a workspace",
	RunE:  runUsers,
}

func init() {
	rootCmd.AddCommand(crownsCmd)
	rootCmd.AddCommand(usersCmd)

	for _, c := range []*cobra.Command{crownsCmd, usersCmd} {
		c.Flags().StringVar(&crownsWorkspace, "workspace", "", "Slack workspace (team) ID")
		c.Flags().IntVarP(&crownsWidth, "width", "w", 24, "Name column width")
		_ = c.MarkFlagRequired("workspace")
	}
	crownsCmd.Flags().IntVarP(&crownsLimit, "limit", "n", 10, "Number of rows (0 for all)")
}

func openStore() (*store.Store, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return store.Open(cfg.Database.Path)
}

func runCrowns(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.CrownCounts(ctx, crownsWorkspace)
	if err != nil {
		return err
	}
	if crownsLimit > 0 && len(counts) > crownsLimit {
		counts = counts[:crownsLimit]
	}

	writeCrownTable(cmd.OutOrStdout(), counts, crownsWidth)
	return nil
}

func runUsers(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ids, err := db.ListIdentities(ctx, crownsWorkspace)
	if err != nil {
		return err
	}

	writeUserTable(cmd.OutOrStdout(), ids, crownsWidth)
	return nil
}

func writeCrownTable(w io.Writer, counts []store.CrownCount, width int) {
	if len(counts) == 0 {
		fmt.Fprintln(w, "No crowns yet.")
		return
	}
	fmt.Fprintf(w, "%4s  %s  %s\n", "#", padToWidth("USER", width), "CROWNS")
	for i, c := range counts {
		fmt.Fprintf(w, "%4d  %s  %d\n", i+1, padToWidth(c.UserID, width), c.Crowns)
	}
}

func writeUserTable(w io.Writer, ids []store.Identity, width int) {
	if len(ids) == 0 {
		fmt.Fprintln(w, "No linked users.")
		return
	}
	fmt.Fprintf(w, "%s  %s  %s\n", padToWidth("USER", width), padToWidth("LAST.FM", width), "LINKED")
	for _, id := range ids {
		fmt.Fprintf(w, "%s  %s  %s\n",
			padToWidth(id.UserID, width),
			padToWidth(id.LastFMUsername, width),
			id.LinkedAt.Format(time.DateOnly))
	}
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	const ellipsis = "..."
	if runewidth.StringWidth(text) > width {
		if width <= len(ellipsis) {
			return runewidth.Truncate(ellipsis, width, "")
		}
		text = runewidth.Truncate(text, width-len(ellipsis), "") + ellipsis
	}

	if pad := width - runewidth.StringWidth(text); pad > 0 {
		text += strings.Repeat(" ", pad)
	}
	return text
}
