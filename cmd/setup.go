package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/slackfm/internal/config"
	"github.com/jfmyers9/slackfm/pkg/lastfm"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write the slackfm config file",
	Long: `Interactively configure slackfm.

This command will prompt for:
1. The Slack bot token (xoxb-) and app-level token (xapp-) of your Slack app
2. Your Last.fm API key and shared secret
3. The public URL of the Last.fm callback, e.g. https://bot.example.com/lastfm/callback

The Last.fm credentials are checked against the API before the config is
saved to ~/.config/slackfm/config.yaml.

You can get Last.fm API credentials from: https://www.last.fm/api/account/create`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Fprintln(out, "slackfm setup")
	fmt.Fprintln(out, "=============")
	fmt.Fprintln(out)

	fields := []struct {
		label  string
		value  *string
		secret bool
	}{
		{"Slack bot token (xoxb-...)", &cfg.Slack.BotToken, true},
		{"Slack app token (xapp-...)", &cfg.Slack.AppToken, true},
		{"Last.fm API key", &cfg.LastFM.APIKey, false},
		{"Last.fm shared secret", &cfg.LastFM.APISecret, true},
		{"Last.fm callback URL", &cfg.LastFM.CallbackURL, false},
	}
	for _, f := range fields {
		v, err := prompt(reader, out, f.label, *f.value, f.secret)
		if err != nil {
			return err
		}
		*f.value = v
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration is incomplete:\n%w", err)
	}

	fmt.Fprintln(out, "\nChecking Last.fm credentials...")
	if err := checkLastFM(ctx, cfg); err != nil {
		return err
	}

	path, err := cfg.Save()
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(out, "\n✓ Last.fm credentials work\n")
	fmt.Fprintf(out, "✓ Config saved to %s\n", path)
	fmt.Fprintln(out, "\nYou can now use 'slackfm serve' to start the bot.")

	return nil
}

// prompt asks for a value. An empty answer keeps current.
func prompt(r *bufio.Reader, w io.Writer, label, current string, secret bool) (string, error) {
	if current != "" {
		shown := current
		if secret {
			shown = mask(current)
		}
		fmt.Fprintf(w, "%s [%s]: ", label, shown)
	} else {
		fmt.Fprintf(w, "%s: ", label)
	}

	answer, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}

	if answer = strings.TrimSpace(answer); answer != "" {
		return answer, nil
	}
	if current == "" && err == io.EOF {
		return "", fmt.Errorf("failed to read %s: %w", label, io.ErrUnexpectedEOF)
	}
	return current, nil
}

// mask hides all but the last four characters.
func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// checkLastFM makes one API call to confirm the API key is valid.
func checkLastFM(ctx context.Context, cfg *config.Config) error {
	client, err := lastfm.NewClient(lastfm.Config{
		APIKey:     cfg.LastFM.APIKey,
		APISecret:  cfg.LastFM.APISecret,
		MaxRetries: 3,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := client.Artist().Search(ctx, "Cher", 1); err != nil {
		return fmt.Errorf("Last.fm rejected the API key: %w", err)
	}
	return nil
}
