//go:build integration

package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func buildBinary(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "slackfm_test")
	buildCmd := exec.Command("go", "build", "-o", bin, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}
	return bin
}

func testEnv(home, db string) []string {
	return append(os.Environ(),
		"HOME="+home,
		"SLACKFM_DATABASE_PATH="+db,
		"SLACKFM_LASTFM_API_KEY=test_key",
		"SLACKFM_LASTFM_API_SECRET=test_secret",
		"SLACKFM_LASTFM_CALLBACK_URL=http://127.0.0.1:3000/lastfm/callback",
	)
}

// TestOperatorCommands runs the offline subcommands against a fresh database.
func TestOperatorCommands(t *testing.T) {
	bin := buildBinary(t)
	home := t.TempDir()
	db := filepath.Join(home, "slackfm.db")
	env := testEnv(home, db)

	run := func(args ...string) string {
		t.Helper()
		cmd := exec.Command(bin, args...)
		cmd.Env = env
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("slackfm %s: %v\n%s", strings.Join(args, " "), err, out)
		}
		return string(out)
	}

	if out := run("link", "--sweep"); !strings.Contains(out, "Removed 0 expired link request(s)") {
		t.Errorf("sweep output = %q", out)
	}
	if _, err := os.Stat(db); err != nil {
		t.Errorf("database not created: %v", err)
	}

	out := run("link", "--user", "U1", "--workspace", "T1")
	if !strings.Contains(out, "https://www.last.fm/api/auth") || !strings.Contains(out, "api_key=test_key") {
		t.Errorf("link output = %q", out)
	}

	if out := run("users", "--workspace", "T1"); !strings.Contains(out, "No linked users.") {
		t.Errorf("users output = %q", out)
	}
	if out := run("crowns", "--workspace", "T1"); !strings.Contains(out, "No crowns yet.") {
		t.Errorf("crowns output = %q", out)
	}
}

// TestServeRejectsIncompleteConfig checks serve fails fast without Slack
// tokens instead of starting half configured.
func TestServeRejectsIncompleteConfig(t *testing.T) {
	bin := buildBinary(t)
	home := t.TempDir()

	cmd := exec.Command(bin, "serve")
	cmd.Env = testEnv(home, filepath.Join(home, "slackfm.db"))
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("serve succeeded without Slack tokens:\n%s", out)
	}
	if !strings.Contains(string(out), "slack.bot_token is required") {
		t.Errorf("serve output = %q", out)
	}
}
