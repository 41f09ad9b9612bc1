package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bakkerme/digestbot/internal/core"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Nvidia AI chip breakthrough</title>
      <link>https://example.com/a</link>
      <pubDate>Mon, 04 Mar 2024 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Unrelated sports recap</title>
      <link>https://example.com/b</link>
    </item>
  </channel>
</rss>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testFeed)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func clearDigestEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DIGEST_CONFIG", "DIGEST_FEEDS", "DIGEST_KEYWORDS", "DIGEST_WEBHOOK_URL", "DIGEST_CACHE_FILE",
		"DIGEST_DRY_RUN", "DIGEST_HISTORY_DIR", "DIGEST_LISTEN_ADDR", "MAX_POSTS_PER_RUN", "QUIET_CUTOFF_HOUR", "OTEL_ENABLED", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "digestbot.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestExecuteVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "digestbot dev") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRunWithConfigDocument(t *testing.T) {
	clearDigestEnv(t)
	srv := newFeedServer(t)
	dir := t.TempDir()
	cache := filepath.Join(dir, "cache.json")
	history := filepath.Join(dir, "history")
	cfg := writeConfig(t, dir, fmt.Sprintf(`
topics:
  - name: ai
    feeds: ["%s/feed.xml"]
    keywords: [ai, chip]
    sink:
      dry_run: true
    store:
      path: %s
`, srv.URL, cache))

	out, err := execute(t, "run", "--config", cfg, "--history-dir", history)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "ai: fetched=2 matched=1 published=1") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	data, err := os.ReadFile(cache)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if !strings.Contains(string(data), "https://example.com/a") || strings.Contains(string(data), "https://example.com/b") {
		t.Fatalf("unexpected cache contents: %s", data)
	}
	if entries, err := os.ReadDir(filepath.Join(history, "ai")); err != nil || len(entries) != 1 {
		t.Fatalf("expected one history snapshot, got %v, %v", entries, err)
	}

	out, err = execute(t, "run", "--config", cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.Contains(out, "ai: fetched=2 matched=0 published=0") {
		t.Fatalf("second run should publish nothing:\n%s", out)
	}
}

func TestRunEnvOnlyMode(t *testing.T) {
	clearDigestEnv(t)
	srv := newFeedServer(t)
	cache := filepath.Join(t.TempDir(), ".digest_cache.json")
	t.Setenv("DIGEST_FEEDS", srv.URL+"/feed.xml")
	t.Setenv("DIGEST_KEYWORDS", "sports")
	t.Setenv("DIGEST_CACHE_FILE", cache)
	t.Setenv("DIGEST_DRY_RUN", "true")

	out, err := execute(t, "run")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "default: fetched=2 matched=1 published=1") || !strings.Contains(out, "+ https://example.com/b") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRunWithoutWebhookIsConfigurationError(t *testing.T) {
	clearDigestEnv(t)
	srv := newFeedServer(t)
	t.Setenv("DIGEST_FEEDS", srv.URL+"/feed.xml")
	t.Setenv("DIGEST_CACHE_FILE", filepath.Join(t.TempDir(), "cache.json"))

	_, err := execute(t, "run")
	var cfgErr *core.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if ExitCode(err) != 2 {
		t.Fatalf("exit code = %d, want 2", ExitCode(err))
	}
}

func TestMissingExplicitConfigFails(t *testing.T) {
	clearDigestEnv(t)
	_, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestValidateReportsTopics(t *testing.T) {
	clearDigestEnv(t)
	dir := t.TempDir()
	cfg := writeConfig(t, dir, fmt.Sprintf(`
topics:
  - name: ai
    feeds: ["https://example.com/ai.xml"]
    schedule:
      cron: "0 * * * *"
    sink:
      dry_run: true
    store:
      path: %s
`, filepath.Join(dir, "ai.json")))

	out, err := execute(t, "validate", "--config", cfg)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "  next run: ") {
		t.Fatalf("expected next run for scheduled topic:\n%s", out)
	}
	if !strings.Contains(out, `ai: feeds=1 sink=dry-run schedule="0 * * * *" status=ok`) {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestTestPostDoesNotTouchSeenSet(t *testing.T) {
	clearDigestEnv(t)
	dir := t.TempDir()
	cache := filepath.Join(dir, "ai.json")
	cfg := writeConfig(t, dir, fmt.Sprintf(`
topics:
  - name: ai
    feeds: ["https://example.com/ai.xml"]
    captions: ["Test caption"]
    sink:
      dry_run: true
    store:
      path: %s
`, cache))

	out, err := execute(t, "test-post", "ai", "--config", cfg)
	if err != nil {
		t.Fatalf("test-post: %v", err)
	}
	if !strings.Contains(out, "ai: test post sent via dry-run") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(cache); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("test-post should not write the seen set, stat err = %v", err)
	}

	if _, err := execute(t, "test-post", "crypto", "--config", cfg); ExitCode(err) != 2 {
		t.Fatalf("unknown topic should be a configuration error, got %v", err)
	}
}

func TestDaemonRequiresSchedule(t *testing.T) {
	clearDigestEnv(t)
	dir := t.TempDir()
	cfg := writeConfig(t, dir, fmt.Sprintf(`
topics:
  - name: ai
    feeds: ["https://example.com/ai.xml"]
    sink:
      dry_run: true
    store:
      path: %s
`, filepath.Join(dir, "ai.json")))

	if _, err := execute(t, "daemon", "--config", cfg); err == nil || !strings.Contains(err.Error(), "no topic has a schedule") {
		t.Fatalf("expected schedule error, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("boom"), 1},
		{&core.ConfigurationError{Reason: "x"}, 2},
		{fmt.Errorf("topic ai: %w", &core.StoreSaveError{Err: errors.New("disk")}), 3},
		{errors.Join(errors.New("other"), &core.StoreSaveError{Err: errors.New("disk")}), 3},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
