package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"postpilot/internal/history"
	"postpilot/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinArgs(t *testing.T) {
	got := joinArgs([]string{"one", "two", "three"})
	if got != "one two three" {
		t.Fatalf("expected 'one two three', got '%s'", got)
	}
}

// writeConfig writes a config that keeps every file under dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "postpilot.yaml")
	body := fmt.Sprintf(`database:
  driver: sqlite
  path: %s
history:
  backend: sqlite
browser:
  session_store: %s
injector:
  poll_interval: 1ms
  max_attempts: 2
logging:
  level: error
`, filepath.Join(dir, "posts.db"), filepath.Join(dir, "sessions.json"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// execute runs the root command with fresh flag state and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("FREEPIK_API_KEY", "")
	t.Setenv("SERPER_API_KEY", "")
	t.Setenv("POSTPILOT_DB", "")

	injectSession, injectMatch, injectFile, injectOut = "", "", "", ""
	genTopic, genContext, genTone, genFormat, genEmoji, genRefine = "", "", "", "", "", ""
	genKind = "full"
	genImage, genSave, genRaw = false, false, false

	base := []string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}
	rootCmd.SetArgs(append(base, args...))

	var err error
	out := captureOutput(t, func() {
		err = rootCmd.ExecuteContext(context.Background())
	})
	return out, err
}

const composeHTML = `<html><body>
<div class="ql-editor" contenteditable="true"><p><br></p></div>
<div class="feed-shared-update-v2"><div class="feed-shared-update-v2__description-wrapper">We rebuilt our hiring loop around work samples and the results surprised us.</div></div>
</body></html>`

func TestInjectIntoFile(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "feed.html")
	out := filepath.Join(dir, "out.html")
	require.NoError(t, os.WriteFile(page, []byte(composeHTML), 0o644))

	output, err := execute(t, "--config", writeConfig(t, dir), "inject", "--file", page, "--out", out, "Hello", "<world>")
	require.NoError(t, err, output)
	assert.Contains(t, output, "Post written to the editor.")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<p>Hello &lt;world&gt;</p>")
}

func TestInjectIntoFile_NoEditor(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "empty.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><body><h1>Jobs</h1></body></html>`), 0o644))

	output, err := execute(t, "--config", writeConfig(t, dir), "inject", "--file", page, "--out", filepath.Join(dir, "out.html"), "Hello")
	assert.Error(t, err)
	assert.Contains(t, output, "Open LinkedIn first!")
}

func TestContextFromFile(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "feed.html")
	require.NoError(t, os.WriteFile(page, []byte(composeHTML), 0o644))

	output, err := execute(t, "--config", writeConfig(t, dir), "context", "--file", page)
	require.NoError(t, err, output)
	assert.Contains(t, output, "We rebuilt our hiring loop around work samples")
}

func TestGenerateWithoutKey(t *testing.T) {
	dir := t.TempDir()
	output, err := execute(t, "--config", writeConfig(t, dir), "generate", "--topic", "AI", "agents")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Gemini API key not configured")
	assert.NotContains(t, output, "Readability")
}

func TestHistoryListAndClear(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	db, err := store.Open(store.DriverPureGo, filepath.Join(dir, "posts.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.History().Add(context.Background(),
		history.NewEntry("body", "Quarterly planning retro", time.Now())))
	require.NoError(t, db.Close())

	output, err := execute(t, "--config", cfgPath, "history", "list")
	require.NoError(t, err, output)
	assert.Contains(t, output, "Quarterly planning retro...")

	output, err = execute(t, "--config", cfgPath, "history", "clear")
	require.NoError(t, err, output)
	assert.Contains(t, output, "History cleared.")

	output, err = execute(t, "--config", cfgPath, "history", "list")
	require.NoError(t, err, output)
	assert.Contains(t, output, "No history yet.")
}

func TestPostsList(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	output, err := execute(t, "--config", cfgPath, "posts")
	require.NoError(t, err, output)
	assert.Contains(t, output, "No saved posts.")

	db, err := store.Open(store.DriverPureGo, filepath.Join(dir, "posts.db"), nil)
	require.NoError(t, err)
	_, err = db.SavePost(context.Background(), store.NewPost{Topic: "Hiring", Content: "Work samples beat puzzles."})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	output, err = execute(t, "--config", cfgPath, "posts")
	require.NoError(t, err, output)
	assert.Contains(t, output, "Hiring")
	assert.Contains(t, output, "Work samples beat puzzles.")
}

func TestInvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compose:\n  format: essay\n"), 0o644))

	_, err := execute(t, "--config", path, "posts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid compose format")
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var outBuf, errBuf bytes.Buffer
		finished := make(chan struct{})
		go func() {
			_, _ = io.Copy(&errBuf, rErr)
			close(finished)
		}()
		_, _ = io.Copy(&outBuf, rOut)
		<-finished
		done <- outBuf.String() + errBuf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return strings.TrimSpace(<-done)
}

func TestBrowserCommands_NoBrowser(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	t.Setenv("CHROME_DEBUGGER_URL", "")

	output, err := execute(t, "--config", cfgPath, "browser", "list")
	require.NoError(t, err, output)
	assert.Contains(t, output, "No browser running.")

	_, err = execute(t, "--config", cfgPath, "browser", "attach", "T1")
	require.ErrorIs(t, err, errNoBrowser)

	_, err = execute(t, "--config", cfgPath, "browser", "session", "https://www.linkedin.com/feed/")
	require.ErrorIs(t, err, errNoBrowser)
}
