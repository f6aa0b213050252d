package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_Services(t *testing.T) {
	t.Run("API keys come from the environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "gm-key")
		t.Setenv("FREEPIK_API_KEY", "fp-key")
		t.Setenv("SERPER_API_KEY", "sp-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gm-key", cfg.LLM.APIKey)
		assert.Equal(t, "fp-key", cfg.Image.APIKey)
		assert.Equal(t, "sp-key", cfg.Trends.APIKey)
	})

	t.Run("empty variables leave file values alone", func(t *testing.T) {
		clearEnv(t)

		cfg := &Config{LLM: LLMConfig{APIKey: "from-file"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "from-file", cfg.LLM.APIKey)
	})

	t.Run("storage and browser endpoints", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POSTPILOT_DB", "/tmp/posts.db")
		t.Setenv("REDIS_ADDR", "redis:6379")
		t.Setenv("CHROME_DEBUGGER_URL", "ws://127.0.0.1:9222/devtools/browser/abc")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/posts.db", cfg.Database.Path)
		assert.Equal(t, "redis:6379", cfg.History.RedisAddr)
		assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Browser.DebuggerURL)
	})
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SERPER_API_KEY=dotenv-key\n"), 0644))

	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("SERPER_API_KEY") })

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.Trends.APIKey)
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "postpilot.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) {
			select {
			case changes <- c:
			default:
			}
		}, nil)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	updated := DefaultConfig()
	updated.Compose.Tone = "witty"
	require.NoError(t, updated.Save(path))

	// A truncating write can surface an intermediate empty file first.
	deadline := time.After(5 * time.Second)
	for seen := false; !seen; {
		select {
		case c := <-changes:
			seen = c.Compose.Tone == "witty"
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}

	cancel()
	require.NoError(t, <-done)
}
