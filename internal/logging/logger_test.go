package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetBeforeInitializeIsNop(t *testing.T) {
	Replace(zap.NewNop(), nil)
	l := Get(CategoryInjector)
	if l == nil {
		t.Fatal("expected a logger, got nil")
	}
	// Must not panic.
	l.Info("silent")
}

func TestCategoryFilter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Replace(zap.New(core), map[string]bool{"browser": false})
	defer Replace(zap.NewNop(), nil)

	Get(CategoryBrowser).Info("dropped")
	Get(CategoryInjector).Info("kept")

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.LoggerName != "injector" {
		t.Errorf("expected logger name 'injector', got %q", entry.LoggerName)
	}
	if entry.Message != "kept" {
		t.Errorf("expected message 'kept', got %q", entry.Message)
	}
}

func TestGetCachesPerCategory(t *testing.T) {
	core, _ := observer.New(zap.InfoLevel)
	Replace(zap.New(core), nil)
	defer Replace(zap.NewNop(), nil)

	if Get(CategoryStore) != Get(CategoryStore) {
		t.Error("expected the same logger instance for repeated Get calls")
	}
}

func TestInitializeWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "postpilot.log")

	if err := Initialize(Config{Level: "debug", Format: "json", File: path}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer Replace(zap.NewNop(), nil)

	BootWarn("chrome not found at %s", "/usr/bin/chrome")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "logging initialized") {
		t.Errorf("expected boot entry in log, got: %s", content)
	}
	if !strings.Contains(content, "chrome not found at /usr/bin/chrome") {
		t.Errorf("expected BootWarn entry in log, got: %s", content)
	}
}

func TestInitializeRejectsBadLevel(t *testing.T) {
	if err := Initialize(Config{Level: "chatty"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestTimerThreshold(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Replace(zap.New(core), nil)
	defer Replace(zap.NewNop(), nil)

	timer := StartTimer(CategoryCompose, "generate")
	time.Sleep(5 * time.Millisecond)
	timer.StopWithThreshold(time.Millisecond)

	if logs.FilterMessage("slow operation").Len() != 1 {
		t.Fatalf("expected one slow operation entry, got %v", logs.All())
	}
}
