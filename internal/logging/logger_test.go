package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, cats map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	setRoot(zap.New(core), cats)
	t.Cleanup(func() { setRoot(zap.NewNop(), nil) })
	return logs
}

func TestCategoryFieldAttached(t *testing.T) {
	logs := observe(t, nil)

	Tools("executed %s", "fetch_url")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Message != "executed fetch_url" {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
	if got := entries[0].ContextMap()["category"]; got != "tools" {
		t.Errorf("category = %v, want tools", got)
	}
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t, map[string]bool{"browser": false})

	Browser("launching")
	Engine("running")

	if logs.Len() != 1 {
		t.Fatalf("expected only the engine entry, got %d", logs.Len())
	}
	if !IsCategoryEnabled(CategoryEngine) {
		t.Error("categories missing from the map should be enabled")
	}
	if IsCategoryEnabled(CategoryBrowser) {
		t.Error("browser should be disabled")
	}
}

func TestLevelsRouted(t *testing.T) {
	logs := observe(t, nil)

	l := Get(CategoryEngine)
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	entries := logs.All()
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, want[i])
		}
	}
}

func TestWithAddsFields(t *testing.T) {
	logs := observe(t, nil)

	Get(CategoryEngine).With("audit_id", "abc").Info("done")

	if got := logs.All()[0].ContextMap()["audit_id"]; got != "abc" {
		t.Errorf("audit_id = %v", got)
	}
}

func TestTimerThreshold(t *testing.T) {
	logs := observe(t, nil)

	timer := StartTimer(CategoryTools, "slow op")
	time.Sleep(5 * time.Millisecond)
	timer.StopWithThreshold(time.Millisecond)

	entries := logs.FilterLevelExact(zapcore.WarnLevel).All()
	if len(entries) != 1 || !strings.Contains(entries[0].Message, "slow op took") {
		t.Fatalf("expected threshold warning, got %+v", logs.All())
	}
}

func TestInitializeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "allycheck.log")
	if err := Initialize(Options{Level: "debug", Format: "json", OutputFile: path}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { setRoot(zap.NewNop(), nil) })

	Boot("hello %d", 42)
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello 42") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestInitializeRejectsBadLevel(t *testing.T) {
	if err := Initialize(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestConcurrentGet(t *testing.T) {
	observe(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Get(CategoryAPI).Debug("ping")
		}()
	}
	wg.Wait()

	if Get(CategoryAPI) != Get(CategoryAPI) {
		t.Error("Get should return a cached logger")
	}
}
