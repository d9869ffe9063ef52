// Package logging provides categorized logging for allycheck backed by zap.
// Every subsystem logs through a Category; categories can be switched off
// individually in config. Until Initialize is called all loggers are no-ops.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup, config loading
	CategoryEngine     Category = "engine"     // Audit pipeline, conversation driver
	CategoryPerception Category = "perception" // Model provider calls
	CategoryTools      Category = "tools"      // Tool execution
	CategoryBrowser    Category = "browser"    // Headless browser lifecycle
	CategoryResearch   Category = "research"   // Fetching, reference docs, cache
	CategoryParser     Category = "parser"     // Response parsing strategies
	CategoryStore      Category = "store"      // Audit persistence
	CategoryAPI        Category = "api"        // HTTP API
	CategoryMCP        Category = "mcp"        // MCP tool bridge
)

// Options controls how Initialize builds the root logger. It mirrors
// config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string
	Format     string // "json" or "console"
	OutputFile string
	Categories map[string]bool
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex

	root       = zap.NewNop()
	categories map[string]bool
	rootMu     sync.RWMutex
)

// Initialize builds the process-wide zap logger. It may be called again
// (for example after a config reload); existing category loggers are rebuilt.
func Initialize(opts Options) error {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	var zcfg zap.Config
	if opts.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = level
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.OutputPaths = []string{"stderr"}
	if opts.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.OutputFile), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		zcfg.OutputPaths = append(zcfg.OutputPaths, opts.OutputFile)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	setRoot(logger, opts.Categories)
	return nil
}

// UseLogger installs an existing zap logger, mostly for tests (zaptest, observer).
func UseLogger(logger *zap.Logger) {
	setRoot(logger, nil)
}

func setRoot(logger *zap.Logger, cats map[string]bool) {
	rootMu.Lock()
	old := root
	root = logger
	categories = cats
	rootMu.Unlock()
	_ = old.Sync()

	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
}

// L returns the root structured logger.
func L() *zap.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// IsCategoryEnabled reports whether a category is switched on. Categories
// missing from the config map are enabled.
func IsCategoryEnabled(category Category) bool {
	rootMu.RLock()
	defer rootMu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, ok := categories[string(category)]
	return !ok || enabled
}

// Get returns the logger for a category.
func Get(category Category) *Logger {
	loggersMu.RLock()
	l, ok := loggers[category]
	loggersMu.RUnlock()
	if ok {
		return l
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	base := L()
	if !IsCategoryEnabled(category) {
		base = zap.NewNop()
	}
	l = &Logger{
		category: category,
		sugar:    base.With(zap.String("category", string(category))).Sugar(),
	}
	loggers[category] = l
	return l
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a logger carrying extra key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func Engine(format string, args ...interface{})      { Get(CategoryEngine).Info(format, args...) }
func EngineDebug(format string, args ...interface{}) { Get(CategoryEngine).Debug(format, args...) }
func EngineWarn(format string, args ...interface{})  { Get(CategoryEngine).Warn(format, args...) }
func EngineError(format string, args ...interface{}) { Get(CategoryEngine).Error(format, args...) }

func Perception(format string, args ...interface{}) { Get(CategoryPerception).Info(format, args...) }
func PerceptionDebug(format string, args ...interface{}) {
	Get(CategoryPerception).Debug(format, args...)
}
func PerceptionWarn(format string, args ...interface{}) {
	Get(CategoryPerception).Warn(format, args...)
}

func Tools(format string, args ...interface{})      { Get(CategoryTools).Info(format, args...) }
func ToolsDebug(format string, args ...interface{}) { Get(CategoryTools).Debug(format, args...) }
func ToolsWarn(format string, args ...interface{})  { Get(CategoryTools).Warn(format, args...) }
func ToolsError(format string, args ...interface{}) { Get(CategoryTools).Error(format, args...) }

func Browser(format string, args ...interface{})      { Get(CategoryBrowser).Info(format, args...) }
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }
func BrowserWarn(format string, args ...interface{})  { Get(CategoryBrowser).Warn(format, args...) }

func ResearchDebug(format string, args ...interface{}) { Get(CategoryResearch).Debug(format, args...) }
func ResearchWarn(format string, args ...interface{})  { Get(CategoryResearch).Warn(format, args...) }

func ParserDebug(format string, args ...interface{}) { Get(CategoryParser).Debug(format, args...) }

func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func StoreWarn(format string, args ...interface{})  { Get(CategoryStore).Warn(format, args...) }

func API(format string, args ...interface{})      { Get(CategoryAPI).Info(format, args...) }
func APIWarn(format string, args ...interface{})  { Get(CategoryAPI).Warn(format, args...) }
func APIError(format string, args ...interface{}) { Get(CategoryAPI).Error(format, args...) }

func MCP(format string, args ...interface{})     { Get(CategoryMCP).Info(format, args...) }
func MCPWarn(format string, args ...interface{}) { Get(CategoryMCP).Warn(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
