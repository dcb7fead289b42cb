// Package logging provides categorized file-based logging for concierge.
// Each pipeline stage writes to its own log file under
// <workspace>/.concierge/logs/. Logging is a silent no-op until
// Configure is called with DebugMode enabled, so production runs leave
// no log files behind.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category identifies a pipeline stage or subsystem.
type Category string

const (
	CategoryBoot           Category = "boot"           // Startup, config load
	CategoryGateway        Category = "gateway"        // Generative model calls
	CategoryTranscript     Category = "transcript"     // Transcript normalization
	CategoryExtraction     Category = "extraction"     // Action extraction
	CategoryClassification Category = "classification" // Intent classification
	CategorySynthesis      Category = "synthesis"      // Worker synthesis
	CategoryRouting        Category = "routing"        // Template resolution and execution
	CategorySupervisor     Category = "supervisor"     // Run sequencing, correlation
	CategoryStore          Category = "store"          // Template and history stores
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Options controls logger behavior. Zero value disables all output.
type Options struct {
	// Workspace is the root directory; logs go to <Workspace>/.concierge/logs.
	Workspace string

	// DebugMode enables file logging. When false, all loggers are no-ops.
	DebugMode bool

	// Level is the minimum level written: "debug", "info", "warn", "error".
	// Empty defaults to "info".
	Level string

	// Categories filters which categories are written. Empty map enables all.
	Categories map[string]bool
}

// Logger writes messages for one category.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	opts     Options
	logsDir  string
	minLevel = LevelInfo
)

// Configure sets up the logging directory and level. Safe to call more
// than once; later calls reset the logger registry.
func Configure(o Options) error {
	mu.Lock()
	defer mu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
	opts = o

	switch o.Level {
	case "debug":
		minLevel = LevelDebug
	case "warn", "warning":
		minLevel = LevelWarn
	case "error":
		minLevel = LevelError
	default:
		minLevel = LevelInfo
	}

	if !o.DebugMode {
		logsDir = ""
		return nil
	}
	if o.Workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	logsDir = filepath.Join(o.Workspace, ".concierge", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	return nil
}

func categoryEnabled(category Category) bool {
	if !opts.DebugMode || logsDir == "" {
		return false
	}
	if len(opts.Categories) == 0 {
		return true
	}
	enabled, ok := opts.Categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. A disabled
// category yields a no-op logger.
func Get(category Category) *Logger {
	mu.RLock()
	if !categoryEnabled(category) {
		mu.RUnlock()
		return &Logger{category: category}
	}
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	path := filepath.Join(logsDir, fmt.Sprintf("%s.log", category))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", path, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		logger:   log.New(f, "", log.LstdFlags|log.Lmicroseconds),
		file:     f,
	}
	loggers[category] = l
	return l
}

// Close flushes and closes all open log files.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

func (l *Logger) write(level int, tag, format string, args ...interface{}) {
	if l == nil || l.logger == nil {
		return
	}
	mu.RLock()
	min := minLevel
	mu.RUnlock()
	if level < min {
		return
	}
	l.logger.Printf("[%s] %s", tag, fmt.Sprintf(format, args...))
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "INFO", format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "WARN", format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "ERROR", format, args...)
}

// Timer tracks the duration of one operation.
type Timer struct {
	category Category
	name     string
	start    time.Time
}

// StartTimer begins timing an operation for the given category.
func StartTimer(category Category, name string) *Timer {
	return &Timer{category: category, name: name, start: time.Now()}
}

// Stop logs the elapsed time. Operations over one second are logged at
// warn level so slow gateway calls stand out.
func (t *Timer) Stop() {
	if t == nil {
		return
	}
	elapsed := time.Since(t.start)
	l := Get(t.category)
	if elapsed > time.Second {
		l.Warn("%s took %v", t.name, elapsed)
		return
	}
	l.Debug("%s took %v", t.name, elapsed)
}

// Convenience helpers for the chattier categories.

// Gateway logs an info message to the gateway category.
func Gateway(format string, args ...interface{}) {
	Get(CategoryGateway).Info(format, args...)
}

// GatewayDebug logs a debug message to the gateway category.
func GatewayDebug(format string, args ...interface{}) {
	Get(CategoryGateway).Debug(format, args...)
}

// Supervisor logs an info message to the supervisor category.
func Supervisor(format string, args ...interface{}) {
	Get(CategorySupervisor).Info(format, args...)
}

// Routing logs an info message to the routing category.
func Routing(format string, args ...interface{}) {
	Get(CategoryRouting).Info(format, args...)
}
