package logger

import (
	"fmt"
	"io"
	"log"
	"sync"

	"komun/internal/client/events"
)

// Logger wraps standard logging with event bus integration for the chat view.
type Logger struct {
	mu          sync.RWMutex
	eventBus    *events.Bus
	interactive bool
	verbose     bool
}

var (
	defaultLogger  = &Logger{}
	originalWriter io.Writer
)

// SetEventBus sets the event bus for interactive mode logging.
func SetEventBus(bus *events.Bus) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.eventBus = bus
}

// SetInteractive enables or disables interactive mode.
// In interactive mode, logs are sent to the event bus instead of stderr
// so they do not corrupt a full-screen view.
func SetInteractive(enabled bool) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	if defaultLogger.interactive == enabled {
		return
	}
	defaultLogger.interactive = enabled

	if enabled {
		originalWriter = log.Writer()
		log.SetOutput(io.Discard)
	} else if originalWriter != nil {
		log.SetOutput(originalWriter)
	}
}

// SetVerbose enables Debug output.
func SetVerbose(enabled bool) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.verbose = enabled
}

// Debug logs a diagnostic message. Dropped unless verbose.
func Debug(format string, args ...interface{}) {
	defaultLogger.log("debug", format, args...)
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	defaultLogger.log("info", format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	defaultLogger.log("warn", format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	defaultLogger.log("error", format, args...)
}

func (l *Logger) log(level, format string, args ...interface{}) {
	l.mu.RLock()
	interactive := l.interactive
	verbose := l.verbose
	bus := l.eventBus
	l.mu.RUnlock()

	if level == "debug" && !verbose {
		return
	}
	message := fmt.Sprintf(format, args...)

	if interactive && bus != nil {
		bus.PublishLog(level, message)
		return
	}
	if level == "info" {
		log.Print(message)
		return
	}
	log.Printf("[%s] %s", level, message)
}
