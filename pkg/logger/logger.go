package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	globalLogger = zerolog.Nop()
	logFile      *os.File
	console      io.Writer
	level        = zerolog.InfoLevel
	mu           sync.Mutex
)

// Init initializes the global logger with the specified log file path.
// An empty path disables file output.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = f
	}

	rebuild()
	return nil
}

// SetConsole mirrors log output to w in human-readable form. Nil disables it.
func SetConsole(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if w == nil {
		console = nil
	} else {
		console = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	rebuild()
}

// SetVerbose enables debug-level messages.
func SetVerbose(verbose bool) {
	mu.Lock()
	defer mu.Unlock()

	if verbose {
		level = zerolog.DebugLevel
	} else {
		level = zerolog.InfoLevel
	}
	rebuild()
}

// rebuild must be called with mu held.
func rebuild() {
	var writers []io.Writer
	if logFile != nil {
		writers = append(writers, logFile)
	}
	if console != nil {
		writers = append(writers, console)
	}
	if len(writers) == 0 {
		globalLogger = zerolog.Nop()
		return
	}
	globalLogger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	rebuild()
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	globalLogger.Info().Msgf(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	globalLogger.Debug().Msgf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	globalLogger.Error().Msgf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	globalLogger.Warn().Msgf(format, v...)
}
