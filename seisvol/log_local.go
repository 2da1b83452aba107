package seisvol

import (
	"fmt"
	"log"
	"sync"

	"github.com/natefinch/lumberjack"
)

type stdLogger struct {
	mu sync.Mutex
	*lumberjack.Logger
}

var logger = &stdLogger{}

// LogConfig is the [logging] section of the server TOML configuration.
type LogConfig struct {
	Logfile string
	MaxSize int `toml:"max_log_size"`
	MaxAge  int `toml:"max_log_age"`
}

// SetLogger creates a logger that saves to a rotating log file.
func (c *LogConfig) SetLogger() {
	if c == nil || c.Logfile == "" {
		Infof("Sending log messages to stdout since no log file specified.\n")
		return
	}
	fmt.Printf("Sending log messages to: %s\n", c.Logfile)
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	logger.mu.Lock()
	log.SetOutput(l)
	logger.Logger = l
	logger.mu.Unlock()
}

// --- Logger implementation ----

func (slog *stdLogger) Debugf(format string, args ...interface{}) {
	log.Printf("   DEBUG "+format, args...)
}

func (slog *stdLogger) Infof(format string, args ...interface{}) {
	log.Printf("    INFO "+format, args...)
}

func (slog *stdLogger) Warningf(format string, args ...interface{}) {
	log.Printf(" WARNING "+format, args...)
}

func (slog *stdLogger) Errorf(format string, args ...interface{}) {
	log.Printf("   ERROR "+format, args...)
}

func (slog *stdLogger) Criticalf(format string, args ...interface{}) {
	log.Printf("CRITICAL "+format, args...)
}

func (slog *stdLogger) Shutdown() {
	slog.mu.Lock()
	defer slog.mu.Unlock()
	if slog.Logger != nil {
		log.Printf("Closing log file...\n")
		slog.Close()
		slog.Logger = nil
	}
}
