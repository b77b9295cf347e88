package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	writerMu  sync.Mutex
	logWriter *lumberjack.Logger
)

// ConfigureOutput switches logging between stdout and a rotating file under
// dir/logs. Passing an empty dir with toFile=true rotates in ./logs.
func ConfigureOutput(toFile bool, dir string) error {
	writerMu.Lock()
	defer writerMu.Unlock()

	if toFile {
		logDir := "logs"
		if dir != "" {
			logDir = filepath.Join(dir, "logs")
		}
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("logging: failed to create log directory: %w", err)
		}
		if logWriter != nil {
			_ = logWriter.Close()
		}
		logWriter = &lumberjack.Logger{
			Filename: filepath.Join(logDir, "gemini-wire.log"),
			MaxSize:  10,
		}
		SetOutput(logWriter)
		return nil
	}

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	SetOutput(os.Stdout)
	return nil
}

// Close flushes and releases any file output. Safe to call when logging to stdout.
func Close() {
	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
}

// ApplyDebug sets the level from a config debug flag.
func ApplyDebug(debug bool) {
	if debug {
		SetLevel(slog.LevelDebug)
		return
	}
	SetLevel(slog.LevelInfo)
}
