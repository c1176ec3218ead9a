package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the rotating log file written inside the log directory.
const FileName = "jira-sync.log"

// Init points the global logger at stderr and a rotating file. Console output
// is colored only on a terminal so CI logs stay readable.
func Init(verbose bool) {
	// Init runs before config.Load, so LOGS_FOLDER may only be in the binary's .env.
	exePath, exeErr := os.Executable()
	if exeErr == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(exePath), ".env"))
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	fd := os.Stderr.Fd()
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)),
	}

	logDir := resolveDir(exePath, exeErr)
	fileWriter, err := rotatingFile(logDir)
	if err != nil {
		// A CI agent without a writable workspace should still get console logs.
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		log.Warn().Err(err).Str("path", logDir).Msg("File logging disabled")
		return
	}

	multi := zerolog.MultiLevelWriter(io.Writer(console), fileWriter)
	log.Logger = zerolog.New(multi).
		With().
		Timestamp().
		Logger()
}

func resolveDir(exePath string, exeErr error) string {
	if dir := os.Getenv("LOGS_FOLDER"); dir != "" {
		return dir
	}
	if dataPath := os.Getenv("DATA_PATH"); dataPath != "" {
		return filepath.Join(dataPath, "logs")
	}
	if exeErr == nil {
		return filepath.Join(filepath.Dir(exePath), "logs")
	}
	return "logs"
}

func rotatingFile(dir string) (io.Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	probe := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(probe, []byte("test"), 0644); err != nil {
		return nil, fmt.Errorf("log directory is not writable: %w", err)
	}
	_ = os.Remove(probe)

	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, FileName),
		MaxSize:    16, // megabytes
		MaxBackups: 8,
		MaxAge:     90, // days
		Compress:   true,
	}, nil
}
