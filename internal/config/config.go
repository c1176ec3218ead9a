package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"jira-sync/internal/comment"
	"jira-sync/internal/jira"
	"jira-sync/internal/suite"
	"jira-sync/internal/workflow"
	"jira-sync/internal/zephyr"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Jira      jira.Config
	Zephyr    zephyr.Config
	Sync      suite.Options
	Workflow  *workflow.Workflow
	Renderer  *comment.Renderer
	DataPath  string
	LogDir    string
	JournalTo string
}

// Load loads the configuration from .env files and environment variables. The
// workflow and comment template are parsed here so a bad file fails the run
// before any test event is read.
func Load() (*AppConfig, error) {
	// 1. Binary directory first, so an installed tool carries its own settings
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	return FromEnv(exeDir)
}

// FromEnv builds the configuration from the process environment only.
func FromEnv(exeDir string) (*AppConfig, error) {
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}
	logDir := getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs"))

	delayMs, err := getEnvInt("JIRA_REQUEST_DELAY_MS", 0)
	if err != nil {
		return nil, err
	}
	concurrency, err := getEnvInt("SYNC_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	wf := workflow.Disabled()
	if getEnvBool("WORKFLOW_ACTIVE", true) {
		wf, err = workflow.Load(os.Getenv("WORKFLOW_FILE"))
		if err != nil {
			return nil, fmt.Errorf("loading workflow: %w", err)
		}
	}

	renderer, err := comment.NewRenderer(os.Getenv("COMMENT_TEMPLATE"))
	if err != nil {
		return nil, err
	}

	jiraURL := getEnv("JIRA_URL", "")
	cfg := &AppConfig{
		Jira: jira.Config{
			BaseURL:      jiraURL,
			XsrfToken:    getEnv("JIRA_XSRF_TOKEN", ""),
			SessionID:    getEnv("JIRA_SESSION_ID", ""),
			RememberMe:   getEnv("JIRA_REMEMBERME_COOKIE", ""),
			Token:        getEnv("JIRA_TOKEN", ""),
			RequestDelay: time.Duration(delayMs) * time.Millisecond,
		},
		Zephyr: zephyr.Config{
			BaseURL:   getEnv("ZEPHYR_URL", jiraURL),
			Token:     getEnv("JIRA_TOKEN", ""),
			SessionID: getEnv("JIRA_SESSION_ID", ""),
			Cycle:     getEnv("ZEPHYR_CYCLE", ""),
		},
		Sync: suite.Options{
			DefaultProject: getEnv("JIRA_PROJECT", ""),
			JiraURL:        jiraURL,
			PublicURL:      getEnv("REPORT_PUBLIC_URL", ""),
			BuildID:        getEnv("BUILD_ID", ""),
			SkipUpdates:    getEnvBool("SKIP_JIRA_UPDATES", false),
			ZephyrEnabled:  getEnvBool("ZEPHYR_ENABLED", false),
			Concurrency:    concurrency,
		},
		Workflow:  wf,
		Renderer:  renderer,
		DataPath:  dataPath,
		LogDir:    logDir,
		JournalTo: getEnv("SYNC_JOURNAL", ""),
	}

	return cfg, nil
}

// Deps returns the orchestrator collaborators for this configuration. Clients
// are only created for integrations that have a URL.
func (c *AppConfig) Deps() suite.Deps {
	deps := suite.Deps{
		Workflow: c.Workflow,
		Renderer: c.Renderer,
	}
	if c.Jira.BaseURL != "" {
		deps.Jira = jira.NewClient(c.Jira)
	}
	if c.Sync.ZephyrEnabled && c.Zephyr.BaseURL != "" {
		deps.Zephyr = zephyr.NewClient(c.Zephyr)
	}
	return deps
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
	}
	return n, nil
}
