// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cli/go-gh/v2/pkg/auth"
	"github.com/joho/godotenv"
)

// DefaultConcurrency is the number of status lookups in flight at once.
const DefaultConcurrency = 2

// tokenForHost resolves a token stored by the GitHub CLI. Replaced in tests.
var tokenForHost = auth.TokenForHost

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken    string
	TokenSource    string // Where GitHubToken came from, for diagnostics.
	GitHubUsername string
	DBPath         string
	WorkspaceHome  string
	Concurrency    int
	LogLevel       slog.Level
}

// HasGitHubToken reports whether a token was found.
func (c *Config) HasGitHubToken() bool {
	return c.GitHubToken != ""
}

// Load reads an optional .env file from the working directory, then the
// environment, and returns a validated Config.
//
// Variables: SHUB_TOKEN (falls back to GITHUB_TOKEN, then the GitHub CLI's
// stored token), SHUB_USERNAME, SHUB_DB_PATH (<user config dir>/shub/shub.db),
// SHUB_WORKSPACE_HOME (falls back to WORKSPACE_HOME, then ~/workspace),
// SHUB_CONCURRENCY (2) and SHUB_LOG_LEVEL (warn). Variables already set in
// the environment win over the .env file.
func Load() (*Config, error) {
	return load(".env")
}

func load(dotenv string) (*Config, error) {
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", dotenv, err)
	}

	token, source := resolveToken()

	dbPath, err := resolveDBPath()
	if err != nil {
		return nil, err
	}

	workspace, err := resolveWorkspace()
	if err != nil {
		return nil, err
	}

	concurrency := DefaultConcurrency
	if v, ok := os.LookupEnv("SHUB_CONCURRENCY"); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("SHUB_CONCURRENCY has invalid value %q: %w", v, err)
		}
		if parsed < 1 {
			return nil, fmt.Errorf("SHUB_CONCURRENCY must be at least 1, got %d", parsed)
		}
		concurrency = parsed
	}

	logLevel := slog.LevelWarn
	if v, ok := os.LookupEnv("SHUB_LOG_LEVEL"); ok && v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("SHUB_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return &Config{
		GitHubToken:    token,
		TokenSource:    source,
		GitHubUsername: strings.TrimSpace(os.Getenv("SHUB_USERNAME")),
		DBPath:         dbPath,
		WorkspaceHome:  workspace,
		Concurrency:    concurrency,
		LogLevel:       logLevel,
	}, nil
}

func resolveToken() (string, string) {
	for _, key := range []string{"SHUB_TOKEN", "GITHUB_TOKEN"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, key
		}
	}
	token, source := tokenForHost("github.com")
	return token, source
}

// resolveDBPath returns the cache file path and makes sure its directory exists.
func resolveDBPath() (string, error) {
	dbPath := os.Getenv("SHUB_DB_PATH")
	if dbPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("locating config directory: %w", err)
		}
		dbPath = filepath.Join(dir, "shub", "shub.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return "", fmt.Errorf("creating directory for SHUB_DB_PATH %q: %w", dbPath, err)
	}
	return dbPath, nil
}

func resolveWorkspace() (string, error) {
	for _, key := range []string{"SHUB_WORKSPACE_HOME", "WORKSPACE_HOME"} {
		if v := os.Getenv(key); v != "" {
			return expandHome(v)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		// Workspace commands report the missing directory themselves.
		return "", nil
	}
	return filepath.Join(home, "workspace"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %q: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
