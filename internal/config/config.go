package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration, populated once at startup by Load.
type Config struct {
	// API Keys
	OpenRouterAPIKey string
	BraveAPIKey      string

	// Paths
	VaultPath     string
	HistoryFile   string
	StateFile     string
	EventStoreDir string // Event-sourced storage directory

	// Timeouts
	WorkerTimeout  time.Duration
	RequestTimeout time.Duration

	// Agent settings
	MaxIterations int
	MaxTokens     int
	MaxWorkers    int

	// Model
	Model string

	// Verbose mode
	Verbose bool
}

// Load builds a Config from environment variables (with a .env file loaded
// first, if present) and home-directory-relative defaults.
func Load() *Config {
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()

	cfg := &Config{
		Model:   "alibaba/tongyi-deepresearch-30b-a3b",
		Verbose: os.Getenv("RESEARCH_VERBOSE") == "true",
	}
	loadCredentials(cfg)
	loadPaths(cfg, home)
	loadLimits(cfg)
	return cfg
}

func loadCredentials(cfg *Config) {
	cfg.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	cfg.BraveAPIKey = os.Getenv("BRAVE_API_KEY")
}

func loadPaths(cfg *Config, home string) {
	cfg.VaultPath = getEnv("RESEARCH_VAULT", filepath.Join(home, "research-vault"))
	cfg.HistoryFile = filepath.Join(home, ".research_history")
	cfg.StateFile = filepath.Join(home, ".research_state")
	cfg.EventStoreDir = filepath.Join(home, ".research_events")
}

func loadLimits(cfg *Config) {
	cfg.WorkerTimeout = 30 * time.Minute
	cfg.RequestTimeout = 5 * time.Minute

	cfg.MaxIterations = getEnvInt("RESEARCH_MAX_ITERATIONS", 20)
	cfg.MaxTokens = getEnvInt("RESEARCH_MAX_TOKENS", 50000)
	cfg.MaxWorkers = getEnvInt("RESEARCH_MAX_WORKERS", 5)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
