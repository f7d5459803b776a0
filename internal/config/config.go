package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DataDir       string

	// StoreBackend selects the entity store: "redis" or "memory".
	StoreBackend string

	MaxConcurrentResearch int
	JobRetention          time.Duration

	BrowserEngine     string
	BrowserHeadless   bool
	BrowserProfileDir string
	NavigationTimeout time.Duration
	RenderWait        time.Duration
	SettleDelay       time.Duration

	SearchTimeout time.Duration

	SourcesFile string
	Sources     Sources

	TaskMaxRetries int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Load reads configuration from the environment, after merging a .env file
// when one is present in the working directory.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8081"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getenvInt("REDIS_DB", 0),
		DataDir:       getenv("DATA_DIR", "./data"),

		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", "redis")),

		MaxConcurrentResearch: getenvInt("RESEARCH_MAX_CONCURRENT", 3),
		JobRetention:          getenvDuration("RESEARCH_JOB_RETENTION", time.Hour),

		BrowserEngine:     strings.ToLower(getenv("BROWSER_ENGINE", "chromium")),
		BrowserHeadless:   getenvBool("BROWSER_HEADLESS", true),
		BrowserProfileDir: os.Getenv("BROWSER_PROFILE_DIR"),
		NavigationTimeout: getenvDuration("BROWSER_NAV_TIMEOUT", 30*time.Second),
		RenderWait:        getenvDuration("BROWSER_RENDER_WAIT", 3*time.Second),
		SettleDelay:       getenvDuration("BROWSER_SETTLE_DELAY", 2*time.Second),

		SearchTimeout: getenvDuration("SEARCH_TIMEOUT", 10*time.Second),

		SourcesFile: os.Getenv("SOURCES_FILE"),

		TaskMaxRetries: getenvInt("TASK_MAX_RETRIES", 3),
	}

	if cfg.RedisAddr == "" {
		return Config{}, fmt.Errorf("REDIS_ADDR is required")
	}
	if cfg.StoreBackend != "redis" && cfg.StoreBackend != "memory" {
		return Config{}, fmt.Errorf("STORE_BACKEND must be redis or memory, got %q", cfg.StoreBackend)
	}
	if cfg.MaxConcurrentResearch < 1 {
		return Config{}, fmt.Errorf("RESEARCH_MAX_CONCURRENT must be at least 1")
	}

	sources, err := LoadSources(cfg.SourcesFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Sources = sources
	return cfg, nil
}
