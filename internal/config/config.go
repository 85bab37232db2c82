package config

import (
	"os"
	"strconv"
	"time"
)

// LLMProviderConfig holds the settings for one OpenAI-compatible
// chat-completions endpoint used by the analysis fallback chain.
type LLMProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
}

// Configured reports whether the provider has enough settings to be called.
func (c LLMProviderConfig) Configured() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

// Config holds all application configuration
type Config struct {
	Port string

	// Session management
	MaxSessions          int           // hard cap on concurrently held sessions (active + retained terminal)
	SessionTimeout       time.Duration // absolute age limit before eviction
	TerminalRetention    time.Duration // retention window for completed/failed sessions
	SweepInterval        time.Duration // cleanup sweeper cadence
	MinSuccessfulSources int           // sources that must yield usable data before analysis proceeds

	// Research execution
	SourceTimeout            time.Duration // per-connector fetch timeout
	ResearchTimeout          time.Duration // overall per-session budget
	DefaultMaxResults        int
	MaxConcurrentFetches     int
	AllowPlaceholderAnalysis bool

	// Connector endpoints
	SearXNGURL string

	// Catalog
	QuestionsFile string

	// Analysis providers (tried in order)
	PrimaryLLM   LLMProviderConfig
	SecondaryLLM LLMProviderConfig
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		MaxSessions:          getIntEnv("MAX_CONCURRENT_SESSIONS", 100),
		SessionTimeout:       getDurationEnv("SESSION_TIMEOUT", 60*time.Minute),
		TerminalRetention:    getDurationEnv("TERMINAL_RETENTION", 30*time.Minute),
		SweepInterval:        getDurationEnv("SWEEP_INTERVAL", 5*time.Minute),
		MinSuccessfulSources: getIntEnv("MIN_SUCCESSFUL_SOURCES", 1),

		SourceTimeout:            getDurationEnv("SOURCE_TIMEOUT", 10*time.Second),
		ResearchTimeout:          getDurationEnv("RESEARCH_TIMEOUT", 5*time.Minute),
		DefaultMaxResults:        getIntEnv("DEFAULT_MAX_RESULTS", 50),
		MaxConcurrentFetches:     getIntEnv("MAX_CONCURRENT_FETCHES", 10),
		AllowPlaceholderAnalysis: getBoolEnv("ALLOW_PLACEHOLDER_ANALYSIS", true),

		SearXNGURL: getEnv("SEARXNG_URL", "http://localhost:8080"),

		QuestionsFile: getEnv("QUESTIONS_FILE", ""),

		PrimaryLLM: LLMProviderConfig{
			Name:    getEnv("PRIMARY_LLM_NAME", "primary"),
			BaseURL: getEnv("PRIMARY_LLM_BASE_URL", ""),
			APIKey:  getEnv("PRIMARY_LLM_API_KEY", ""),
			Model:   getEnv("PRIMARY_LLM_MODEL", "gpt-4"),
		},
		SecondaryLLM: LLMProviderConfig{
			Name:    getEnv("SECONDARY_LLM_NAME", "secondary"),
			BaseURL: getEnv("SECONDARY_LLM_BASE_URL", ""),
			APIKey:  getEnv("SECONDARY_LLM_API_KEY", ""),
			Model:   getEnv("SECONDARY_LLM_MODEL", "gpt-4o-mini"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
