package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	FrontendURL        string

	// Pub/Sub carries webhook notifications out of band when a project is configured
	GoogleProjectID     string
	GooglePubSubTopic   string
	GoogleCredentials   string
	FirebaseCredentials string

	// Push channels are only registered when the service is reachable from Google
	WebhookBaseURL      string
	WebhookChannelToken string

	AIProvider    string
	GeminiApiKey  string
	GeminiModel   string
	OllamaBaseURL string
	OllamaModel   string

	SearchProviders  []string
	TavilyAPIKey     string
	PageFetchEnabled bool

	ChromaAPIKey   string
	ChromaTenant   string
	ChromaDatabase string

	ResearchWorkers     int
	ResearchQueueSize   int
	ResearchHistoryKeep int

	TestMode bool
}

// SchedulerIntervals groups the background job periods.
type SchedulerIntervals struct {
	WebhookRenewal  time.Duration
	RenewalLead     time.Duration
	SyncFallback    time.Duration
	MeetingPrep     time.Duration
	TaskReminders   time.Duration
	MaintenanceCron string
}

// MeetingPrepWindow is the lead-time window in which meetings get a prep task.
type MeetingPrepWindow struct {
	MinHours int
	MaxHours int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("APP_ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=taskflow port=5432 sslmode=disable"),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry:     getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		JWTRefreshExpiry:    getDuration("JWT_REFRESH_EXPIRY", 168*time.Hour), // 7 days
		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:   getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/api/calendar/callback"),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:5173"),
		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:   getEnv("GOOGLE_PUBSUB_TOPIC", "calendar-notifications"),
		GoogleCredentials:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		WebhookBaseURL:      strings.TrimRight(getEnv("WEBHOOK_BASE_URL", ""), "/"),
		WebhookChannelToken: getEnv("WEBHOOK_CHANNEL_TOKEN", ""),
		AIProvider:          getEnv("AI_PROVIDER", "auto"),
		GeminiApiKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OllamaBaseURL:       getEnv("OLLAMA_BASE_URL", ""),
		OllamaModel:         getEnv("OLLAMA_MODEL", "llama3"),
		SearchProviders:     getList("SEARCH_PROVIDERS", []string{"tavily", "duckduckgo"}),
		TavilyAPIKey:        getEnv("TAVILY_API_KEY", ""),
		PageFetchEnabled:    getBool("PAGE_FETCH_ENABLED", false),
		ChromaAPIKey:        getEnv("CHROMA_API_KEY", ""),
		ChromaTenant:        getEnv("CHROMA_TENANT", ""),
		ChromaDatabase:      getEnv("CHROMA_DATABASE", ""),
		ResearchWorkers:     getInt("RESEARCH_WORKERS", 2),
		ResearchQueueSize:   getInt("RESEARCH_QUEUE_SIZE", 100),
		ResearchHistoryKeep: getInt("RESEARCH_HISTORY_KEEP", 5),
		TestMode:            getBool("TEST_MODE", false),
	}
}

// WebhookAddress is the public URL Google delivers channel notifications to.
func (c *Config) WebhookAddress() string {
	if c.WebhookBaseURL == "" {
		return ""
	}
	return c.WebhookBaseURL + "/api/calendar/webhook"
}

func (c *Config) Intervals() SchedulerIntervals {
	if c.TestMode {
		return SchedulerIntervals{
			WebhookRenewal:  5 * time.Minute,
			RenewalLead:     60 * time.Minute,
			SyncFallback:    1 * time.Minute,
			MeetingPrep:     1 * time.Minute,
			TaskReminders:   1 * time.Minute,
			MaintenanceCron: "0 3 * * *",
		}
	}
	return SchedulerIntervals{
		WebhookRenewal:  20 * time.Minute,
		RenewalLead:     60 * time.Minute,
		SyncFallback:    15 * time.Minute,
		MeetingPrep:     15 * time.Minute,
		TaskReminders:   1 * time.Minute,
		MaintenanceCron: "0 3 * * *",
	}
}

func (c *Config) PrepWindow() MeetingPrepWindow {
	if c.TestMode {
		return MeetingPrepWindow{MinHours: 0, MaxHours: 168}
	}
	return MeetingPrepWindow{MinHours: 2, MaxHours: 48}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(strings.ToLower(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
