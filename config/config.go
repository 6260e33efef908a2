package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Firebase FirebaseConfig
	LLM      LLMConfig
	Credits  CreditsConfig
	CORS     CORSConfig
	App      AppConfig
}

type ServerConfig struct {
	Port             string
	ShutdownTimeout  time.Duration
	WorkspaceIdleTTL time.Duration
}

// DatabaseConfig either carries a full DSN or the individual parts. With neither
// DB_DSN nor DB_HOST set the service runs without persistence.
type DatabaseConfig struct {
	DSN          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
}

func (d DatabaseConfig) Enabled() bool {
	return d.DSN != "" || d.Host != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
}

type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type LLMConfig struct {
	Gemini         ProviderConfig
	Groq           ProviderConfig
	Timeout        time.Duration
	RPS            float64
	Burst          int
	StrictCategory bool
}

type CreditsConfig struct {
	Default    int
	RefillCron string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type AppConfig struct {
	ServiceName  string
	Environment  string
	LogLevel     string
	Version      string
	AllowDevAuth bool
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	env := getEnv("APP_ENV", "development")
	cfg := &Config{
		Server: ServerConfig{
			Port:             getEnv("PORT", "8080"),
			ShutdownTimeout:  getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			WorkspaceIdleTTL: getEnvAsDuration("WORKSPACE_IDLE_TTL", 2*time.Hour),
		},
		Database: DatabaseConfig{
			DSN:          getEnv("DB_DSN", ""),
			Host:         getEnv("DB_HOST", ""),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Name:         getEnv("DB_NAME", "synapse"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		},
		LLM: LLMConfig{
			Gemini: ProviderConfig{
				APIKey:  getEnv("GEMINI_API_KEY", ""),
				BaseURL: getEnv("GEMINI_BASE_URL", ""),
				Model:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			},
			Groq: ProviderConfig{
				APIKey:  getEnv("GROQ_API_KEY", ""),
				BaseURL: getEnv("GROQ_BASE_URL", ""),
				Model:   getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
			},
			Timeout:        getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			RPS:            getEnvAsFloat("LLM_RPS", 2),
			Burst:          getEnvAsInt("LLM_BURST", 4),
			StrictCategory: getEnvAsBool("STRICT_CATEGORY", false),
		},
		Credits: CreditsConfig{
			Default:    getEnvAsInt("CREDITS_DEFAULT", 10),
			RefillCron: getEnv("CREDITS_REFILL_CRON", "0 0 0 * * *"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		App: AppConfig{
			ServiceName:  getEnv("SERVICE_NAME", "synapse-backend"),
			Environment:  env,
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			Version:      getEnv("APP_VERSION", "1.0.0"),
			AllowDevAuth: getEnvAsBool("ALLOW_DEV_AUTH", env != "production"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Credits.Default <= 0 {
		return fmt.Errorf("CREDITS_DEFAULT must be positive")
	}

	if c.App.Environment == "production" && c.Firebase.CredentialsPath == "" && !c.App.AllowDevAuth {
		return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required in production")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
