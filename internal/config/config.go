package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"assessment-jobs/internal/errors"

	"github.com/joho/godotenv"
)

// Config holds server configuration for cmd/api and cmd/worker.
type Config struct {
	Port         int
	DBPath       string
	LogLevel     string
	AllowOrigins []string

	// Generator
	GeneratorURL     string // empty selects the simulated generator
	GeneratorTimeout time.Duration
	SimulatedStep    time.Duration

	// Runner and sweeper
	MaxJobRuntime time.Duration
	StaleJobAfter time.Duration
	DraftTTL      time.Duration
	SweepInterval time.Duration

	// Submission limiter, per client
	SubmissionsPerMinute int
	SubmissionBurst      int
}

// ClientConfig holds configuration for cmd/genctl.
type ClientConfig struct {
	APIBaseURL           string
	RequestTimeout       time.Duration
	PollInterval         time.Duration
	MaxPollAttempts      int
	MaxConsecutiveErrors int
	MaxNotFound          int
	MaxRetries           int
}

// Load reads server configuration with the following precedence order:
//  1. OS environment variables (highest priority)
//  2. .env file in current working directory (if present)
//  3. Default values (lowest priority)
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                 getEnvInt("PORT", 8080),
		DBPath:               getEnvString("DB_PATH", "assessments.db"),
		LogLevel:             getEnvString("LOG_LEVEL", "info"),
		AllowOrigins:         getEnvList("CORS_ALLOW_ORIGINS", []string{"*"}),
		GeneratorURL:         strings.TrimSuffix(os.Getenv("GENERATOR_URL"), "/"),
		GeneratorTimeout:     getEnvDuration("GENERATOR_TIMEOUT", 5*time.Minute),
		SimulatedStep:        getEnvDuration("SIMULATED_STEP", 2*time.Second),
		MaxJobRuntime:        getEnvDuration("MAX_JOB_RUNTIME", 15*time.Minute),
		StaleJobAfter:        getEnvDuration("STALE_JOB_AFTER", 10*time.Minute),
		DraftTTL:             getEnvDuration("DRAFT_TTL", 24*time.Hour),
		SweepInterval:        getEnvDuration("SWEEP_INTERVAL", time.Minute),
		SubmissionsPerMinute: getEnvInt("SUBMISSIONS_PER_MINUTE", 10),
		SubmissionBurst:      getEnvInt("SUBMISSION_BURST", 3),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise break the runner or limiter.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.Newf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH is required")
	}
	if c.MaxJobRuntime <= 0 {
		return errors.Newf("MAX_JOB_RUNTIME must be positive, got %s", c.MaxJobRuntime)
	}
	if c.StaleJobAfter <= 0 {
		return errors.Newf("STALE_JOB_AFTER must be positive, got %s", c.StaleJobAfter)
	}
	if c.StaleJobAfter <= c.GeneratorTimeout {
		return errors.Newf("STALE_JOB_AFTER (%s) must be longer than GENERATOR_TIMEOUT (%s)", c.StaleJobAfter, c.GeneratorTimeout)
	}
	if c.SweepInterval <= 0 {
		return errors.Newf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.SubmissionsPerMinute < 1 {
		return errors.Newf("SUBMISSIONS_PER_MINUTE must be at least 1, got %d", c.SubmissionsPerMinute)
	}
	if c.SubmissionBurst < 1 {
		return errors.Newf("SUBMISSION_BURST must be at least 1, got %d", c.SubmissionBurst)
	}
	return nil
}

// HeartbeatInterval is how often a running job refreshes updated_at, well
// inside StaleJobAfter.
func (c *Config) HeartbeatInterval() time.Duration {
	return c.StaleJobAfter / 3
}

// LoadClient reads configuration for the command-line client.
func LoadClient() (*ClientConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &ClientConfig{
		APIBaseURL:           strings.TrimSuffix(getEnvString("API_BASE_URL", "http://localhost:8080"), "/"),
		RequestTimeout:       getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		PollInterval:         getEnvDuration("POLL_INTERVAL", time.Second),
		MaxPollAttempts:      getEnvInt("MAX_POLL_ATTEMPTS", 1200),
		MaxConsecutiveErrors: getEnvInt("MAX_CONSECUTIVE_ERRORS", 10),
		MaxNotFound:          getEnvInt("MAX_NOT_FOUND", 5),
		MaxRetries:           getEnvInt("MAX_RETRIES", 3),
	}

	if cfg.PollInterval <= 0 {
		return nil, errors.Newf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.MaxPollAttempts < 1 {
		return nil, errors.Newf("MAX_POLL_ATTEMPTS must be at least 1, got %d", cfg.MaxPollAttempts)
	}
	if cfg.MaxConsecutiveErrors < 1 {
		return nil, errors.Newf("MAX_CONSECUTIVE_ERRORS must be at least 1, got %d", cfg.MaxConsecutiveErrors)
	}
	if cfg.MaxRetries < 0 {
		return nil, errors.Newf("MAX_RETRIES must not be negative, got %d", cfg.MaxRetries)
	}
	return cfg, nil
}

// loadDotEnv loads .env from the working directory. Variables already set in
// the process environment win.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return errors.Wrap(err, "failed to load .env file")
	}
	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an integer or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
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
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
