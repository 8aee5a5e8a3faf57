package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RatePolicy is one named rate-limit configuration. OTP sends run under a
// stricter policy than transactional notifications.
type RatePolicy struct {
	Window      time.Duration `json:"window"`
	Max         int           `json:"max"`
	MinInterval time.Duration `json:"min_interval"`
}

// Config holds all configuration values
type Config struct {
	// Server configuration
	Port        int    `json:"port"`
	Environment string `json:"environment"`

	// SMS gateway configuration
	GatewayBaseURL    string        `json:"gateway_base_url"`
	GatewayToken      string        `json:"gateway_token"`
	GatewaySenderName string        `json:"gateway_sender_name"`
	GatewayLanguage   string        `json:"gateway_language"`
	GatewayTimeout    time.Duration `json:"gateway_timeout"`

	// Chat gateway configuration (currently routed through SMS, see providers)
	ChatBaseURL string `json:"chat_base_url"`
	ChatToken   string `json:"chat_token"`

	// Phone normalization
	DefaultDialCode string `json:"default_dial_code"`

	// Rate limiting
	OTPRatePolicy    RatePolicy    `json:"otp_rate_policy"`
	NotifyRatePolicy RatePolicy    `json:"notify_rate_policy"`
	RateSweepEvery   time.Duration `json:"rate_sweep_every"`

	// OTP configuration
	OTPCodeLength  int           `json:"otp_code_length"`
	OTPTTL         time.Duration `json:"otp_ttl"`
	OTPMaxAttempts int           `json:"otp_max_attempts"`
	OTPTemplateID  string        `json:"otp_template_id"`

	// Message templates, resolved by template ID at send time
	Templates map[string]string `json:"templates"`

	// Delivery retry backoff for transient provider failures
	RetryBackoff time.Duration `json:"retry_backoff"`

	// Redis configuration (optional; enables the shared challenge store)
	RedisURI            string   `json:"redis_uri"`
	RedisPassword       string   `json:"redis_password"`
	RedisDB             int      `json:"redis_db"`
	RedisEnabled        bool     `json:"redis_enabled"`
	RedisClusterEnabled bool     `json:"redis_cluster_enabled"`
	RedisClusterAddrs   []string `json:"redis_cluster_addrs"`

	// Tracing configuration
	TracingEnabled  bool   `json:"tracing_enabled"`
	TracingEndpoint string `json:"tracing_endpoint"`
}

var (
	AppConfig *Config
)

// LoadConfig loads configuration from environment variables
func LoadConfig() error {
	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	gatewayBaseURL := os.Getenv("SMS_GATEWAY_BASE_URL")
	if gatewayBaseURL == "" {
		return fmt.Errorf("SMS_GATEWAY_BASE_URL environment variable is required")
	}

	gatewayToken := os.Getenv("SMS_GATEWAY_TOKEN")
	if gatewayToken == "" {
		return fmt.Errorf("SMS_GATEWAY_TOKEN environment variable is required")
	}

	gatewayTimeout, err := time.ParseDuration(getEnvOrDefault("SMS_GATEWAY_TIMEOUT", "8s"))
	if err != nil {
		return fmt.Errorf("invalid SMS_GATEWAY_TIMEOUT: %w", err)
	}

	otpPolicy, err := loadRatePolicy("OTP_RATE", RatePolicy{
		Window:      60 * time.Second,
		Max:         1,
		MinInterval: 60 * time.Second,
	})
	if err != nil {
		return err
	}

	notifyPolicy, err := loadRatePolicy("NOTIFY_RATE", RatePolicy{
		Window:      60 * time.Second,
		Max:         10,
		MinInterval: 0,
	})
	if err != nil {
		return err
	}

	rateSweepEvery, err := time.ParseDuration(getEnvOrDefault("RATE_SWEEP_EVERY", "1m"))
	if err != nil {
		return fmt.Errorf("invalid RATE_SWEEP_EVERY: %w", err)
	}

	otpCodeLength, err := strconv.Atoi(getEnvOrDefault("OTP_CODE_LENGTH", "6"))
	if err != nil {
		return fmt.Errorf("invalid OTP_CODE_LENGTH: %w", err)
	}
	if otpCodeLength < 4 || otpCodeLength > 10 {
		return fmt.Errorf("OTP_CODE_LENGTH must be between 4 and 10, got %d", otpCodeLength)
	}

	otpTTL, err := time.ParseDuration(getEnvOrDefault("OTP_TTL", "5m"))
	if err != nil {
		return fmt.Errorf("invalid OTP_TTL: %w", err)
	}

	otpMaxAttempts, err := strconv.Atoi(getEnvOrDefault("OTP_MAX_ATTEMPTS", "3"))
	if err != nil {
		return fmt.Errorf("invalid OTP_MAX_ATTEMPTS: %w", err)
	}

	retryBackoff, err := time.ParseDuration(getEnvOrDefault("RETRY_BACKOFF", "500ms"))
	if err != nil {
		return fmt.Errorf("invalid RETRY_BACKOFF: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	otpTemplateID := getEnvOrDefault("OTP_TEMPLATE_ID", "otp")

	redisClusterEnabled := getEnvOrDefault("REDIS_CLUSTER_ENABLED", "false") == "true"
	redisClusterAddrs := parseCommaSeparatedList(getEnvOrDefault("REDIS_CLUSTER_ADDRS", ""))
	if redisClusterEnabled && len(redisClusterAddrs) == 0 {
		return fmt.Errorf("REDIS_CLUSTER_ADDRS is required when REDIS_CLUSTER_ENABLED=true")
	}

	AppConfig = &Config{
		// Server configuration
		Port:        port,
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		// SMS gateway configuration
		GatewayBaseURL:    gatewayBaseURL,
		GatewayToken:      gatewayToken,
		GatewaySenderName: getEnvOrDefault("SMS_GATEWAY_SENDER_NAME", "Malaeb"),
		GatewayLanguage:   getEnvOrDefault("SMS_GATEWAY_LANGUAGE", "en"),
		GatewayTimeout:    gatewayTimeout,

		// Chat gateway configuration
		ChatBaseURL: getEnvOrDefault("CHAT_GATEWAY_BASE_URL", gatewayBaseURL),
		ChatToken:   getEnvOrDefault("CHAT_GATEWAY_TOKEN", gatewayToken),

		// Phone normalization
		DefaultDialCode: getEnvOrDefault("DEFAULT_DIAL_CODE", "20"),

		// Rate limiting
		OTPRatePolicy:    otpPolicy,
		NotifyRatePolicy: notifyPolicy,
		RateSweepEvery:   rateSweepEvery,

		// OTP configuration
		OTPCodeLength:  otpCodeLength,
		OTPTTL:         otpTTL,
		OTPMaxAttempts: otpMaxAttempts,
		OTPTemplateID:  otpTemplateID,

		Templates: map[string]string{
			otpTemplateID: getEnvOrDefault("OTP_TEMPLATE_BODY", "Your verification code is {{v1}}"),
		},

		RetryBackoff: retryBackoff,

		// Redis configuration
		RedisURI:            getEnvOrDefault("REDIS_URI", "localhost:6379"),
		RedisPassword:       getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:             redisDB,
		RedisEnabled:        getEnvOrDefault("REDIS_ENABLED", "false") == "true",
		RedisClusterEnabled: redisClusterEnabled,
		RedisClusterAddrs:   redisClusterAddrs,

		// Tracing configuration
		TracingEnabled:  getEnvOrDefault("TRACING_ENABLED", "false") == "true",
		TracingEndpoint: getEnvOrDefault("TRACING_ENDPOINT", "localhost:4317"),
	}

	return nil
}

// loadRatePolicy reads <prefix>_WINDOW, <prefix>_MAX and <prefix>_MIN_INTERVAL.
func loadRatePolicy(prefix string, def RatePolicy) (RatePolicy, error) {
	window, err := time.ParseDuration(getEnvOrDefault(prefix+"_WINDOW", def.Window.String()))
	if err != nil {
		return RatePolicy{}, fmt.Errorf("invalid %s_WINDOW: %w", prefix, err)
	}
	if window <= 0 {
		return RatePolicy{}, fmt.Errorf("%s_WINDOW must be positive", prefix)
	}

	max, err := strconv.Atoi(getEnvOrDefault(prefix+"_MAX", strconv.Itoa(def.Max)))
	if err != nil {
		return RatePolicy{}, fmt.Errorf("invalid %s_MAX: %w", prefix, err)
	}

	minInterval, err := time.ParseDuration(getEnvOrDefault(prefix+"_MIN_INTERVAL", def.MinInterval.String()))
	if err != nil {
		return RatePolicy{}, fmt.Errorf("invalid %s_MIN_INTERVAL: %w", prefix, err)
	}

	return RatePolicy{Window: window, Max: max, MinInterval: minInterval}, nil
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace and skipping empty items
func parseCommaSeparatedList(value string) []string {
	result := []string{}
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
