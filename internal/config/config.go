package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is read when Load is called without an explicit path. It is
// optional; every setting has a default or an environment override.
const ConfigPath = "config.yaml"

const (
	DefaultPort           = "5000"
	DefaultDatabaseURL    = "sqlite://jobtracker.db"
	DefaultJWTSecret      = "dev-secret-change-me"
	DefaultMaxUsersTotal  = 10
	DefaultMaxAppsPerUser = 5
	DefaultChatTimeout    = "120s"
	DefaultSessionTTL     = "168h"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                       string   `yaml:"port"`
	LogLevel                   string   `yaml:"logLevel"`
	LogFormat                  string   `yaml:"logFormat"`
	DatabaseURL                string   `yaml:"databaseURL"`
	JWTSecret                  string   `yaml:"jwtSecret"`
	JWTIssuer                  string   `yaml:"jwtIssuer"`
	JWTAudience                string   `yaml:"jwtAudience"`
	JWTLeeway                  string   `yaml:"jwtLeeway"`
	SessionTTL                 string   `yaml:"sessionTTL"`
	MaxUsersTotal              int      `yaml:"maxUsersTotal"`
	MaxAppsPerUser             int      `yaml:"maxAppsPerUser"`
	GenerationProvider         string   `yaml:"generationProvider"`
	GenerationModel            string   `yaml:"generationModel"`
	GenerationBaseURL          string   `yaml:"generationBaseURL"`
	GenerationAPIKey           string   `yaml:"generationAPIKey"`
	ChatTimeout                string   `yaml:"chatTimeout"`
	RedisAddr                  string   `yaml:"redisAddr"`
	RedisPassword              string   `yaml:"redisPassword"`
	RegisterRateLimitPerMinute int      `yaml:"registerRateLimitPerMinute"`
	LoginRateLimitPerMinute    int      `yaml:"loginRateLimitPerMinute"`
	TrustedProxyCIDRs          []string `yaml:"trustedProxyCidrs"`
	CORSOrigins                []string `yaml:"corsOrigins"`
}

// Load reads config from path (defaults to config.yaml), fills defaults and
// applies environment overrides. A missing default file is not an error.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	explicit := path != ""
	if !explicit {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyDefaults(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = DefaultDatabaseURL
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = DefaultJWTSecret
	}
	if cfg.MaxUsersTotal == 0 {
		cfg.MaxUsersTotal = DefaultMaxUsersTotal
	}
	if cfg.MaxAppsPerUser == 0 {
		cfg.MaxAppsPerUser = DefaultMaxAppsPerUser
	}
	if cfg.ChatTimeout == "" {
		cfg.ChatTimeout = DefaultChatTimeout
	}
	if cfg.SessionTTL == "" {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.GenerationProvider == "" {
		cfg.GenerationProvider = "gemini"
	}
}

func applyEnv(cfg *FileConfig) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.JWTAudience, "JWT_AUDIENCE")
	setString(&cfg.JWTLeeway, "JWT_LEEWAY")
	setString(&cfg.SessionTTL, "SESSION_TTL")
	setString(&cfg.GenerationProvider, "GENERATION_PROVIDER")
	setString(&cfg.GenerationModel, "GENERATION_MODEL")
	setString(&cfg.GenerationBaseURL, "GENERATION_BASE_URL")
	// GEMINI_API_KEY is the historical name; GENERATION_API_KEY wins when both are set.
	setString(&cfg.GenerationAPIKey, "GEMINI_API_KEY")
	setString(&cfg.GenerationAPIKey, "GENERATION_API_KEY")
	setString(&cfg.ChatTimeout, "CHAT_TIMEOUT")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	for name, dst := range map[string]*int{
		"MAX_USERS_TOTAL":                &cfg.MaxUsersTotal,
		"MAX_APPS_PER_USER":              &cfg.MaxAppsPerUser,
		"REGISTER_RATE_LIMIT_PER_MINUTE": &cfg.RegisterRateLimitPerMinute,
		"LOGIN_RATE_LIMIT_PER_MINUTE":    &cfg.LoginRateLimitPerMinute,
	} {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s must be an integer: %w", name, err)
		}
		*dst = n
	}
	return nil
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func validateConfig(cfg FileConfig) error {
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return fmt.Errorf("config: port %q is not a number", cfg.Port)
	}
	if cfg.MaxUsersTotal <= 0 || cfg.MaxAppsPerUser <= 0 {
		return errors.New("config: maxUsersTotal and maxAppsPerUser must be > 0")
	}
	if len(cfg.JWTSecret) < 16 {
		return errors.New("config: jwtSecret must be at least 16 bytes")
	}
	if cfg.RegisterRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if _, err := ParseJWTLeeway(cfg.JWTLeeway); err != nil {
		return err
	}
	if _, err := ParseChatTimeout(cfg.ChatTimeout); err != nil {
		return err
	}
	if _, err := ParseSessionTTL(cfg.SessionTTL); err != nil {
		return err
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseJWTLeeway parses optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	return dur, nil
}

// ParseChatTimeout parses the language model request timeout.
func ParseChatTimeout(value string) (time.Duration, error) {
	return parsePositiveDuration("chatTimeout", value, DefaultChatTimeout)
}

// ParseSessionTTL parses the bearer token lifetime.
func ParseSessionTTL(value string) (time.Duration, error) {
	return parsePositiveDuration("sessionTTL", value, DefaultSessionTTL)
}

func parsePositiveDuration(name, value, fallback string) (time.Duration, error) {
	if value == "" {
		value = fallback
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("invalid %s duration: must be > 0", name)
	}
	return dur, nil
}
