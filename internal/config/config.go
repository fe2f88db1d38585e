package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string
	FrontendURL    string

	DatabaseURL          string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeMin int

	RedisURL        string
	RedisPassword   string
	ProfileCacheTTL time.Duration

	JWTSecret string

	RoundDuration     time.Duration
	RetryInterval     time.Duration
	MaxTimeoutRetries int
	SweepInterval     time.Duration
	GuessRatePerSec   float64
	GuessBurst        int
}

// LoadEnvFiles loads .env from the working directory or its parent.
// Missing files are not an error; the process environment still applies.
func LoadEnvFiles() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Debug().Str("component", "config").Msg("no .env file found")
		}
	}
}

// SetDefaults registers every key with its default so AutomaticEnv can see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("ALLOWED_ORIGINS", "")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("PROFILE_CACHE_TTL_SECONDS", 300)

	v.SetDefault("JWT_SECRET", "your-secret-key-change-this-in-production")

	v.SetDefault("ROUND_DURATION_SECONDS", 60)
	v.SetDefault("TIMEOUT_RETRY_INTERVAL_SECONDS", 5)
	v.SetDefault("TIMEOUT_RETRY_MAX", 3)
	v.SetDefault("SWEEP_INTERVAL_SECONDS", 30)
	v.SetDefault("GUESS_RATE_PER_SECOND", 2.0)
	v.SetDefault("GUESS_BURST", 5)
}

// Load reads the configuration from v. Flags bound to v take precedence over env.
func Load(v *viper.Viper) *Config {
	SetDefaults(v)
	v.AutomaticEnv()

	frontendURL := strings.TrimRight(v.GetString("FRONTEND_URL"), "/")

	// Frontend URL + localhost + CSV values
	var allowedOrigins []string
	candidates := append([]string{frontendURL, "http://localhost:5173"}, strings.Split(v.GetString("ALLOWED_ORIGINS"), ",")...)
	for _, origin := range candidates {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" && !contains(allowedOrigins, trimmed) {
			allowedOrigins = append(allowedOrigins, trimmed)
		}
	}

	cfg := &Config{
		Port:           v.GetString("PORT"),
		Environment:    v.GetString("ENVIRONMENT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		AllowedOrigins: allowedOrigins,
		FrontendURL:    frontendURL,

		DatabaseURL:          withSimpleProtocol(v.GetString("DATABASE_URL")),
		DBMaxOpenConns:       v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns:       v.GetInt("DB_MAX_IDLE_CONNS"),
		DBConnMaxLifetimeMin: v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES"),

		RedisURL:        v.GetString("REDIS_URL"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		ProfileCacheTTL: seconds(v, "PROFILE_CACHE_TTL_SECONDS"),

		JWTSecret: v.GetString("JWT_SECRET"),

		RoundDuration:     seconds(v, "ROUND_DURATION_SECONDS"),
		RetryInterval:     seconds(v, "TIMEOUT_RETRY_INTERVAL_SECONDS"),
		MaxTimeoutRetries: v.GetInt("TIMEOUT_RETRY_MAX"),
		SweepInterval:     seconds(v, "SWEEP_INTERVAL_SECONDS"),
		GuessRatePerSec:   v.GetFloat64("GUESS_RATE_PER_SECOND"),
		GuessBurst:        v.GetInt("GUESS_BURST"),
	}
	return cfg
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func seconds(v *viper.Viper, key string) time.Duration {
	n := v.GetInt(key)
	if n <= 0 {
		log.Warn().Str("component", "config").Str("key", key).Int("value", n).Msg("non-positive duration, using default")
		return 0
	}
	return time.Duration(n) * time.Second
}

// withSimpleProtocol appends default_query_exec_mode=simple_protocol for PgBouncer compatibility (pgx driver)
func withSimpleProtocol(dbURL string) string {
	if dbURL == "" {
		return ""
	}
	u, err := url.Parse(dbURL)
	if err != nil || u.Scheme == "" {
		return dbURL
	}
	q := u.Query()
	if q.Get("default_query_exec_mode") == "" {
		q.Set("default_query_exec_mode", "simple_protocol")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
