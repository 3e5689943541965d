package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	RedisURL string

	// Timeback APIs share one client-credentials token endpoint.
	OneRosterBaseURL string
	PowerPathBaseURL string
	QTIBaseURL       string
	CaliperBaseURL   string
	CaliperSensorID  string
	TokenURL         string
	ClientID         string
	ClientSecret     string
	UpstreamTimeout  time.Duration

	SessionJWTSecret string

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string

	ResyncSchedule string // empty disables the sweep

	LogLevel  string
	LogPretty bool
}

func defaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("ONEROSTER_BASE_URL", "https://api.alpha-1edtech.com")
	v.SetDefault("POWERPATH_BASE_URL", "https://api.alpha-1edtech.com")
	v.SetDefault("QTI_BASE_URL", "https://qti.alpha-1edtech.com/api")
	v.SetDefault("CALIPER_BASE_URL", "https://caliper.alpha-1edtech.com")
	v.SetDefault("CALIPER_SENSOR_ID", "https://www.nice.academy")
	v.SetDefault("TIMEBACK_TOKEN_URL", "")
	v.SetDefault("UPSTREAM_TIMEOUT", "15s")
	v.SetDefault("ADMIN_USER", "admin")
	v.SetDefault("ADMIN_PASS_HASH", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RESYNC_SCHEDULE", "*/10 * * * *")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
}

// FromEnv reads ./.env if present, then the environment, which wins.
func FromEnv() Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Msg("error reading .env")
		}
	}
	return load(v)
}

func load(v *viper.Viper) Config {
	defaults(v)
	return Config{
		HTTPAddr:         v.GetString("HTTP_ADDR"),
		DBDriver:         v.GetString("DB_DRIVER"),
		DBDSN:            v.GetString("DB_DSN"),
		RedisURL:         v.GetString("REDIS_URL"),
		OneRosterBaseURL: v.GetString("ONEROSTER_BASE_URL"),
		PowerPathBaseURL: v.GetString("POWERPATH_BASE_URL"),
		QTIBaseURL:       v.GetString("QTI_BASE_URL"),
		CaliperBaseURL:   v.GetString("CALIPER_BASE_URL"),
		CaliperSensorID:  v.GetString("CALIPER_SENSOR_ID"),
		TokenURL:         v.GetString("TIMEBACK_TOKEN_URL"),
		ClientID:         v.GetString("TIMEBACK_CLIENT_ID"),
		ClientSecret:     v.GetString("TIMEBACK_CLIENT_SECRET"),
		UpstreamTimeout:  v.GetDuration("UPSTREAM_TIMEOUT"),
		SessionJWTSecret: v.GetString("SESSION_JWT_SECRET"),
		AdminUser:        v.GetString("ADMIN_USER"),
		AdminPassHash:    v.GetString("ADMIN_PASS_HASH"),
		CORSOrigins:      csv(v.GetString("CORS_ORIGINS")),
		ResyncSchedule:   v.GetString("RESYNC_SCHEDULE"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogPretty:        v.GetBool("LOG_PRETTY"),
	}
}

func csv(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
