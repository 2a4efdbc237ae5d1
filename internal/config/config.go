package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr       string
	APIBaseURL     string
	RequestTimeout time.Duration
	IdleTimeout    time.Duration
	SuccessDwell   time.Duration
	AllowedOrigins []string

	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	ServiceName  string
	KioskID      string

	AnalyticsPIN     string
	AnalyticsPINHash string
	JWTSecret        string
	AdminTokenTTL    time.Duration
}

func Load() Config {
	host, _ := os.Hostname()
	return Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":8081"),
		APIBaseURL:     ResolveAPIBase(os.Getenv("KIOSK_API_URL"), getenv("KIOSK_API_HOST", host)),
		RequestTimeout: getduration("KIOSK_REQUEST_TIMEOUT", 15*time.Second),
		IdleTimeout:    getduration("KIOSK_IDLE_TIMEOUT", 45*time.Second),
		SuccessDwell:   getduration("KIOSK_SUCCESS_DWELL", 10*time.Second),
		AllowedOrigins: splitCSV(getenv("KIOSK_ALLOWED_ORIGINS", "http://localhost:3000")),

		// empty DSN / redis / brokers turn the matching integration off
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		ServiceName:  getenv("SERVICE_NAME", "kiosk"),
		KioskID:      getenv("KIOSK_ID", host),

		AnalyticsPIN:     getenv("ANALYTICS_PIN", "1234"),
		AnalyticsPINHash: os.Getenv("ANALYTICS_PIN_HASH"),
		JWTSecret:        getenv("JWT_SECRET", "secret"),
		AdminTokenTTL:    getduration("ADMIN_TOKEN_TTL", 8*time.Hour),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
