package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort              = "8080"
	defaultTokenHourLifespan = 168
	SessionCookieName        = "token"
	defaultCompanyName       = "Bokföring"
)

func GetPort() string {
	if port := os.Getenv("API_PORT"); port != "" {
		return port
	}
	// Cloud Run standard env var.
	return stringFromEnv("PORT", defaultPort)
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

// GetSessionLifespan is the JWT and session-cookie lifetime (default 7 days).
func GetSessionLifespan() time.Duration {
	hours := intFromEnv("TOKEN_HOUR_LIFESPAN", defaultTokenHourLifespan)
	if hours <= 0 {
		hours = defaultTokenHourLifespan
	}
	return time.Duration(hours) * time.Hour
}

func GetCompanyName() string {
	return stringFromEnv("COMPANY_NAME", defaultCompanyName)
}

func stringFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolFromEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
