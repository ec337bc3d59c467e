package config

import (
	"os"
	"strconv"
	"time"
)

type OTPConfig struct {
	CodeLength         int
	CodeTTL            time.Duration
	MaxAttempts        int
	MaxIssuePerSubject int
	RateLimitWindow    time.Duration
}

func LoadOTPConfig() *OTPConfig {
	return &OTPConfig{
		CodeLength:         getEnvAsInt("OTP_CODE_LENGTH", 6),
		CodeTTL:            getEnvAsDuration("OTP_CODE_TTL", 10*time.Minute),
		MaxAttempts:        getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
		MaxIssuePerSubject: getEnvAsInt("OTP_MAX_ISSUE_PER_SUBJECT", 5),
		RateLimitWindow:    getEnvAsDuration("OTP_RATE_LIMIT_WINDOW", 1*time.Hour),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
