package config

import "time"

// NewAuthForTest creates an Auth config for testing purposes
func NewAuthForTest(secret string, accessTTL, refreshTTL time.Duration) *Auth {
	return &Auth{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}
