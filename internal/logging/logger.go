// Package logging builds the daemon's zap logger.
package logging

import (
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvLevel      = "NOTICED_LOG"
	EnvDiagnostic = "NOTICED_DIAGNOSTIC"
	EnvLimit      = "NOTICED_LOG_LIMIT"

	defaultDiagnosticLimit = 120
	defaultLimit           = 48
)

// New creates a structured logger. format is "json" for production output,
// anything else gives colored console output. The NOTICED_LOG environment
// variable overrides level; an invalid level falls back to info.
func New(level, format string) (*zap.Logger, error) {
	var config zap.Config

	if format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if env := os.Getenv(EnvLevel); env != "" {
		level = env
	}
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build()
}

// Diagnostic reports whether verbose free-text logging is enabled.
func Diagnostic() bool {
	v := os.Getenv(EnvDiagnostic)
	return v == "1" || strings.EqualFold(v, "true")
}

// Snippet flattens s to one line and caps it for logging.
func Snippet(s string) string {
	return truncate(s, snippetLimit())
}

// SnippetField is Snippet as a zap field.
func SnippetField(key, s string) zap.Field {
	return zap.String(key, Snippet(s))
}

func snippetLimit() int {
	if !Diagnostic() {
		return defaultLimit
	}
	if v, err := strconv.Atoi(os.Getenv(EnvLimit)); err == nil && v > 0 {
		return v
	}
	return defaultDiagnosticLimit
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
