package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
)

// Logger provides structured logging for remote calls and pipeline stages.
type Logger interface {
	LogDebug(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}

// LogLevel defines the logging verbosity level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ParseLogLevel maps a config string to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogFormat defines the output format for logs.
type LogFormat int

const (
	LogFormatHuman LogFormat = iota
	LogFormatJSON
)

// ParseLogFormat maps a config string to a LogFormat, defaulting to human.
func ParseLogFormat(s string) LogFormat {
	if strings.EqualFold(s, "json") {
		return LogFormatJSON
	}
	return LogFormatHuman
}

// DefaultLogger writes structured logs via the standard log package.
type DefaultLogger struct {
	level      LogLevel
	format     LogFormat
	redactKeys bool
}

// NewDefaultLogger creates a logger with the specified config.
func NewDefaultLogger(level LogLevel, format LogFormat, redactKeys bool) *DefaultLogger {
	return &DefaultLogger{
		level:      level,
		format:     format,
		redactKeys: redactKeys,
	}
}

// LogDebug logs a debug message with structured fields.
func (l *DefaultLogger) LogDebug(ctx context.Context, message string, fields map[string]interface{}) {
	l.write(LogLevelDebug, "DEBUG", message, fields)
}

// LogInfo logs an informational message with structured fields.
func (l *DefaultLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	l.write(LogLevelInfo, "INFO", message, fields)
}

// LogWarning logs a warning message with structured fields.
func (l *DefaultLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	l.write(LogLevelWarn, "WARN", message, fields)
}

// LogError logs an error message with structured fields.
func (l *DefaultLogger) LogError(ctx context.Context, message string, fields map[string]interface{}) {
	l.write(LogLevelError, "ERROR", message, fields)
}

func (l *DefaultLogger) write(level LogLevel, label, message string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	if l.format == LogFormatJSON {
		entry := make(map[string]interface{}, len(fields)+2)
		for k, v := range fields {
			entry[k] = l.redactField(k, v)
		}
		entry["level"] = strings.ToLower(label)
		entry["message"] = message
		data, err := json.Marshal(entry)
		if err != nil {
			log.Printf("[%s] %s (unmarshalable fields: %v)", label, message, err)
			return
		}
		log.Print(string(data))
		return
	}

	// Human-readable format with deterministic field ordering
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", label, message)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, l.redactField(k, fields[k]))
	}
	log.Print(sb.String())
}

// redactField hides secret values while keeping a last-4 suffix for
// correlation, matching the redaction applied to outbound request logs.
func (l *DefaultLogger) redactField(key string, value interface{}) interface{} {
	if !l.redactKeys {
		return value
	}
	lower := strings.ToLower(key)
	if !strings.Contains(lower, "token") && !strings.Contains(lower, "secret") && !strings.Contains(lower, "apikey") && !strings.Contains(lower, "api_key") {
		return value
	}
	s, ok := value.(string)
	if !ok {
		return value
	}
	return RedactSecret(s)
}

// RedactSecret shows only the last 4 characters of a secret with explicit
// redaction markers.
func RedactSecret(secret string) string {
	if len(secret) <= 4 {
		return "[REDACTED]"
	}
	return fmt.Sprintf("[REDACTED-%s]", secret[len(secret)-4:])
}
