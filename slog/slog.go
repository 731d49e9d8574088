// Package slog provides structured logging on top of Go's [log/slog],
// with levels and formats configured from the environment and loggers
// carried on contexts.
package slog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/birdie-ai/arangoql/config"
)

type (
	// A Handler handles log records produced by a Logger.
	Handler = slog.Handler

	// HandlerOptions are options for the handlers of this package.
	HandlerOptions = slog.HandlerOptions

	// Level determines the importance or severity of a log record.
	Level = slog.Level

	// Logger extends Go's slog.Logger with [Logger.Fatal].
	Logger struct {
		*slog.Logger
	}

	// Format determines the output format of the log records.
	Format string
)

// All available log levels.
const (
	LevelInfo    Level = slog.LevelInfo
	LevelDebug   Level = slog.LevelDebug
	LevelWarn    Level = slog.LevelWarn
	LevelError   Level = slog.LevelError
	LevelDisable Level = math.MaxInt
)

// All available log formats.
const (
	FormatText   Format = "text"
	FormatGcloud Format = "gcloud"
)

// Default configurations.
const (
	DefaultLevel  = LevelInfo
	DefaultFormat = FormatGcloud
)

// Config represents log configuration.
type Config struct {
	Level  Level
	Format Format
}

// env is the log configuration as read from the environment.
type env struct {
	Log struct {
		Level string `mapstructure:"level"`
		Fmt   string `mapstructure:"fmt"`
	} `mapstructure:"log"`
}

// LoadConfig loads the log Config of the service from the environment (or a .env file).
// The service name is the prefix of the variables, a service "AQLC" has its level
// on AQLC_LOG_LEVEL and its format on AQLC_LOG_FMT.
//
// Available log levels are: "debug", "info", "warn", "error" and "disable".
// Available log formats are: "gcloud" and "text".
// Missing variables get the default values.
func LoadConfig(service string) (Config, error) {
	var e env
	if err := config.Load(service+"_", &e); err != nil {
		return Config{}, err
	}
	format, err := ParseFormat(e.Log.Fmt)
	if err != nil {
		return Config{}, err
	}
	level, err := ParseLevel(e.Log.Level)
	if err != nil {
		return Config{}, err
	}
	return Config{Level: level, Format: format}, nil
}

// New creates a new Logger with the given non-nil Handler.
func New(h Handler) *Logger {
	return &Logger{slog.New(h)}
}

// NewHandler creates a handler of the given format writing to w.
func NewHandler(w io.Writer, format Format, opts *HandlerOptions) (Handler, error) {
	switch format {
	case FormatText:
		return NewTextHandler(w, opts), nil
	case FormatGcloud:
		return NewGoogleCloudHandler(w, opts), nil
	}
	return nil, fmt.Errorf("unknown log format: %v", format)
}

// NewTextHandler creates a handler that writes key=value records to w.
func NewTextHandler(w io.Writer, opts *HandlerOptions) Handler {
	return slog.NewTextHandler(w, opts)
}

// NewGoogleCloudHandler creates a JSON handler that writes to w in a format that works well with Google Cloud Logging.
func NewGoogleCloudHandler(w io.Writer, opts *HandlerOptions) Handler {
	var o HandlerOptions
	if opts != nil {
		o = *opts
	}
	o.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		// More: https://cloud.google.com/logging/docs/agent/logging/configuration#process-payload
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.LevelKey:
			a.Key = "severity"
		case slog.MessageKey:
			a.Key = "message"
		case "http_request":
			a.Key, a.Value = convertHTTPRequest(a.Key, a.Value)
		}
		return a
	}
	return slog.NewJSONHandler(w, &o)
}

// Configure changes the default logger, which writes to stderr.
// It should be called as soon as possible, usually on the main of your program.
func Configure(cfg Config) error {
	handler, err := NewHandler(os.Stderr, cfg.Format, &HandlerOptions{Level: cfg.Level})
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// More: https://cloud.google.com/logging/docs/reference/v2/rest/v2/LogEntry#HttpRequest
func convertHTTPRequest(origKey string, origValue slog.Value) (string, slog.Value) {
	fields, ok := origValue.Any().(map[string]any)
	if !ok {
		return origKey, origValue
	}
	names := map[string]string{
		"method":        "requestMethod",
		"url":           "requestUrl",
		"request_size":  "requestSize",
		"status_code":   "status",
		"response_size": "responseSize",
		"elapsed":       "latency",
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for key, value := range fields {
		if name, ok := names[key]; ok {
			key = name
		}
		attrs = append(attrs, slog.Any(key, value))
	}
	return "httpRequest", slog.GroupValue(attrs...)
}

// Fatal is equivalent to [Logger.Error] followed by a call to os.Exit(1).
func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	os.Exit(1)
}

// With returns a Logger that includes the given attributes in each output operation.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// Info calls Logger.Info on the default logger.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Debug calls Logger.Debug on the default logger.
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Warn calls Logger.Warn on the default logger.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error calls Logger.Error on the default logger.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// Fatal is equivalent to Error() followed by a call to os.Exit(1).
func Fatal(msg string, args ...any) {
	Error(msg, args...)
	os.Exit(1)
}

// Default returns the default [Logger].
func Default() *Logger {
	return &Logger{slog.Default()}
}

// FromCtx gets the [Logger] associated with the given context. The default [Logger] is
// returned if the context has no [Logger] associated with it.
func FromCtx(ctx context.Context) *Logger {
	if log, ok := ctx.Value(loggerKey).(*Logger); ok {
		return log
	}
	return Default()
}

// NewContext creates a new [context.Context] with the given [Logger] associated with it.
// Call [FromCtx] to retrieve the [Logger].
func NewContext(ctx context.Context, log *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// key is the type used to store data on contexts.
type key int

const loggerKey key = iota

// ParseLevel parses the string and returns the corresponding [Level].
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "disable":
		return LevelDisable, nil
	}
	return 0, fmt.Errorf("invalid log level: %q", level)
}

// ParseFormat parses the string and returns the corresponding [Format].
func ParseFormat(format string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(format))); f {
	case FormatGcloud, FormatText:
		return f, nil
	case "":
		return DefaultFormat, nil
	}
	return "", fmt.Errorf("unknown log format %q", format)
}
