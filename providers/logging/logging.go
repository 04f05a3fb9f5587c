// Package logging provides the process-wide logger as a singleton provider.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/alecthomas/providence"
)

// Config controls the handler built when the provider initializes.
type Config struct {
	Level slog.Level `help:"The default logging level." default:"info"`
	JSON  bool       `help:"Enable JSON logging."`
	// Writer defaults to os.Stdout.
	Writer io.Writer `kong:"-"`
}

var config Config

// Configure sets the logging configuration. It must be called before the
// first guarded access to [Provider] or anything that requires it.
func Configure(c Config) { config = c }

// Provider is the logging singleton. Providers that log should declare a
// dependency on it.
var Provider *providence.Provider

var logger *providence.Field[*slog.Logger]

// Wired in init() rather than var initializers: the init routine references
// the field, which references the provider, and Go rejects that cycle in
// package-level initialization expressions.
func init() {
	Provider = providence.MustDeclare("logging", providence.Init(initialize))
	logger = providence.NewField[*slog.Logger](Provider, "logger")
}

func initialize(ctx context.Context) error {
	w := config.Writer
	if w == nil {
		w = os.Stdout
	}
	var handler slog.Handler
	if config.JSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: config.Level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      config.Level,
			TimeFormat: "15:04:05",
		})
	}
	return logger.Set(ctx, slog.New(handler))
}

// Logger returns the process-wide logger, initializing the provider on first
// use.
func Logger(ctx context.Context) (*slog.Logger, error) {
	return logger.Get(ctx)
}
