package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Tyrowin/linechat/internal/auth"
	"github.com/Tyrowin/linechat/internal/config"
	"github.com/Tyrowin/linechat/internal/eventlog"
)

const (
	defaultMaxLineBytes = 4096
	defaultWriteTimeout = 10 * time.Second
)

// Options configures a Server. AdminSecret is required; everything else
// has a usable default.
type Options struct {
	AdminSecret    *auth.AdminSecret
	Recorder       eventlog.Recorder
	Registry       *Registry
	Logger         *slog.Logger
	MaxLineBytes   int
	WriteTimeout   time.Duration
	AllowedOrigins []string

	// SilentJoins turns off the "client <id> connected" broadcast. Joins
	// are always written to the event log.
	SilentJoins bool
}

// OptionsFromConfig maps the file/env configuration onto server options.
func OptionsFromConfig(cfg *config.Config, secret *auth.AdminSecret, rec eventlog.Recorder, logger *slog.Logger) Options {
	return Options{
		AdminSecret:    secret,
		Recorder:       rec,
		Logger:         logger,
		MaxLineBytes:   cfg.MaxLineBytes,
		WriteTimeout:   cfg.WriteTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
		SilentJoins:    !cfg.AnnounceJoins,
	}
}

func sanitizeOptions(opts Options) (Options, error) {
	if opts.AdminSecret == nil {
		return opts, errors.New("admin secret is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = eventlog.Discard{}
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry(opts.Logger)
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = defaultMaxLineBytes
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	opts.AllowedOrigins = append([]string(nil), opts.AllowedOrigins...)
	return opts, nil
}
