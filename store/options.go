package store

import (
	"log/slog"

	"github.com/delaneyj/resumeparty/lazy"
)

type Option func(*Container)

func WithLoader(l lazy.Loader) Option {
	return func(c *Container) {
		c.loader = l
	}
}

func WithScheduler(s Scheduler) Option {
	return func(c *Container) {
		c.scheduler = s
	}
}

// WithLogger sets the diagnostics logger; nil restores slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Container) {
		if l == nil {
			l = slog.Default()
		}
		c.logger = l
	}
}

// WithDevMode enables developer checks such as the owning goroutine guard.
func WithDevMode(on bool) Option {
	return func(c *Container) {
		c.devMode = on
	}
}
