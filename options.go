package symbolize

import (
	"github.com/go-kit/log"

	"github.com/backtrace-go/symbolize/objfile"
)

const defaultCacheSize = 4

type config struct {
	logger  log.Logger
	metrics *Metrics
	size    int
	obj     objfile.Options
}

func defaultConfig() config {
	return config{
		logger:  log.NewNopLogger(),
		metrics: NewMetrics(nil),
		size:    defaultCacheSize,
	}
}

// Option configures a Cache.
type Option func(*config)

// WithLogger directs diagnostic output to l. Resolution never fails loudly,
// so this is the only place degraded lookups are visible outside metrics.
func WithLogger(l log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics uses m instead of unregistered metrics. Nil is ignored.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithCacheSize bounds how many binaries stay mapped at once. Values below
// one are ignored.
func WithCacheSize(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.size = n
		}
	}
}

// WithDemangle filters symbol-table names through the demangler.
func WithDemangle() Option {
	return func(c *config) { c.obj.Demangle = true }
}

// WithRootFS prefixes every file path opened during resolution with dir.
func WithRootFS(dir string) Option {
	return func(c *config) { c.obj.RootFS = dir }
}
