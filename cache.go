package symbolize

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/backtrace-go/symbolize/inventory"
	"github.com/backtrace-go/symbolize/objfile"
)

// Cache resolves addresses against the binaries loaded into this process.
// The inventory is taken once at construction; binaries loaded later are not
// seen until a new Cache is built.
//
// A Cache performs no locking of its own. Callers must ensure no two calls
// run concurrently.
type Cache struct {
	logger  log.Logger
	metrics *Metrics
	obj     objfile.Options

	libraries []inventory.Library
	mappings  *simplelru.LRU[int, *mapping]

	// openMapping is swapped out by tests.
	openMapping func(path string, opt objfile.Options) (*mapping, error)
}

func NewCache(opts ...Option) *Cache {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return newCache(inventory.List(cfg.logger), cfg)
}

func newCache(libs []inventory.Library, cfg config) *Cache {
	c := &Cache{
		logger:      cfg.logger,
		metrics:     cfg.metrics,
		obj:         cfg.obj,
		libraries:   libs,
		openMapping: openMapping,
	}
	c.mappings, _ = simplelru.NewLRU[int, *mapping](cfg.size, func(_ int, m *mapping) {
		c.metrics.evictions.Inc()
		m.close()
	})
	return c
}

// Resolve translates addr and calls fn once per resolved frame, innermost
// first. Failure at any stage narrows the output, down to zero calls; it is
// never reported as an error.
func (c *Cache) Resolve(addr uint64, fn func(Frame)) {
	idx, fileAddr, ok := inventory.Translate(c.libraries, addr)
	if !ok {
		c.metrics.resolutions.WithLabelValues(outcomeUnresolved).Inc()
		return
	}
	m := c.mappingFor(idx)
	if m == nil {
		c.metrics.resolutions.WithLabelValues(outcomeUnresolved).Inc()
		return
	}

	frames, err := m.info.FindFrames(fileAddr)
	if err != nil {
		level.Debug(c.logger).Log("msg", "debug info lookup degraded", "path", c.libraries[idx].Path, "err", err)
	}
	if len(frames) > 0 {
		for _, f := range frames {
			fn(Frame{Addr: fileAddr, Name: f.Name, File: f.File, Line: f.Line})
		}
		c.metrics.resolutions.WithLabelValues(outcomeFrames).Inc()
		return
	}

	if name, ok := m.obj.SearchSymtab(fileAddr); ok {
		fn(Frame{Addr: fileAddr, Name: name})
		c.metrics.resolutions.WithLabelValues(outcomeSymtab).Inc()
		return
	}
	c.metrics.resolutions.WithLabelValues(outcomeUnresolved).Inc()
}

// mappingFor returns the cached mapping for library idx, building and
// inserting it on a miss. A hit moves the entry to the front; an insert past
// capacity closes the least recently used one.
func (c *Cache) mappingFor(idx int) *mapping {
	if m, ok := c.mappings.Get(idx); ok {
		return m
	}
	path := c.libraries[idx].Path
	m, err := c.openMapping(path, c.obj)
	if err != nil {
		c.metrics.mappingErrors.WithLabelValues(errorType(err)).Inc()
		level.Debug(c.logger).Log("msg", "mapping binary failed", "path", path, "err", err)
		return nil
	}
	c.mappings.Add(idx, m)
	return m
}

// Clear closes every cached mapping. The inventory is kept; subsequent
// resolutions rebuild mappings on demand.
func (c *Cache) Clear() {
	c.mappings.Purge()
}

// Close releases all cached mappings.
func (c *Cache) Close() {
	c.Clear()
}
