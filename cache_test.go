package symbolize

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/backtrace-go/symbolize/dwarfinfo"
	"github.com/backtrace-go/symbolize/inventory"
	"github.com/backtrace-go/symbolize/objfile"
)

type fakeSymtab struct {
	name   string
	ok     bool
	closed bool
}

func (f *fakeSymtab) SearchSymtab(uint64) (string, bool) { return f.name, f.ok }
func (f *fakeSymtab) Close() error                       { f.closed = true; return nil }

type fakeFrames struct {
	frames []dwarfinfo.Frame
	err    error
}

func (f *fakeFrames) FindFrames(uint64) ([]dwarfinfo.Frame, error) { return f.frames, f.err }

// testLibs lays out n libraries of one 0x1000-long segment each, library i
// covering process addresses [i*0x10000+0x1000, i*0x10000+0x2000).
func testLibs(n int) []inventory.Library {
	libs := make([]inventory.Library, n)
	for i := range libs {
		libs[i] = inventory.Library{
			Path:     string(rune('a' + i)),
			Segments: []inventory.Segment{{Addr: 0x1000, Len: 0x1000}},
			Bias:     uint64(i) * 0x10000,
		}
	}
	return libs
}

func libAddr(i int) uint64 { return uint64(i)*0x10000 + 0x1500 }

type openRecorder struct {
	opens  map[string]int
	tables map[string]*fakeSymtab
	fail   map[string]bool
}

func newOpenRecorder() *openRecorder {
	return &openRecorder{
		opens:  map[string]int{},
		tables: map[string]*fakeSymtab{},
		fail:   map[string]bool{},
	}
}

func (r *openRecorder) open(path string, _ objfile.Options) (*mapping, error) {
	r.opens[path]++
	if r.fail[path] {
		return nil, errors.Errorf("parse %s: broken", path)
	}
	st := &fakeSymtab{name: "sym_" + path, ok: true}
	r.tables[path] = st
	return &mapping{obj: st, info: &fakeFrames{}}, nil
}

func testCache(libs []inventory.Library, size int, rec *openRecorder) *Cache {
	cfg := defaultConfig()
	cfg.size = size
	c := newCache(libs, cfg)
	c.openMapping = rec.open
	return c
}

func TestMappingReusedAcrossResolutions(t *testing.T) {
	rec := newOpenRecorder()
	c := testCache(testLibs(1), 4, rec)

	c.Resolve(libAddr(0), func(Frame) {})
	c.Resolve(libAddr(0), func(Frame) {})
	c.Resolve(libAddr(0)+8, func(Frame) {})

	require.Equal(t, 1, rec.opens["a"])
}

func TestHitPromotesAgainstEviction(t *testing.T) {
	rec := newOpenRecorder()
	c := testCache(testLibs(3), 2, rec)

	c.Resolve(libAddr(0), func(Frame) {}) // cache: a
	c.Resolve(libAddr(1), func(Frame) {}) // cache: b, a
	c.Resolve(libAddr(0), func(Frame) {}) // cache: a, b
	c.Resolve(libAddr(2), func(Frame) {}) // evicts b

	require.True(t, rec.tables["b"].closed)
	require.False(t, rec.tables["a"].closed)

	c.Resolve(libAddr(0), func(Frame) {})
	require.Equal(t, 1, rec.opens["a"])
	c.Resolve(libAddr(1), func(Frame) {})
	require.Equal(t, 2, rec.opens["b"])
}

func TestEvictionKeepsCacheBounded(t *testing.T) {
	rec := newOpenRecorder()
	c := testCache(testLibs(3), 2, rec)

	for i := 0; i < 3; i++ {
		c.Resolve(libAddr(i), func(Frame) {})
	}

	require.Equal(t, 2, c.mappings.Len())
	require.True(t, rec.tables["a"].closed)
	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.evictions))
}

func TestFailedMappingRetriedNextResolve(t *testing.T) {
	rec := newOpenRecorder()
	c := testCache(testLibs(1), 4, rec)
	rec.fail["a"] = true

	calls := 0
	c.Resolve(libAddr(0), func(Frame) { calls++ })
	require.Equal(t, 0, calls)
	require.Equal(t, 1, rec.opens["a"])
	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.mappingErrors.WithLabelValues("parse")))

	rec.fail["a"] = false
	c.Resolve(libAddr(0), func(Frame) { calls++ })
	require.Equal(t, 1, calls)
	require.Equal(t, 2, rec.opens["a"])
}

func TestClearClosesAndRebuilds(t *testing.T) {
	rec := newOpenRecorder()
	c := testCache(testLibs(2), 4, rec)

	c.Resolve(libAddr(0), func(Frame) {})
	c.Resolve(libAddr(1), func(Frame) {})
	c.Clear()

	require.True(t, rec.tables["a"].closed)
	require.True(t, rec.tables["b"].closed)
	require.Equal(t, 0, c.mappings.Len())

	calls := 0
	c.Resolve(libAddr(0), func(Frame) { calls++ })
	require.Equal(t, 1, calls)
	require.Equal(t, 2, rec.opens["a"])
}
