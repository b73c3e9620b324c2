// Package symbolize turns addresses observed in this process into source
// frames: function name, file, and line, with inlined calls expanded. It
// reads the DWARF debug information of the loaded binaries and falls back to
// their symbol tables when line information is absent.
//
// The package-level functions share one lazily built Cache. They perform no
// locking; callers that may resolve from multiple goroutines, or from a
// signal handler racing normal execution, must serialize access themselves.
package symbolize

// Frame is one resolved source frame. Addr is the address relative to the
// containing binary's stated load addresses, so it is stable across runs of
// a position independent executable. File and Line are zero when only the
// symbol table knew the address.
type Frame struct {
	Addr uint64
	Name string
	File string
	Line int
}

var global *Cache

// Resolve resolves addr against the shared cache, calling fn once per frame,
// innermost first. Unresolvable addresses produce no calls.
func Resolve(addr uint64, fn func(Frame)) {
	if global == nil {
		global = NewCache()
	}
	global.Resolve(addr, fn)
}

// ClearSymbolCache closes the mapped binaries held by the shared cache,
// returning their memory. Later Resolve calls remap on demand.
func ClearSymbolCache() {
	if global != nil {
		global.Clear()
	}
}
