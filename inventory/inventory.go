// Package inventory enumerates the binary images mapped into the current
// process and translates runtime addresses into the address space of a
// specific image's file.
//
// The enumeration is platform-specific and happens once per List call;
// the result set is immutable afterwards.
package inventory

// Segment is a contiguous region of a library as stated in the binary's own
// load metadata, before the loader's relocation is applied.
type Segment struct {
	// Addr is the stated virtual address written in the file. The segment is
	// not actually loaded here; Addr plus the library's Bias is where it
	// lives at runtime.
	Addr uint64
	// Len is the size of the segment in memory.
	Len uint64
}

// Library identifies one binary image loaded into the process.
type Library struct {
	// Path of the backing file. Best-effort for the main executable on some
	// platforms.
	Path string
	// Segments of this library, in load-command order.
	Segments []Segment
	// Bias is added to a stated address to obtain the runtime address, and
	// subtracted from a runtime address to index the file's debug info and
	// symbol table.
	Bias uint64
}

// Translate converts the runtime address addr into an index into libs and an
// address within that library's file coordinate space. Libraries are scanned
// in inventory order and the first one with a covering segment wins;
// overlapping libraries are not expected in practice.
func Translate(libs []Library, addr uint64) (int, uint64, bool) {
	for i := range libs {
		lib := &libs[i]
		for _, s := range lib.Segments {
			start := lib.Bias + s.Addr
			if addr >= start && addr-start < s.Len {
				return i, addr - lib.Bias, true
			}
		}
	}
	return 0, 0, false
}
