// Package objfile provides read-only views over the binaries loaded into the
// process: named-section lookup, symbol-table search, and assembly of the
// DWARF debug sections. One implementation exists per object format and the
// right one is selected at build time by target platform.
package objfile

import (
	"debug/dwarf"
	"sort"

	"github.com/ianlancetaylor/demangle"
)

// Object exposes the pieces of a parsed binary needed for symbolication.
// Implementations borrow the mapped bytes they were created over and remain
// valid only while those bytes are.
type Object interface {
	// Section returns the contents of the named section, or nil when the
	// section is absent or unreadable.
	Section(name string) []byte
	// SearchSymtab finds the symbol covering addr, a file-coordinate
	// address. It reports false when the symbol table has no covering entry.
	SearchSymtab(addr uint64) (string, bool)
	// DWARF assembles the debug sections into queryable data. Missing
	// sections are treated as empty, not an error; malformed data is.
	DWARF() (*dwarf.Data, error)
	// Close releases resources owned by the view beyond the mapped bytes
	// themselves, such as a separate debug file's mapping.
	Close() error
}

// Options control how an Object resolves names and locates files.
type Options struct {
	// Demangle filters symbol-table names through the demangler. DWARF
	// names are emitted as stored.
	Demangle bool
	// RootFS prefixes file paths opened while looking for separate debug
	// files, for symbolicating inside containers or chroots.
	RootFS string
}

type symEntry struct {
	value uint64
	size  uint64
	name  string
}

// lookupSym finds the entry covering addr in a value-sorted symbol list.
// Zero-sized symbols extend to the start of the next one.
func lookupSym(syms []symEntry, addr uint64) (string, bool) {
	if len(syms) == 0 {
		return "", false
	}
	i := sort.Search(len(syms), func(i int) bool { return syms[i].value > addr })
	i--
	if i < 0 {
		return "", false
	}
	s := syms[i]
	if s.size > 0 && addr-s.value >= s.size {
		return "", false
	}
	return s.name, true
}

func finishName(name string, opt Options) string {
	if opt.Demangle {
		return demangle.Filter(name)
	}
	return name
}
