package symbolize

import (
	"path/filepath"

	"github.com/backtrace-go/symbolize/dwarfinfo"
	"github.com/backtrace-go/symbolize/mmap"
	"github.com/backtrace-go/symbolize/objfile"
)

type frameFinder interface {
	FindFrames(addr uint64) ([]dwarfinfo.Frame, error)
}

type symtab interface {
	SearchSymtab(addr uint64) (string, bool)
	Close() error
}

// mapping bundles everything resolution needs for one binary: the mapped
// bytes, the parsed object over them, and the DWARF lookup table. The three
// share a lifetime and close() ends it.
type mapping struct {
	data *mmap.Data
	obj  symtab
	info frameFinder
}

func openMapping(path string, opt objfile.Options) (*mapping, error) {
	data, err := mmap.Open(filepath.Join(opt.RootFS, path))
	if err != nil {
		return nil, err
	}
	obj, err := objfile.New(data.Bytes(), path, opt)
	if err != nil {
		data.Close()
		return nil, err
	}
	// Stripped binaries have no debug sections at all and fail DWARF
	// construction; they still resolve through their symbol table.
	d, err := obj.DWARF()
	if err != nil {
		return &mapping{data: data, obj: obj, info: noDebugInfo{}}, nil
	}
	return &mapping{data: data, obj: obj, info: dwarfinfo.New(d)}, nil
}

type noDebugInfo struct{}

func (noDebugInfo) FindFrames(uint64) ([]dwarfinfo.Frame, error) { return nil, nil }

func (m *mapping) close() {
	if m.obj != nil {
		m.obj.Close()
	}
	if m.data != nil {
		m.data.Close()
	}
}
