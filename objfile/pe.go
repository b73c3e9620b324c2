//go:build windows

package objfile

import (
	"bytes"
	"debug/dwarf"
	"debug/pe"
	"sort"

	"github.com/pkg/errors"
)

type peObject struct {
	data      []byte
	path      string
	opt       Options
	f         *pe.File
	imageBase uint64

	symsOnce bool
	syms     []symEntry
}

// New parses the mapped bytes of the binary at path as PE/COFF.
func New(data []byte, path string, opt Options) (Object, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	o := &peObject{data: data, path: path, opt: opt, f: f}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		o.imageBase = uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		o.imageBase = oh.ImageBase
	}
	return o, nil
}

func (o *peObject) Section(name string) []byte {
	s := o.f.Section(name)
	if s == nil {
		return nil
	}
	size := uint64(s.Size)
	if s.VirtualSize != 0 && uint64(s.VirtualSize) < size {
		size = uint64(s.VirtualSize)
	}
	end := uint64(s.Offset) + size
	if end < uint64(s.Offset) || end > uint64(len(o.data)) {
		return nil
	}
	return o.data[s.Offset:end]
}

func (o *peObject) DWARF() (*dwarf.Data, error) {
	return o.f.DWARF()
}

func (o *peObject) SearchSymtab(addr uint64) (string, bool) {
	o.loadSymbols()
	name, ok := lookupSym(o.syms, addr)
	if !ok {
		return "", false
	}
	return finishName(name, o.opt), true
}

func (o *peObject) loadSymbols() {
	if o.symsOnce {
		return
	}
	o.symsOnce = true
	for _, s := range o.f.Symbols {
		if s.SectionNumber <= 0 || int(s.SectionNumber) > len(o.f.Sections) || s.Name == "" {
			continue
		}
		sect := o.f.Sections[s.SectionNumber-1]
		o.syms = append(o.syms, symEntry{
			value: o.imageBase + uint64(sect.VirtualAddress) + uint64(s.Value),
			name:  s.Name,
		})
	}
	sort.Slice(o.syms, func(i, j int) bool { return o.syms[i].value < o.syms[j].value })
}

func (o *peObject) Close() error {
	return nil
}
