//go:build darwin

package objfile

import (
	"bytes"
	"debug/dwarf"
	"debug/macho"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Debugging symbol table entries (stabs) carry these bits in the type field
// and do not describe code.
const machoStab = 0xe0

type machoObject struct {
	data []byte
	path string
	opt  Options
	f    *macho.File

	symsOnce bool
	syms     []symEntry
}

// New parses the mapped bytes of the binary at path as Mach-O.
func New(data []byte, path string, opt Options) (Object, error) {
	f, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return &machoObject{data: data, path: path, opt: opt, f: f}, nil
}

func (o *machoObject) Section(name string) []byte {
	s := o.f.Section(name)
	if s == nil {
		return nil
	}
	end := uint64(s.Offset) + s.Size
	if end < uint64(s.Offset) || end > uint64(len(o.data)) {
		return nil
	}
	return o.data[s.Offset:end]
}

func (o *machoObject) DWARF() (*dwarf.Data, error) {
	return o.f.DWARF()
}

func (o *machoObject) SearchSymtab(addr uint64) (string, bool) {
	o.loadSymbols()
	name, ok := lookupSym(o.syms, addr)
	if !ok {
		return "", false
	}
	return finishName(name, o.opt), true
}

func (o *machoObject) loadSymbols() {
	if o.symsOnce {
		return
	}
	o.symsOnce = true
	if o.f.Symtab == nil {
		return
	}
	for _, s := range o.f.Symtab.Syms {
		if s.Type&machoStab != 0 || s.Value == 0 || s.Name == "" {
			continue
		}
		o.syms = append(o.syms, symEntry{
			value: s.Value,
			name:  strings.TrimPrefix(s.Name, "_"),
		})
	}
	sort.Slice(o.syms, func(i, j int) bool { return o.syms[i].value < o.syms[j].value })
}

func (o *machoObject) Close() error {
	return nil
}
