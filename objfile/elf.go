//go:build !darwin && !windows

package objfile

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"encoding/hex"
	"io"
	"sort"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

type elfObject struct {
	data []byte
	path string
	opt  Options
	f    *elf.File

	symsOnce bool
	syms     []symEntry

	debug *debugView
}

// New parses the mapped bytes of the binary at path as ELF. When the binary
// carries no .debug_info of its own, the GDB separate-debug-file conventions
// are searched and, if a match is found, its mapping is owned by the
// returned view.
func New(data []byte, path string, opt Options) (Object, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	o := &elfObject{data: data, path: path, opt: opt, f: f}
	if len(o.Section(".debug_info")) == 0 {
		o.debug = o.findDebugFile()
	}
	return o, nil
}

func (o *elfObject) Section(name string) []byte {
	return elfSection(o.f, o.data, name)
}

func elfSection(f *elf.File, data []byte, name string) []byte {
	s := f.Section(name)
	if s == nil && len(name) > 7 && name[:7] == ".debug_" {
		s = f.Section(".zdebug_" + name[7:])
	}
	if s == nil || s.Type == elf.SHT_NOBITS {
		return nil
	}
	end := s.Offset + s.FileSize
	if end < s.Offset || end > uint64(len(data)) {
		return nil
	}
	raw := data[s.Offset:end]
	if s.Flags&elf.SHF_COMPRESSED != 0 {
		return decompressChdr(raw, f.Class, f.ByteOrder)
	}
	if len(s.Name) > 8 && s.Name[:8] == ".zdebug_" {
		return decompressZdebug(raw)
	}
	return raw
}

// decompressChdr unwraps a SHF_COMPRESSED section: an Elf_Chdr header
// followed by a zlib stream.
func decompressChdr(raw []byte, class elf.Class, bo binary.ByteOrder) []byte {
	var hdrSize int
	switch class {
	case elf.ELFCLASS64:
		hdrSize = 24
	case elf.ELFCLASS32:
		hdrSize = 12
	default:
		return nil
	}
	if len(raw) < hdrSize {
		return nil
	}
	if elf.CompressionType(bo.Uint32(raw)) != elf.COMPRESS_ZLIB {
		return nil
	}
	return inflate(raw[hdrSize:])
}

// decompressZdebug unwraps the legacy .zdebug_ encoding: "ZLIB", a big-endian
// uncompressed size, then a zlib stream.
func decompressZdebug(raw []byte) []byte {
	if len(raw) < 12 || !bytes.Equal(raw[:4], []byte("ZLIB")) {
		return nil
	}
	return inflate(raw[12:])
}

func inflate(b []byte) []byte {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	return out
}

func (o *elfObject) DWARF() (*dwarf.Data, error) {
	sec := o.Section
	if o.debug != nil {
		sec = o.debug.Section
	}
	d, err := dwarf.New(
		sec(".debug_abbrev"),
		sec(".debug_aranges"),
		sec(".debug_frame"),
		sec(".debug_info"),
		sec(".debug_line"),
		nil,
		sec(".debug_ranges"),
		sec(".debug_str"),
	)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{".debug_addr", ".debug_line_str", ".debug_str_offsets", ".debug_rnglists"} {
		if b := sec(name); len(b) > 0 {
			if err := d.AddSection(name, b); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

func (o *elfObject) SearchSymtab(addr uint64) (string, bool) {
	o.loadSymbols()
	name, ok := lookupSym(o.syms, addr)
	if !ok {
		return "", false
	}
	return finishName(name, o.opt), true
}

func (o *elfObject) loadSymbols() {
	if o.symsOnce {
		return
	}
	o.symsOnce = true
	o.syms = elfSymbols(o.f)
	if len(o.syms) == 0 {
		o.syms = o.miniDebugSymbols()
	}
	if len(o.syms) == 0 && o.debug != nil {
		o.syms = elfSymbols(o.debug.f)
	}
}

func elfSymbols(f *elf.File) []symEntry {
	syms, _ := f.Symbols()
	dyn, _ := f.DynamicSymbols()
	out := make([]symEntry, 0, len(syms)+len(dyn))
	for _, list := range [][]elf.Symbol{syms, dyn} {
		for _, s := range list {
			if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 || s.Name == "" {
				continue
			}
			out = append(out, symEntry{value: s.Value, size: s.Size, name: s.Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].value < out[j].value })
	return out
}

// miniDebugSymbols reads the xz-compressed ELF embedded in .gnu_debugdata,
// present on distributions that strip binaries but keep a minimal symbol
// table for profilers.
func (o *elfObject) miniDebugSymbols() []symEntry {
	b := o.Section(".gnu_debugdata")
	if len(b) == 0 {
		return nil
	}
	r, err := xz.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	return elfSymbols(f)
}

// BuildID identifies the binary: the GNU build ID when present, otherwise
// the Go toolchain's.
func (o *elfObject) BuildID() string {
	if id := o.gnuBuildID(); id != "" {
		return id
	}
	return o.goBuildID()
}

// gnuBuildID returns the hex GNU build ID, or "" when absent.
func (o *elfObject) gnuBuildID() string {
	b := o.Section(".note.gnu.build-id")
	if len(b) < 16 || !bytes.Equal(b[12:15], []byte("GNU")) {
		return ""
	}
	raw := b[16:]
	// 8-byte xxhash IDs show up on Container-Optimized OS.
	if len(raw) != 20 && len(raw) != 8 {
		return ""
	}
	return hex.EncodeToString(raw)
}

// goBuildID returns the Go toolchain build ID stored in .note.go.buildid.
func (o *elfObject) goBuildID() string {
	b := o.Section(".note.go.buildid")
	if len(b) < 17 || !bytes.Equal(b[12:16], []byte("Go\x00\x00")) {
		return ""
	}
	size := o.f.ByteOrder.Uint32(b[4:8])
	if uint64(16)+uint64(size) > uint64(len(b)) {
		return ""
	}
	return string(b[16 : 16+size])
}

func (o *elfObject) Close() error {
	if o.debug != nil {
		d := o.debug
		o.debug = nil
		return d.close()
	}
	return nil
}
