//go:build linux

package symbolize

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/backtrace-go/symbolize/inventory"
	"github.com/backtrace-go/symbolize/objfile"
)

// strippedELF writes a minimal ELF with a symbol table and no debug sections,
// the shape of a fully stripped distro library: one function symbol covering
// file addresses [0x1000, 0x1100).
func strippedELF(t *testing.T) string {
	t.Helper()

	var symtab bytes.Buffer
	for _, s := range []elf.Sym64{
		{},
		{
			Name:  1, // offset of "stripped_fn" in strtab
			Info:  byte(elf.STB_GLOBAL)<<4 | byte(elf.STT_FUNC),
			Shndx: uint16(elf.SHN_ABS),
			Value: 0x1000,
			Size:  0x100,
		},
	} {
		require.NoError(t, binary.Write(&symtab, binary.LittleEndian, s))
	}
	strtab := []byte("\x00stripped_fn\x00")
	shstrtab := []byte("\x00.symtab\x00.strtab\x00.shstrtab\x00")

	const ehsize = 64
	symOff := uint64(ehsize)
	strOff := symOff + uint64(symtab.Len())
	shstrOff := strOff + uint64(len(strtab))
	shOff := shstrOff + uint64(len(shstrtab))
	shOff = (shOff + 7) &^ 7

	var buf bytes.Buffer
	hdr := elf.Header64{
		Type:      uint16(elf.ET_DYN),
		Machine:   uint16(elf.EM_X86_64),
		Version:   1,
		Shoff:     shOff,
		Ehsize:    ehsize,
		Shentsize: 64,
		Shnum:     4,
		Shstrndx:  3,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))

	buf.Write(symtab.Bytes())
	buf.Write(strtab)
	buf.Write(shstrtab)
	for buf.Len() < int(shOff) {
		buf.WriteByte(0)
	}
	for _, sh := range []elf.Section64{
		{},
		{
			Name:    1, // ".symtab"
			Type:    uint32(elf.SHT_SYMTAB),
			Off:     symOff,
			Size:    uint64(symtab.Len()),
			Link:    2,
			Info:    1,
			Entsize: 24,
		},
		{
			Name: 9, // ".strtab"
			Type: uint32(elf.SHT_STRTAB),
			Off:  strOff,
			Size: uint64(len(strtab)),
		},
		{
			Name: 17, // ".shstrtab"
			Type: uint32(elf.SHT_STRTAB),
			Off:  shstrOff,
			Size: uint64(len(shstrtab)),
		},
	} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, sh))
	}

	path := filepath.Join(t.TempDir(), "libstripped.so")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestOpenMappingStrippedBinary(t *testing.T) {
	m, err := openMapping(strippedELF(t), objfile.Options{})
	require.NoError(t, err)
	defer m.close()

	frames, err := m.info.FindFrames(0x1050)
	require.NoError(t, err)
	require.Empty(t, frames)

	name, ok := m.obj.SearchSymtab(0x1050)
	require.True(t, ok)
	require.Equal(t, "stripped_fn", name)
}

func TestResolveStrippedBinarySymtabOnly(t *testing.T) {
	c := newCache([]inventory.Library{{
		Path:     strippedELF(t),
		Segments: []inventory.Segment{{Addr: 0x1000, Len: 0x1000}},
		Bias:     0x10000,
	}}, defaultConfig())
	defer c.Clear()

	var frames []Frame
	c.Resolve(0x11050, func(f Frame) { frames = append(frames, f) })
	require.Len(t, frames, 1)
	require.Equal(t, "stripped_fn", frames[0].Name)
	require.Equal(t, "", frames[0].File)
	require.Equal(t, 0, frames[0].Line)
	require.Equal(t, uint64(0x1050), frames[0].Addr)
}
