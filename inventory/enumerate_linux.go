//go:build linux

package inventory

import (
	"debug/elf"
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/procfs"
)

var errBaseNotFound = fmt.Errorf("no loadable segment matches the mapping")

// List enumerates every executable file mapping of the current process from
// /proc/self/maps, one Library per distinct file. Images whose headers cannot
// be read are skipped; they contribute no Library but never abort the scan.
func List(logger log.Logger) []Library {
	proc, err := procfs.Self()
	if err != nil {
		level.Error(logger).Log("msg", "open /proc/self", "err", err)
		return nil
	}
	maps, err := proc.ProcMaps()
	if err != nil {
		level.Error(logger).Log("msg", "read /proc/self/maps", "err", err)
		return nil
	}

	var libs []Library
	seen := make(map[string]bool)
	for _, m := range maps {
		if m.Perms == nil || !m.Perms.Execute {
			continue
		}
		path := m.Pathname
		if path == "" && len(libs) == 0 {
			// The kernel reports the main executable first; fall back to our
			// own path if the mapping carries none.
			path, _ = os.Executable()
		}
		if path == "" || strings.HasPrefix(path, "[") || seen[path] {
			continue
		}
		seen[path] = true
		lib, err := libraryFor(path, m)
		if err != nil {
			level.Debug(logger).Log("msg", "skipping image", "path", path, "err", err)
			continue
		}
		libs = append(libs, lib)
	}
	return libs
}

func libraryFor(path string, m *procfs.ProcMap) (Library, error) {
	f, err := elf.Open(path)
	if err != nil {
		return Library{}, err
	}
	defer f.Close()

	var segs []Segment
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD {
			segs = append(segs, Segment{Addr: p.Vaddr, Len: p.Memsz})
		}
	}
	if len(segs) == 0 {
		return Library{}, fmt.Errorf("no loadable segments")
	}
	bias, err := loadBias(f, m)
	if err != nil {
		return Library{}, err
	}
	return Library{Path: path, Segments: segs, Bias: bias}, nil
}

// loadBias recovers where the loader placed the image relative to its stated
// addresses. Fixed-position executables load where they state. For
// position-independent images the executable mapping is matched against the
// PT_LOAD header with the same file offset.
func loadBias(f *elf.File, m *procfs.ProcMap) (uint64, error) {
	if f.Type == elf.ET_EXEC {
		return 0, nil
	}
	off := uint64(m.Offset)
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Flags&elf.PF_X == 0 {
			continue
		}
		if p.Off == off {
			return uint64(m.StartAddr) - p.Vaddr, nil
		}
	}
	// The mapping may start inside a segment when the kernel split it; fall
	// back to the containing PT_LOAD.
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if off >= p.Off && off < p.Off+p.Filesz {
			return uint64(m.StartAddr) - off - (p.Vaddr - p.Off), nil
		}
	}
	return 0, errBaseNotFound
}
