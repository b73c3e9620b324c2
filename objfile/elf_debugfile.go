//go:build !darwin && !windows

package objfile

import (
	"bytes"
	"debug/elf"
	"os"
	"path/filepath"

	"github.com/backtrace-go/symbolize/mmap"
)

// debugView is a separately mapped debug file providing the DWARF sections a
// stripped binary lacks. It owns its mapping.
type debugView struct {
	data *mmap.Data
	f    *elf.File
}

func (v *debugView) Section(name string) []byte {
	return elfSection(v.f, v.data.Bytes(), name)
}

func (v *debugView) close() error {
	return v.data.Close()
}

// findDebugFile searches the GDB separate-debug-file conventions:
//
//   - /usr/lib/debug/.build-id/ab/cdef1234.debug
//   - <dir>/<debuglink>
//   - <dir>/.debug/<debuglink>
//   - /usr/lib/debug/<dir>/<debuglink>
//
// https://sourceware.org/gdb/onlinedocs/gdb/Separate-Debug-Files.html
func (o *elfObject) findDebugFile() *debugView {
	for _, rel := range o.debugFileCandidates() {
		full := filepath.Join(o.opt.RootFS, rel)
		st, err := os.Stat(full)
		if err != nil || st.IsDir() {
			continue
		}
		data, err := mmap.Open(full)
		if err != nil {
			continue
		}
		f, err := elf.NewFile(bytes.NewReader(data.Bytes()))
		if err != nil {
			data.Close()
			continue
		}
		v := &debugView{data: data, f: f}
		if len(v.Section(".debug_info")) == 0 {
			v.close()
			continue
		}
		return v
	}
	return nil
}

func (o *elfObject) debugFileCandidates() []string {
	var out []string
	if id := o.gnuBuildID(); len(id) > 2 {
		out = append(out, filepath.Join("/usr/lib/debug/.build-id", id[:2], id[2:]+".debug"))
	}
	if link := o.debugLink(); link != "" {
		dir := filepath.Dir(o.path)
		out = append(out,
			filepath.Join(dir, link),
			filepath.Join(dir, ".debug", link),
			filepath.Join("/usr/lib/debug", dir, link),
		)
	}
	return out
}

// debugLink returns the file name stored in .gnu_debuglink. The trailing
// CRC is not verified; a mismatched file fails DWARF parsing instead.
func (o *elfObject) debugLink() string {
	b := o.Section(".gnu_debuglink")
	if len(b) < 6 {
		return ""
	}
	return cString(b)
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
