//go:build windows

package mmap

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// Open maps the file at path read-only. The file and section handles are
// closed immediately; the view alone keeps the mapping alive.
func Open(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	size := st.Size()
	if size == 0 {
		return &Data{}, nil
	}
	if size != int64(int(size)) {
		return nil, errors.Errorf("%s: file too large to map", path)
	}

	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "CreateFileMapping %s", path)
	}
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	windows.CloseHandle(h)
	if err != nil {
		return nil, errors.Wrapf(err, "MapViewOfFile %s", path)
	}
	return &Data{b: unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))}, nil
}

// Close releases the mapping. Safe to call more than once.
func (d *Data) Close() error {
	if d.b == nil {
		return nil
	}
	b := d.b
	d.b = nil
	return windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&b[0])))
}
