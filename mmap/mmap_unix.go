//go:build unix

package mmap

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Open maps the file at path read-only and private.
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
	b, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s", path)
	}
	return &Data{b: b}, nil
}

// Close releases the mapping. Safe to call more than once.
func (d *Data) Close() error {
	if d.b == nil {
		return nil
	}
	b := d.b
	d.b = nil
	return unix.Munmap(b)
}
