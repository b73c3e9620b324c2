// Package mmap maps files into memory for zero-copy, read-only access.
//
// A Data must be closed exactly when no view derived from its bytes is in
// use anymore; callers that hand out slices of Bytes are responsible for
// keeping the Data alive for as long as those slices are.
package mmap

// Data is a read-only memory mapping of a file.
type Data struct {
	b []byte
}

// Bytes returns the mapped contents. The slice is only valid until Close.
func (d *Data) Bytes() []byte {
	return d.b
}

// Len returns the size of the mapping in bytes.
func (d *Data) Len() int {
	return len(d.b)
}
