//go:build darwin && cgo

package inventory

/*
#include <mach-o/dyld.h>
*/
import "C"

import (
	"bytes"
	"debug/macho"
	"unsafe"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// List walks the images registered with dyld. Images whose headers cannot be
// parsed are skipped without aborting the scan.
func List(logger log.Logger) []Library {
	n := C._dyld_image_count()
	libs := make([]Library, 0, int(n))
	for i := C.uint32_t(0); i < n; i++ {
		lib, ok := imageLibrary(i)
		if !ok {
			level.Debug(logger).Log("msg", "skipping image", "index", int(i))
			continue
		}
		libs = append(libs, lib)
	}
	return libs
}

func imageLibrary(i C.uint32_t) (Library, bool) {
	cname := C._dyld_get_image_name(i)
	if cname == nil {
		return Library{}, false
	}
	hdr := C._dyld_get_image_header(i)
	if hdr == nil {
		return Library{}, false
	}
	segs, firstText, textFileoffZero, ok := imageSegments(unsafe.Pointer(hdr))
	if !ok || len(segs) == 0 {
		return Library{}, false
	}

	bias := uint64(C._dyld_get_image_vmaddr_slide(i))
	// System-loaded libraries report symbol addresses relative to the slide
	// alone unless a __TEXT segment maps file offset 0 with nonzero size.
	// Shift every stated address into that space before any translation, and
	// move the difference into the bias.
	if !textFileoffZero {
		adjust := segs[firstText].Addr
		for j := range segs {
			segs[j].Addr -= adjust
		}
		bias += adjust
	}

	return Library{Path: C.GoString(cname), Segments: segs, Bias: bias}, true
}

// imageSegments parses the load commands of the in-memory Mach-O header at p.
// It reports the index of the first __TEXT segment and whether any __TEXT
// segment has on-disk offset 0 with nonzero size.
func imageSegments(p unsafe.Pointer) ([]Segment, int, bool, bool) {
	magic := *(*uint32)(p)
	var hdrSize uintptr
	switch magic {
	case macho.Magic32:
		hdrSize = unsafe.Sizeof(macho.FileHeader{})
	case macho.Magic64:
		hdrSize = unsafe.Sizeof(macho.FileHeader{}) + 4 // trailing reserved word
	default:
		return nil, 0, false, false
	}
	hdr := (*macho.FileHeader)(p)

	var segs []Segment
	firstText := 0
	textFileoffZero := false
	cmd := unsafe.Add(p, hdrSize)
	for c := uint32(0); c < hdr.Ncmd; c++ {
		kind := *(*macho.LoadCmd)(cmd)
		size := *(*uint32)(unsafe.Add(cmd, 4))
		if size < 8 {
			return nil, 0, false, false
		}
		switch kind {
		case macho.LoadCmdSegment:
			seg := (*macho.Segment32)(cmd)
			if segName(seg.Name) == "__TEXT" {
				firstText = len(segs)
				if seg.Offset == 0 && seg.Filesz > 0 {
					textFileoffZero = true
				}
			}
			segs = append(segs, Segment{Addr: uint64(seg.Addr), Len: uint64(seg.Memsz)})
		case macho.LoadCmdSegment64:
			seg := (*macho.Segment64)(cmd)
			if segName(seg.Name) == "__TEXT" {
				firstText = len(segs)
				if seg.Offset == 0 && seg.Filesz > 0 {
					textFileoffZero = true
				}
			}
			segs = append(segs, Segment{Addr: seg.Addr, Len: seg.Memsz})
		}
		cmd = unsafe.Add(cmd, uintptr(size))
	}
	return segs, firstText, textFileoffZero, true
}

func segName(name [16]byte) string {
	if i := bytes.IndexByte(name[:], 0); i >= 0 {
		return string(name[:i])
	}
	return string(name[:])
}
