//go:build windows

package inventory

import (
	"math"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// List returns a single synthetic Library covering the entire address space
// for the current executable. Loaded DLLs are not enumerated; their
// addresses resolve against the executable's debug info or not at all.
func List(logger log.Logger) []Library {
	exe, err := os.Executable()
	if err != nil {
		level.Error(logger).Log("msg", "locate executable", "err", err)
		return nil
	}
	return []Library{{
		Path:     exe,
		Segments: []Segment{{Addr: 0, Len: math.MaxUint64}},
		Bias:     0,
	}}
}
