// Package dwarfinfo answers "which source lines produced this address"
// against parsed DWARF data, expanding inlined call chains into one frame
// per logical function.
package dwarfinfo

import (
	"debug/dwarf"
	"sort"

	"github.com/go-delve/delve/pkg/dwarf/godwarf"
	"github.com/go-delve/delve/pkg/dwarf/reader"
)

// Frame is one resolved source location. For an inlined call chain the
// innermost frame carries the line-table location of the address and each
// caller carries the call site recorded for its inlined callee.
type Frame struct {
	Name string
	File string
	Line int
}

// Table indexes DWARF data for address lookup. Compilation units are parsed
// lazily on first use and retained for the life of the table.
type Table struct {
	data        *dwarf.Data
	lines       map[dwarf.Offset][]dwarf.LineEntry
	files       map[dwarf.Offset][]*dwarf.LineFile
	subprograms map[dwarf.Offset][]*godwarf.Tree
}

func New(data *dwarf.Data) *Table {
	return &Table{
		data:        data,
		lines:       make(map[dwarf.Offset][]dwarf.LineEntry),
		files:       make(map[dwarf.Offset][]*dwarf.LineFile),
		subprograms: make(map[dwarf.Offset][]*godwarf.Tree),
	}
}

// FindFrames resolves addr to its source frames, innermost first. No
// covering compilation unit or function yields a nil slice and nil error.
// When the data turns malformed partway through, the frames built so far
// are returned alongside the error.
func (t *Table) FindFrames(addr uint64) ([]Frame, error) {
	cu, err := reader.New(t.data).SeekPC(addr)
	if err != nil || cu == nil {
		return nil, nil
	}
	// A parse failure partway through the unit keeps whatever was indexed
	// before it; resolution proceeds on that and the error rides along.
	cuErr := t.loadCU(cu)

	var fn *godwarf.Tree
	for _, tree := range t.subprograms[cu.Offset] {
		if tree.ContainsPC(addr) {
			fn = tree
			break
		}
	}
	if fn == nil {
		return nil, cuErr
	}

	chain := []*godwarf.Tree{fn}
	chain = appendInlined(chain, fn, addr)

	frames := make([]Frame, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		f := Frame{Name: t.entryName(chain[i].Entry, 0)}
		if i == len(chain)-1 {
			f.File, f.Line = t.lineAt(cu.Offset, addr)
		} else {
			f.File, f.Line = t.callSite(cu.Offset, chain[i+1].Entry)
		}
		frames = append(frames, f)
	}
	return frames, cuErr
}

// appendInlined descends into fn collecting the inlined subroutines covering
// addr, outermost first. Lexical blocks are transparent.
func appendInlined(chain []*godwarf.Tree, fn *godwarf.Tree, addr uint64) []*godwarf.Tree {
	for _, child := range fn.Children {
		switch child.Tag {
		case dwarf.TagInlinedSubroutine:
			if child.ContainsPC(addr) {
				chain = append(chain, child)
				return appendInlined(chain, child, addr)
			}
		case dwarf.TagLexDwarfBlock:
			if child.ContainsPC(addr) {
				return appendInlined(chain, child, addr)
			}
		}
	}
	return chain
}

// loadCU parses the compilation unit's line table and subprogram trees once.
func (t *Table) loadCU(cu *dwarf.Entry) error {
	if _, ok := t.subprograms[cu.Offset]; ok {
		return nil
	}
	t.subprograms[cu.Offset] = nil

	if lr, err := t.data.LineReader(cu); err == nil && lr != nil {
		var entries []dwarf.LineEntry
		var e dwarf.LineEntry
		for lr.Next(&e) == nil {
			if e.IsStmt && !e.EndSequence {
				entries = append(entries, e)
			}
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })
		t.lines[cu.Offset] = entries
		t.files[cu.Offset] = lr.Files()
	}

	r := t.data.Reader()
	r.Seek(cu.Offset)
	if _, err := r.Next(); err != nil {
		return err
	}
	for {
		entry, err := r.Next()
		if err != nil {
			return err
		}
		if entry == nil || entry.Tag == dwarf.TagCompileUnit {
			return nil
		}
		if entry.Tag != dwarf.TagSubprogram {
			continue
		}
		// Abstract instances have no address ranges of their own; their
		// concrete out-of-line and inlined copies reference them back.
		if entry.Val(dwarf.AttrInline) != nil {
			r.SkipChildren()
			continue
		}
		tree, err := godwarf.LoadTree(entry.Offset, t.data, 0)
		if err != nil {
			r.SkipChildren()
			continue
		}
		t.subprograms[cu.Offset] = append(t.subprograms[cu.Offset], tree)
		r.SkipChildren()
	}
}

// lineAt returns the source position of the greatest line-table entry at or
// below addr.
func (t *Table) lineAt(cu dwarf.Offset, addr uint64) (string, int) {
	entries := t.lines[cu]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Address > addr })
	i--
	if i < 0 {
		return "", 0
	}
	e := entries[i]
	if e.File == nil {
		return "", e.Line
	}
	return e.File.Name, e.Line
}

// attrEntry is the attribute accessor shared by *dwarf.Entry and the
// entries carried on godwarf trees.
type attrEntry interface {
	Val(dwarf.Attr) interface{}
}

// callSite reads the call file and line an inlined subroutine entry records
// for the spot it was expanded at.
func (t *Table) callSite(cu dwarf.Offset, inlined attrEntry) (string, int) {
	var file string
	if idx, ok := inlined.Val(dwarf.AttrCallFile).(int64); ok {
		files := t.files[cu]
		if idx >= 0 && idx < int64(len(files)) && files[idx] != nil {
			file = files[idx].Name
		}
	}
	var line int
	if l, ok := inlined.Val(dwarf.AttrCallLine).(int64); ok {
		line = int(l)
	}
	return file, line
}

// entryName resolves the function name of an entry, following abstract
// origin and specification references for concrete and inlined instances.
func (t *Table) entryName(entry attrEntry, depth int) string {
	if entry == nil || depth > 5 {
		return ""
	}
	if name, ok := entry.Val(dwarf.AttrName).(string); ok {
		return name
	}
	if name, ok := entry.Val(dwarf.AttrLinkageName).(string); ok {
		return name
	}
	for _, attr := range []dwarf.Attr{dwarf.AttrAbstractOrigin, dwarf.AttrSpecification} {
		off, ok := entry.Val(attr).(dwarf.Offset)
		if !ok {
			continue
		}
		r := t.data.Reader()
		r.Seek(off)
		ref, err := r.Next()
		if err != nil || ref == nil {
			continue
		}
		if name := t.entryName(ref, depth+1); name != "" {
			return name
		}
	}
	return ""
}
