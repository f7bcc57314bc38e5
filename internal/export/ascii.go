package export

import (
	"bytes"
	"fmt"

	"hsd-scene-io/internal/hsd"
)

// Dump renders an archive as an annotated hex listing: a header block, the
// symbol tables, then the data section 16 bytes per line with relocated
// pointer words marked by '*' and their targets listed at the end of the line.
func Dump(data []byte) ([]byte, error) {
	a, err := hsd.Open(data, 0)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	h := a.Header
	fmt.Fprintf(&buf, "# hsd archive\n")
	fmt.Fprintf(&buf, "# file_size  0x%08x\n", h.FileSize)
	fmt.Fprintf(&buf, "# data_size  0x%08x\n", h.DataSize)
	fmt.Fprintf(&buf, "# relocs     %d\n", h.RelocCount)
	fmt.Fprintf(&buf, "# roots      %d\n", h.RootCount)
	fmt.Fprintf(&buf, "# refs       %d\n", h.RefCount)
	for _, s := range a.Roots {
		fmt.Fprintf(&buf, "# root 0x%08x %s\n", s.Offset, s.Name)
	}
	for _, s := range a.Refs {
		fmt.Fprintf(&buf, "# ref  0x%08x %s\n", s.Offset, s.Name)
	}

	for line := 0; line < len(a.Data); line += 16 {
		fmt.Fprintf(&buf, "%08x ", line)
		var targets []uint32
		for word := line; word < line+16 && word < len(a.Data); word += 4 {
			buf.WriteByte(' ')
			for i := word; i < word+4 && i < len(a.Data); i++ {
				fmt.Fprintf(&buf, "%02x", a.Data[i])
			}
			if t, ok, _ := a.Pointer(uint32(word)); ok {
				buf.WriteByte('*')
				targets = append(targets, t)
			} else {
				buf.WriteByte(' ')
			}
		}
		if len(targets) > 0 {
			buf.WriteString(" ;")
			for _, t := range targets {
				fmt.Fprintf(&buf, " ->%x", t)
			}
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
