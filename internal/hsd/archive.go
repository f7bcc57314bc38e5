package hsd

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// Order is the byte order of every multi-byte field. GameCube archives are
// big-endian; there is no per-call override.
var Order = binary.BigEndian

// HeaderSize is the size of the archive header preceding the data section.
const HeaderSize = 0x20

// Header is the fixed archive header.
type Header struct {
	FileSize   uint32
	DataSize   uint32
	RelocCount uint32
	RootCount  uint32
	RefCount   uint32
	Version    [4]byte
}

// Symbol is one entry of the root or reference table.
type Symbol struct {
	Name   string
	Offset uint32
}

// Archive is a parsed HSD archive: the data section plus its relocation and
// symbol tables. Offsets are relative to the start of the data section.
type Archive struct {
	Header Header
	Data   []byte
	Roots  []Symbol
	Refs   []Symbol

	// pointer field offset -> target offset
	relocs      map[uint32]uint32
	relocFields []uint32
}

// Open parses the archive that starts at offset inside buf. The returned
// archive aliases buf.
func Open(buf []byte, offset int) (*Archive, error) {
	if offset < 0 || offset > len(buf) {
		return nil, Errorf(CorruptFormat, int64(offset), "section offset outside %d-byte file", len(buf))
	}
	raw := buf[offset:]
	if len(raw) < HeaderSize {
		return nil, Errorf(TruncatedData, 0, "header needs %d bytes, have %d", HeaderSize, len(raw))
	}

	var h Header
	h.FileSize = Order.Uint32(raw[0x00:])
	h.DataSize = Order.Uint32(raw[0x04:])
	h.RelocCount = Order.Uint32(raw[0x08:])
	h.RootCount = Order.Uint32(raw[0x0C:])
	h.RefCount = Order.Uint32(raw[0x10:])
	copy(h.Version[:], raw[0x14:0x18])

	if int64(h.FileSize) > int64(len(raw)) {
		return nil, Errorf(TruncatedData, 0, "header declares %d bytes, have %d", h.FileSize, len(raw))
	}
	raw = raw[:h.FileSize]

	tables := int64(HeaderSize) + int64(h.DataSize)
	relocEnd := tables + 4*int64(h.RelocCount)
	symEnd := relocEnd + 8*(int64(h.RootCount)+int64(h.RefCount))
	if symEnd > int64(len(raw)) {
		return nil, Errorf(TruncatedData, 0, "tables end at 0x%x past file size 0x%x", symEnd, len(raw))
	}

	a := &Archive{
		Header:      h,
		Data:        raw[HeaderSize:tables],
		relocs:      make(map[uint32]uint32, h.RelocCount),
		relocFields: make([]uint32, 0, h.RelocCount),
	}

	for i := int64(0); i < int64(h.RelocCount); i++ {
		field := Order.Uint32(raw[tables+4*i:])
		if int64(field)+4 > int64(h.DataSize) || field%4 != 0 {
			return nil, Errorf(CorruptFormat, int64(field), "relocation entry %d outside data section", i)
		}
		target := Order.Uint32(a.Data[field:])
		if target >= h.DataSize {
			return nil, Errorf(CorruptFormat, int64(field), "pointer to 0x%x outside 0x%x-byte data section", target, h.DataSize)
		}
		a.relocs[field] = target
		a.relocFields = append(a.relocFields, field)
	}

	strtab := raw[symEnd:]
	readSyms := func(base int64, n uint32) ([]Symbol, error) {
		syms := make([]Symbol, 0, n)
		for i := int64(0); i < int64(n); i++ {
			e := raw[base+8*i:]
			off, nameOff := Order.Uint32(e), Order.Uint32(e[4:])
			if off >= h.DataSize {
				return nil, Errorf(CorruptFormat, int64(off), "symbol %d points outside data section", i)
			}
			if int64(nameOff) >= int64(len(strtab)) {
				return nil, Errorf(TruncatedData, int64(nameOff), "symbol %d name outside string table", i)
			}
			name := strtab[nameOff:]
			end := bytes.IndexByte(name, 0)
			if end < 0 {
				return nil, Errorf(TruncatedData, int64(nameOff), "unterminated symbol name")
			}
			syms = append(syms, Symbol{Name: string(name[:end]), Offset: off})
		}
		return syms, nil
	}

	var err error
	if a.Roots, err = readSyms(relocEnd, h.RootCount); err != nil {
		return nil, err
	}
	if a.Refs, err = readSyms(relocEnd+8*int64(h.RootCount), h.RefCount); err != nil {
		return nil, err
	}
	return a, nil
}

// Lookup finds a root symbol by name.
func (a *Archive) Lookup(name string) (Symbol, error) {
	for _, s := range a.Roots {
		if s.Name == name {
			return s, nil
		}
	}
	return Symbol{}, Errorf(SymbolNotFound, -1, "no root symbol %q (have %d roots)", name, len(a.Roots))
}

// Resolve returns the fixed-up target when off is a relocated pointer field,
// otherwise off itself. Offsets outside the data section are corrupt.
func (a *Archive) Resolve(off uint32) (uint32, error) {
	if t, ok := a.relocs[off]; ok {
		return t, nil
	}
	if off >= uint32(len(a.Data)) {
		return 0, Errorf(CorruptFormat, int64(off), "offset outside 0x%x-byte data section", len(a.Data))
	}
	return off, nil
}

// Pointer reads the pointer field at field. ok is false for a null pointer,
// i.e. a field the relocation table does not list.
func (a *Archive) Pointer(field uint32) (target uint32, ok bool, err error) {
	if int64(field)+4 > int64(len(a.Data)) {
		return 0, false, Errorf(TruncatedData, int64(field), "pointer field past end of data")
	}
	t, ok := a.relocs[field]
	return t, ok, nil
}

// IsPointer reports whether field is listed in the relocation table.
func (a *Archive) IsPointer(field uint32) bool {
	_, ok := a.relocs[field]
	return ok
}

// RelocFields returns the relocated field offsets in ascending order.
func (a *Archive) RelocFields() []uint32 {
	out := append([]uint32(nil), a.relocFields...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// At returns a cursor positioned at off.
func (a *Archive) At(off uint32) *Cursor {
	return &Cursor{a: a, off: int64(off)}
}

// Bytes returns n bytes at off.
func (a *Archive) Bytes(off uint32, n int) ([]byte, error) {
	if n < 0 || int64(off)+int64(n) > int64(len(a.Data)) {
		return nil, Errorf(TruncatedData, int64(off), "%d bytes requested, 0x%x available", n, int64(len(a.Data))-int64(off))
	}
	return a.Data[off : int(off)+n], nil
}

// CString reads a NUL-terminated string at off.
func (a *Archive) CString(off uint32) (string, error) {
	if int64(off) >= int64(len(a.Data)) {
		return "", Errorf(TruncatedData, int64(off), "string past end of data")
	}
	end := bytes.IndexByte(a.Data[off:], 0)
	if end < 0 {
		return "", Errorf(TruncatedData, int64(off), "unterminated string")
	}
	return string(a.Data[off : int(off)+end]), nil
}
