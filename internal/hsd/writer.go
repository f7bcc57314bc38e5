package hsd

import (
	"fmt"
	"math"
	"sort"
)

// Builder lays out a data section and produces a complete archive. Offsets are
// handed out in call order, so the same sequence of calls always yields the
// same bytes.
type Builder struct {
	data   []byte
	relocs map[uint32]struct{}
	roots  []Symbol
	refs   []Symbol
}

func NewBuilder() *Builder {
	return &Builder{relocs: make(map[uint32]struct{})}
}

// Len returns the current data section size.
func (b *Builder) Len() uint32 { return uint32(len(b.data)) }

// Alloc reserves size zeroed bytes aligned to align and returns their offset.
func (b *Builder) Alloc(size, align int) uint32 {
	if align < 4 {
		align = 4
	}
	for len(b.data)%align != 0 {
		b.data = append(b.data, 0)
	}
	off := uint32(len(b.data))
	b.data = append(b.data, make([]byte, size)...)
	return off
}

// Append copies p into a fresh aligned block.
func (b *Builder) Append(p []byte, align int) uint32 {
	off := b.Alloc(len(p), align)
	copy(b.data[off:], p)
	return off
}

// CString stores a NUL-terminated string.
func (b *Builder) CString(s string) uint32 {
	return b.Append(append([]byte(s), 0), 4)
}

func (b *Builder) PutU8(off uint32, v uint8) { b.data[off] = v }

func (b *Builder) PutU16(off uint32, v uint16) { Order.PutUint16(b.data[off:], v) }

func (b *Builder) PutU32(off uint32, v uint32) { Order.PutUint32(b.data[off:], v) }

// PutBytes copies p to off.
func (b *Builder) PutBytes(off uint32, p []byte) { copy(b.data[off:], p) }

func (b *Builder) PutF32(off uint32, v float32) { b.PutU32(off, math.Float32bits(v)) }

// PutVec3 writes three consecutive float32 values.
func (b *Builder) PutVec3(off uint32, v [3]float32) {
	for i, f := range v {
		b.PutF32(off+uint32(4*i), f)
	}
}

// PutPtr stores target at field and records field in the relocation table.
func (b *Builder) PutPtr(field, target uint32) {
	b.PutU32(field, target)
	b.relocs[field] = struct{}{}
}

// AddRoot registers a named root symbol.
func (b *Builder) AddRoot(name string, off uint32) {
	b.roots = append(b.roots, Symbol{Name: name, Offset: off})
}

// AddRef registers a named reference symbol.
func (b *Builder) AddRef(name string, off uint32) {
	b.refs = append(b.refs, Symbol{Name: name, Offset: off})
}

// Bytes serializes header, data, sorted relocation table, symbol tables and
// string table.
func (b *Builder) Bytes() ([]byte, error) {
	for len(b.data)%4 != 0 {
		b.data = append(b.data, 0)
	}
	if uint64(len(b.data)) > math.MaxUint32 {
		return nil, fmt.Errorf("hsd: data section of %d bytes too large", len(b.data))
	}

	fields := make([]uint32, 0, len(b.relocs))
	for f := range b.relocs {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	var strtab []byte
	names := make(map[string]uint32)
	nameOff := func(s string) uint32 {
		if off, ok := names[s]; ok {
			return off
		}
		off := uint32(len(strtab))
		strtab = append(strtab, s...)
		strtab = append(strtab, 0)
		names[s] = off
		return off
	}

	size := HeaderSize + len(b.data) + 4*len(fields) + 8*(len(b.roots)+len(b.refs))
	out := make([]byte, size, size+64)
	Order.PutUint32(out[0x04:], uint32(len(b.data)))
	Order.PutUint32(out[0x08:], uint32(len(fields)))
	Order.PutUint32(out[0x0C:], uint32(len(b.roots)))
	Order.PutUint32(out[0x10:], uint32(len(b.refs)))
	copy(out[HeaderSize:], b.data)

	p := HeaderSize + len(b.data)
	for _, f := range fields {
		Order.PutUint32(out[p:], f)
		p += 4
	}
	for _, s := range append(append([]Symbol(nil), b.roots...), b.refs...) {
		Order.PutUint32(out[p:], s.Offset)
		Order.PutUint32(out[p+4:], nameOff(s.Name))
		p += 8
	}
	out = append(out, strtab...)
	Order.PutUint32(out[0x00:], uint32(len(out)))
	return out, nil
}
