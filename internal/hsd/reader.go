package hsd

import "math"

// Cursor reads consecutive big-endian fields from the data section. The
// first out-of-range read records a TruncatedData error and every later read
// returns zero, so a struct can be read in one go and checked once.
type Cursor struct {
	a   *Archive
	off int64
	err error
}

// Offset returns the current data-relative position.
func (c *Cursor) Offset() uint32 { return uint32(c.off) }

// Err returns the first error encountered.
func (c *Cursor) Err() error { return c.err }

// Seek moves to an absolute data offset.
func (c *Cursor) Seek(off uint32) { c.off = int64(off) }

// Skip advances n bytes.
func (c *Cursor) Skip(n int) {
	c.take(n)
}

func (c *Cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if c.off+int64(n) > int64(len(c.a.Data)) {
		c.err = Errorf(TruncatedData, c.off, "read of %d bytes past end of 0x%x-byte data section", n, len(c.a.Data))
		c.off = int64(len(c.a.Data))
		return nil
	}
	b := c.a.Data[c.off : c.off+int64(n)]
	c.off += int64(n)
	return b
}

func (c *Cursor) U8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *Cursor) S8() int8 { return int8(c.U8()) }

func (c *Cursor) U16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return Order.Uint16(b)
}

func (c *Cursor) S16() int16 { return int16(c.U16()) }

func (c *Cursor) U32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return Order.Uint32(b)
}

func (c *Cursor) F32() float32 {
	return math.Float32frombits(c.U32())
}

// Vec3 reads three float32 values.
func (c *Cursor) Vec3() [3]float32 {
	return [3]float32{c.F32(), c.F32(), c.F32()}
}

// Ptr reads a pointer field. ok is false when the field is not relocated.
func (c *Cursor) Ptr() (target uint32, ok bool) {
	field := c.off
	if c.take(4) == nil {
		return 0, false
	}
	t, ok := c.a.relocs[uint32(field)]
	return t, ok
}

// Bytes reads n raw bytes.
func (c *Cursor) Bytes(n int) []byte {
	return c.take(n)
}
