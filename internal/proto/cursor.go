package proto

import (
	"encoding/binary"
	"errors"

	"serpentine.network/internal/board"
)

var errShortBuffer = errors.New("proto: short buffer")

// cursor is a tiny write/read buffer shared by every payload's encode/decode
// pass, following the manual offset bookkeeping the teacher uses in its own
// binary serialization (engine/network.go's serializeState).
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

func (c *cursor) putUint8(v uint8) {
	c.buf = append(c.buf, v)
}

func (c *cursor) uint8() (uint8, error) {
	if c.pos+1 > len(c.buf) {
		return 0, errShortBuffer
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) putBool(v bool) {
	if v {
		c.putUint8(1)
	} else {
		c.putUint8(0)
	}
}

func (c *cursor) boolVal() (bool, error) {
	v, err := c.uint8()
	return v != 0, err
}

func (c *cursor) putUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	c.buf = append(c.buf, b[:]...)
}

func (c *cursor) uint16() (uint16, error) {
	if c.pos+2 > len(c.buf) {
		return 0, errShortBuffer
	}
	v := binary.BigEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) putUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	c.buf = append(c.buf, b[:]...)
}

func (c *cursor) uint32() (uint32, error) {
	if c.pos+4 > len(c.buf) {
		return 0, errShortBuffer
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) putInt32(v int32) {
	c.putUint32(uint32(v))
}

func (c *cursor) int32() (int32, error) {
	v, err := c.uint32()
	return int32(v), err
}

func (c *cursor) putOptionalInt32(v *int32) {
	if v == nil {
		c.putBool(false)
		return
	}
	c.putBool(true)
	c.putInt32(*v)
}

func (c *cursor) optionalInt32() (*int32, error) {
	present, err := c.boolVal()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	v, err := c.int32()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *cursor) putInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	c.buf = append(c.buf, b[:]...)
}

func (c *cursor) int64() (int64, error) {
	if c.pos+8 > len(c.buf) {
		return 0, errShortBuffer
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return int64(v), nil
}

func (c *cursor) putString(s string) {
	c.putUint16(uint16(len(s)))
	c.buf = append(c.buf, s...)
}

func (c *cursor) string() (string, error) {
	n, err := c.uint16()
	if err != nil {
		return "", err
	}
	if c.pos+int(n) > len(c.buf) {
		return "", errShortBuffer
	}
	s := string(c.buf[c.pos : c.pos+int(n)])
	c.pos += int(n)
	return s, nil
}

func (c *cursor) putOptionalRole(r *board.Role) {
	if r == nil {
		c.putBool(false)
		return
	}
	c.putBool(true)
	c.putUint8(uint8(*r))
}

func (c *cursor) optionalRole() (*board.Role, error) {
	present, err := c.boolVal()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	v, err := c.uint8()
	if err != nil {
		return nil, err
	}
	r := board.Role(v)
	return &r, nil
}
