package app

import "encoding/binary"

// Qualifier codes this stack understands. IEEE 1815 defines many more;
// these cover every range encoding actually used by READ and control
// requests in this implementation's scope.
const (
	QualifierStartStop1Byte  = 0x00
	QualifierStartStop2Byte = 0x01
	QualifierAllObjects     = 0x06
	QualifierCount1ByteIndexed = 0x17
	QualifierCount2ByteIndexed = 0x28
)

// ObjectHeader is one decoded group/variation header together with the
// range or prefixed-index data that followed it.
type ObjectHeader struct {
	Group     uint8
	Variation uint8
	Qualifier uint8

	// Range is valid for start-stop qualifiers: inclusive point indices.
	RangeStart int
	RangeStop  int

	// Indices is valid for count-indexed qualifiers: count index values
	// read back to back after the count field. That is the wire layout of
	// headers without object data (READ, freeze); headers with object data
	// interleave each index with its object, so their callers walk those
	// bytes themselves.
	Indices []int

	// HeaderLength is the number of bytes ParseObjectHeaderPrefix consumed
	// for this header (the same value it returns as its second result);
	// the size of any object data that follows depends on the
	// group/variation and is the caller's responsibility.
	HeaderLength int
}

// ParseObjectHeaderPrefix decodes the 3-byte group/variation/qualifier
// prefix plus whatever range or count field the qualifier implies,
// returning the header and the number of bytes consumed from buf for
// the prefix itself (not including per-object payload data).
func ParseObjectHeaderPrefix(buf []byte) (ObjectHeader, int, error) {
	if len(buf) < 3 {
		return ObjectHeader{}, 0, ErrInsufficientBytes
	}
	h := ObjectHeader{Group: buf[0], Variation: buf[1], Qualifier: buf[2]}
	pos := 3

	switch h.Qualifier {
	case QualifierAllObjects:
		// no range field follows

	case QualifierStartStop1Byte:
		if len(buf) < pos+2 {
			return ObjectHeader{}, 0, ErrInsufficientBytes
		}
		h.RangeStart = int(buf[pos])
		h.RangeStop = int(buf[pos+1])
		pos += 2
		if h.RangeStart > h.RangeStop {
			return ObjectHeader{}, 0, ErrInvalidRange
		}

	case QualifierStartStop2Byte:
		if len(buf) < pos+4 {
			return ObjectHeader{}, 0, ErrInsufficientBytes
		}
		h.RangeStart = int(binary.LittleEndian.Uint16(buf[pos : pos+2]))
		h.RangeStop = int(binary.LittleEndian.Uint16(buf[pos+2 : pos+4]))
		pos += 4
		if h.RangeStart > h.RangeStop {
			return ObjectHeader{}, 0, ErrInvalidRange
		}

	case QualifierCount1ByteIndexed:
		if len(buf) < pos+1 {
			return ObjectHeader{}, 0, ErrInsufficientBytes
		}
		count := int(buf[pos])
		pos++
		if len(buf) < pos+count {
			return ObjectHeader{}, 0, ErrInsufficientBytes
		}
		h.Indices = make([]int, count)
		for i := 0; i < count; i++ {
			h.Indices[i] = int(buf[pos])
			pos++
		}

	case QualifierCount2ByteIndexed:
		if len(buf) < pos+2 {
			return ObjectHeader{}, 0, ErrInsufficientBytes
		}
		count := int(binary.LittleEndian.Uint16(buf[pos : pos+2]))
		pos += 2
		if len(buf) < pos+2*count {
			return ObjectHeader{}, 0, ErrInsufficientBytes
		}
		h.Indices = make([]int, count)
		for i := 0; i < count; i++ {
			h.Indices[i] = int(binary.LittleEndian.Uint16(buf[pos : pos+2]))
			pos += 2
		}

	default:
		return ObjectHeader{}, 0, ErrUnknownQualifier
	}

	h.HeaderLength = pos
	return h, pos, nil
}

// Count returns the number of objects this header's range or index list
// describes.
func (h ObjectHeader) Count() int {
	if h.Indices != nil {
		return len(h.Indices)
	}
	if h.Qualifier == QualifierAllObjects {
		return -1 // unbounded: caller enumerates every point of the type
	}
	return h.RangeStop - h.RangeStart + 1
}

// ForEachIndex invokes fn once per point index this header describes,
// in ascending order. It does not support QualifierAllObjects, since
// that requires iterating the database's own point set.
func (h ObjectHeader) ForEachIndex(fn func(index int)) {
	if h.Indices != nil {
		for _, idx := range h.Indices {
			fn(idx)
		}
		return
	}
	for i := h.RangeStart; i <= h.RangeStop; i++ {
		fn(i)
	}
}
