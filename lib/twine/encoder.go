package twine

import (
	"encoding/binary"
	"math"

	"github.com/c-cube/twine-go/lib/bytesink"
)

// high-nibble tag values, per the wire format table.
const (
	highAtomic     = 0
	highIntPos     = 1
	highIntNeg     = 2
	highFloat      = 3
	highString     = 4
	highBytes      = 5
	highArray      = 6
	highMap        = 7
	highTag        = 8
	highReserved9  = 9
	highVariant0   = 10
	highVariant1   = 11
	highVariantN   = 12
	highReserved13 = 13
	highRef        = 14
	highPointer    = 15
)

// atomic low-nibble values (high == highAtomic).
const (
	lowFalse = 0
	lowTrue  = 1
	lowNull  = 2
)

// Encoder sequentially writes twine values into a byte sink, tracking
// the current byte offset. Every writer except WriteCstor (which returns
// an Immediate) returns the offset at which the value it wrote started.
// The zero value is not usable; construct with
// NewEncoder.
type Encoder struct {
	sink *bytesink.Sink
}

// NewEncoder creates an encoder writing into a fresh internal sink.
func NewEncoder() *Encoder {
	return &Encoder{sink: bytesink.New()}
}

// Bytes returns the bytes written so far. The returned slice aliases
// the encoder's internal buffer and must not be mutated.
func (e *Encoder) Bytes() []byte {
	return e.sink.Bytes()
}

// Offset returns the current write offset (the offset the next value
// would start at).
func (e *Encoder) Offset() Offset {
	return e.sink.Offset()
}

// firstByte writes the single tag byte (high<<4)|low and returns the
// offset it was written at.
func (e *Encoder) firstByte(high, low uint8) Offset {
	return e.sink.WriteByte((high << 4) | low)
}

// firstByteAndU64 writes the tag byte for high plus the u64-with-low
// encoding of n (spec.md §4.1), and returns the offset the tag byte
// started at.
func (e *Encoder) firstByteAndU64(high uint8, n uint64) Offset {
	if n < 15 {
		return e.firstByte(high, uint8(n))
	}
	var buf [11]byte
	buf[0] = (high << 4) | 15
	l := encLEB128(n-15, buf[1:])
	return e.sink.Write(buf[:l+1])
}

// WriteNull writes a null value.
func (e *Encoder) WriteNull() Offset {
	return e.firstByte(highAtomic, lowNull)
}

// WriteBool writes a boolean value.
func (e *Encoder) WriteBool(b bool) Offset {
	if b {
		return e.firstByte(highAtomic, lowTrue)
	}
	return e.firstByte(highAtomic, lowFalse)
}

// WriteI64 writes a signed 64-bit integer, routing to the non-negative
// or negative encoding depending on sign.
func (e *Encoder) WriteI64(n int64) Offset {
	if n < 0 {
		return e.firstByteAndU64(highIntNeg, uint64(-(n+1)))
	}
	return e.firstByteAndU64(highIntPos, uint64(n))
}

// WriteF32 writes a 32-bit float, stored as 4 little-endian bytes.
func (e *Encoder) WriteF32(f float32) Offset {
	off := e.firstByte(highFloat, 0)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
	e.sink.Write(buf[:])
	return off
}

// WriteF64 writes a 64-bit float, stored as 8 little-endian bytes.
func (e *Encoder) WriteF64(f float64) Offset {
	off := e.firstByte(highFloat, 1)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	e.sink.Write(buf[:])
	return off
}

// WriteString writes a UTF-8 string.
func (e *Encoder) WriteString(s string) Offset {
	off := e.firstByteAndU64(highString, uint64(len(s)))
	e.sink.Write([]byte(s))
	return off
}

// WriteBytes writes a binary blob.
func (e *Encoder) WriteBytes(b []byte) Offset {
	off := e.firstByteAndU64(highBytes, uint64(len(b)))
	e.sink.Write(b)
	return off
}

// WriteVariant0 writes a zero-argument variant (constructor) value.
func (e *Encoder) WriteVariant0(idx VariantIdx) Offset {
	return e.firstByteAndU64(highVariant0, uint64(idx))
}

// WriteRef writes an explicit back-reference to p, a previously
// returned offset. It panics if p is not strictly earlier than the
// current offset — the caller may only reference already-written
// values (a programmer error, per spec.md §4.3).
func (e *Encoder) WriteRef(p Offset) Offset {
	off := e.Offset()
	if off <= p {
		panic("twine: WriteRef target must be strictly before the current offset")
	}
	return e.firstByteAndU64(highRef, off-p-1)
}

// WritePointer writes a transparent back-reference to p, a previously
// returned offset. Same preconditions as WriteRef.
func (e *Encoder) WritePointer(p Offset) Offset {
	off := e.Offset()
	if off <= p {
		panic("twine: WritePointer target must be strictly before the current offset")
	}
	return e.firstByteAndU64(highPointer, off-p-1)
}

// WriteTag writes a tag wrapping a single immediate value.
func (e *Encoder) WriteTag(tag Tag, v Immediate) Offset {
	off := e.firstByteAndU64(highTag, uint64(tag))
	e.WriteImmediate(v)
	return off
}

// WriteArray writes an array of immediates. Composite children must
// already have been written and passed in as Pointer/Ref immediates.
func (e *Encoder) WriteArray(arr []Immediate) Offset {
	off := e.firstByteAndU64(highArray, uint64(len(arr)))
	for _, v := range arr {
		e.WriteImmediate(v)
	}
	return off
}

// WriteMap writes a map of (key, value) immediate pairs. Composite
// children must already have been written and passed in as
// Pointer/Ref immediates.
func (e *Encoder) WriteMap(pairs [][2]Immediate) Offset {
	off := e.firstByteAndU64(highMap, uint64(len(pairs)))
	for _, kv := range pairs {
		e.WriteImmediate(kv[0])
		e.WriteImmediate(kv[1])
	}
	return off
}

// WriteCstor writes a constructor with the given variant index and
// immediate arguments. Returns the Immediate a parent should embed: for
// zero arguments no bytes are written at all — a Variant0 immediate is
// itself cheap to embed or write later, exactly like any other
// immediate — while for one or more arguments the constructor is
// written immediately and a Pointer to it is returned.
func (e *Encoder) WriteCstor(idx VariantIdx, args []Immediate) Immediate {
	switch len(args) {
	case 0:
		return ImmediateVariant0(idx)
	case 1:
		off := e.firstByteAndU64(highVariant1, uint64(idx))
		e.WriteImmediate(args[0])
		return ImmediatePointer(off)
	default:
		off := e.firstByteAndU64(highVariantN, uint64(idx))
		var lenBuf [10]byte
		l := encLEB128(uint64(len(args)), lenBuf[:])
		e.sink.Write(lenBuf[:l])
		for _, a := range args {
			e.WriteImmediate(a)
		}
		return ImmediatePointer(off)
	}
}

// WriteImmediate writes an immediate value out in full (even if it is a
// Pointer, which costs one small indirection record) and returns the
// offset it was written at. Most callers building composite values want
// WriteImmediateOrReturnPointer instead.
func (e *Encoder) WriteImmediate(imm Immediate) Offset {
	switch imm.Kind {
	case KindNull:
		return e.WriteNull()
	case KindBool:
		return e.WriteBool(imm.Bool)
	case KindInt64:
		return e.WriteI64(imm.Int64)
	case KindFloat:
		return e.WriteF64(imm.Float)
	case KindString:
		return e.WriteString(imm.String)
	case KindBytes:
		return e.WriteBytes(imm.Bytes)
	case KindVariant0:
		return e.WriteVariant0(imm.Variant)
	case KindRef:
		return e.WriteRef(imm.Offset)
	case KindPointer:
		return e.WritePointer(imm.Offset)
	default:
		panic("twine: invalid Immediate kind")
	}
}

// WriteImmediateOrReturnPointer writes imm unless it is already a
// Pointer, in which case no bytes are written and the pointer's target
// offset is returned unchanged. This is how deep-value writers avoid
// duplicating already-emitted sub-values (spec.md §4.3).
func (e *Encoder) WriteImmediateOrReturnPointer(imm Immediate) Offset {
	if imm.Kind == KindPointer {
		return imm.Offset
	}
	return e.WriteImmediate(imm)
}

// Finalize materializes entry (via WriteImmediateOrReturnPointer),
// computes the postfix delta back to it, rescues the delta through an
// intermediate pointer if it would not fit in a byte (> 250), and
// appends the single postfix byte. It consumes the encoder: the caller
// must not write through it again afterward.
func (e *Encoder) Finalize(entry Immediate) []byte {
	entryOff := e.WriteImmediateOrReturnPointer(entry)

	top := e.Offset()
	if top <= entryOff {
		panic("twine: Finalize entry offset must be strictly before the current offset")
	}
	delta := top - entryOff - 1

	if delta > 250 {
		ptrOff := e.WritePointer(entryOff)
		top = e.Offset()
		delta = top - ptrOff - 1
	}

	if delta > 250 {
		panic("twine: postfix delta rescue failed to fit in a byte")
	}
	e.sink.WriteByte(byte(delta))

	return e.sink.Bytes()
}
