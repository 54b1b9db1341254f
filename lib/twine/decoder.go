package twine

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Decoder is a random-access reader over an immutable twine blob. It
// holds no mutable state beyond the byte slice reference, so a Decoder
// is safe to share by reference across concurrent readers.
type Decoder struct {
	bs []byte
}

// NewDecoder wraps bs for shallow, random-access reads. It fails if bs
// is larger than 2^32-1 bytes (spec.md §3).
func NewDecoder(bs []byte) (*Decoder, error) {
	if uint64(len(bs)) > uint64(^uint32(0)) {
		return nil, errAt("byte buffer is too long", 0)
	}
	return &Decoder{bs: bs}, nil
}

// firstByte reads the (high, low) nibbles at off.
func (d *Decoder) firstByte(off Offset) (uint8, uint8, error) {
	if off >= uint64(len(d.bs)) {
		return 0, 0, errAt("offset out of bounds", off)
	}
	c := d.bs[off]
	return c >> 4, c & 0xf, nil
}

// u64WithLow decodes the u64-with-low payload convention: if low < 15,
// the value is low itself with no following bytes; otherwise a LEB128
// value follows and the logical value is 15+decoded. Returns the value
// and the number of bytes consumed after the tag byte.
func (d *Decoder) u64WithLow(off Offset, low uint8) (uint64, Offset, error) {
	if low < 15 {
		return uint64(low), 0, nil
	}
	rest, consumed, err := d.decLEB128(off + 1)
	if err != nil {
		return 0, 0, err
	}
	return rest + 15, Offset(consumed), nil
}

// Deref follows high==15 (Pointer) entries starting at off until it
// reaches a non-Pointer offset, which it returns. Most other decoder
// operations call this implicitly.
func (d *Decoder) Deref(off Offset) (Offset, error) {
	for {
		high, low, err := d.firstByte(off)
		if err != nil {
			return 0, err
		}
		if high != highPointer {
			return off, nil
		}
		p, _, err := d.u64WithLow(off, low)
		if err != nil {
			return 0, err
		}
		target := p + 1
		if target > off {
			return 0, errAt("pointer underflow", off)
		}
		off -= target
	}
}

func (d *Decoder) i64Pos(off Offset, low uint8) (int64, error) {
	x, _, err := d.u64WithLow(off, low)
	if err != nil {
		return 0, err
	}
	if x > uint64(1<<63-1) {
		return 0, errAt("i64 overflow", off)
	}
	return int64(x), nil
}

func (d *Decoder) i64Neg(off Offset, low uint8) (int64, error) {
	x, _, err := d.u64WithLow(off, low)
	if err != nil {
		return 0, err
	}
	if x > uint64(1<<63-1) {
		return 0, errAt("i64 overflow", off)
	}
	return -int64(x) - 1, nil
}

func (d *Decoder) str(off Offset, low uint8) (string, error) {
	length, nBytes, err := d.u64WithLow(off, low)
	if err != nil {
		return "", err
	}
	start := off + 1 + nBytes
	if length > uint64(len(d.bs)) || start+length > uint64(len(d.bs)) {
		return "", errAt("length overflow", off)
	}
	b := d.bs[start : start+length]
	if !utf8.Valid(b) {
		return "", errAt("invalid utf-8 in string", off)
	}
	return string(b), nil
}

func (d *Decoder) bytes(off Offset, low uint8) ([]byte, error) {
	length, nBytes, err := d.u64WithLow(off, low)
	if err != nil {
		return nil, err
	}
	start := off + 1 + nBytes
	if length > uint64(len(d.bs)) || start+length > uint64(len(d.bs)) {
		return nil, errAt("length overflow", off)
	}
	return d.bs[start : start+length], nil
}

func (d *Decoder) float(off Offset, low uint8) (float64, error) {
	start := off + 1
	switch low {
	case 0:
		if start+4 > uint64(len(d.bs)) {
			return 0, errAt("truncated float32", off)
		}
		u := binary.LittleEndian.Uint32(d.bs[start : start+4])
		return float64(math.Float32frombits(u)), nil
	case 1:
		if start+8 > uint64(len(d.bs)) {
			return 0, errAt("truncated float64", off)
		}
		u := binary.LittleEndian.Uint64(d.bs[start : start+8])
		return math.Float64frombits(u), nil
	default:
		return 0, errAt("expected float", off)
	}
}

func (d *Decoder) tag(off Offset, low uint8) (Tag, Offset, error) {
	t, nBytes, err := d.u64WithLow(off, low)
	if err != nil {
		return 0, 0, err
	}
	if t > uint64(^uint32(0)) {
		return 0, 0, errAt("tag overflow", off)
	}
	return Tag(t), off + 1 + nBytes, nil
}

func (d *Decoder) arrayCursor(off Offset, low uint8) (*ArrayCursor, error) {
	length, nBytes, err := d.u64WithLow(off, low)
	if err != nil {
		return nil, err
	}
	if length > uint64(^uint32(0)) {
		return nil, errAt("size overflow for array", off)
	}
	return &ArrayCursor{dec: d, off: off + 1 + nBytes, nItems: uint32(length)}, nil
}

func (d *Decoder) mapCursor(off Offset, low uint8) (*MapCursor, error) {
	length, nBytes, err := d.u64WithLow(off, low)
	if err != nil {
		return nil, err
	}
	if length > uint64(^uint32(0)) {
		return nil, errAt("size overflow for map", off)
	}
	return &MapCursor{dec: d, off: off + 1 + nBytes, nItems: uint32(length)}, nil
}

func (d *Decoder) cstor(off Offset, high, low uint8) (VariantIdx, *ArrayCursor, error) {
	idx, nBytesIdx, err := d.u64WithLow(off, low)
	if err != nil {
		return 0, nil, err
	}
	switch high {
	case highVariant0:
		if idx > uint64(^uint32(0)) {
			return 0, nil, errAt("variant index overflow", off)
		}
		return VariantIdx(idx), &ArrayCursor{dec: d, off: off, nItems: 0}, nil
	case highVariant1:
		if idx > uint64(^uint32(0)) {
			return 0, nil, errAt("variant index overflow", off)
		}
		return VariantIdx(idx), &ArrayCursor{dec: d, off: off + 1 + nBytesIdx, nItems: 1}, nil
	case highVariantN:
		if idx > uint64(^uint32(0)) {
			return 0, nil, errAt("variant index overflow", off)
		}
		argOff := off + 1 + nBytesIdx
		nItems, nBytesCount, err := d.decLEB128(argOff)
		if err != nil {
			return 0, nil, err
		}
		if nItems > uint64(^uint32(0)) {
			return 0, nil, errAt("overflow in variant argument count", off)
		}
		return VariantIdx(idx), &ArrayCursor{dec: d, off: argOff + Offset(nBytesCount), nItems: uint32(nItems)}, nil
	default:
		return 0, nil, errAt("expected variant", off)
	}
}

// Skip computes the offset immediately after the immediate value at
// off, without decoding its payload. It is only defined for immediate
// values (atoms, ints, floats, strings, bytes, ref, pointer, variant0);
// skipping a composite (array/map/tag/variant-with-args) is an error
// because its size is not locally known without traversal.
func (d *Decoder) Skip(off Offset) (Offset, error) {
	high, low, err := d.firstByte(off)
	if err != nil {
		return 0, err
	}
	switch high {
	case highAtomic:
		return off + 1, nil
	case highIntPos, highIntNeg:
		_, nBytes, err := d.u64WithLow(off, low)
		if err != nil {
			return 0, err
		}
		return off + 1 + nBytes, nil
	case highFloat:
		if low == 0 {
			return off + 5, nil
		}
		return off + 9, nil
	case highString, highBytes:
		length, nBytes, err := d.u64WithLow(off, low)
		if err != nil {
			return 0, err
		}
		if length > uint64(^uint32(0)) {
			return 0, errAt("length overflow", off)
		}
		return off + 1 + nBytes + Offset(length), nil
	case highArray, highMap, highTag:
		return 0, errAt("cannot skip over array/map/tag", off)
	case highReserved9, highReserved13:
		return 0, errAt("tag is reserved", off)
	case highVariant0:
		_, nBytes, err := d.u64WithLow(off, low)
		if err != nil {
			return 0, err
		}
		return off + 1 + nBytes, nil
	case highVariant1, highVariantN:
		return 0, errAt("cannot skip over constructor", off)
	case highRef, highPointer:
		_, nBytes, err := d.u64WithLow(off, low)
		if err != nil {
			return 0, err
		}
		return off + 1 + nBytes, nil
	default:
		return 0, errAt("invalid tag nibble", off)
	}
}

// GetShallowValue reads one layer of structure at off. If the value at
// off is a Pointer, it is implicitly dereferenced first, so this never
// returns an Imm(Pointer(...)). Ref values are returned as data
// (Imm(Ref(...))) since refs are caller-visible, unlike pointers.
func (d *Decoder) GetShallowValue(off Offset) (ShallowValue, error) {
	off, err := d.Deref(off)
	if err != nil {
		return ShallowValue{}, err
	}
	high, low, err := d.firstByte(off)
	if err != nil {
		return ShallowValue{}, err
	}
	switch high {
	case highAtomic:
		switch low {
		case lowNull:
			return ShallowValue{Kind: SVImm, Imm: ImmediateNull}, nil
		case lowFalse:
			return ShallowValue{Kind: SVImm, Imm: ImmediateBool(false)}, nil
		case lowTrue:
			return ShallowValue{Kind: SVImm, Imm: ImmediateBool(true)}, nil
		default:
			return ShallowValue{}, errAt("invalid value with high=0", off)
		}
	case highIntPos:
		i, err := d.i64Pos(off, low)
		if err != nil {
			return ShallowValue{}, err
		}
		return ShallowValue{Kind: SVImm, Imm: ImmediateInt64(i)}, nil
	case highIntNeg:
		i, err := d.i64Neg(off, low)
		if err != nil {
			return ShallowValue{}, err
		}
		return ShallowValue{Kind: SVImm, Imm: ImmediateInt64(i)}, nil
	case highFloat:
		f, err := d.float(off, low)
		if err != nil {
			return ShallowValue{}, err
		}
		return ShallowValue{Kind: SVImm, Imm: ImmediateFloat(f)}, nil
	case highString:
		s, err := d.str(off, low)
		if err != nil {
			return ShallowValue{}, err
		}
		return ShallowValue{Kind: SVImm, Imm: ImmediateString(s)}, nil
	case highBytes:
		b, err := d.bytes(off, low)
		if err != nil {
			return ShallowValue{}, err
		}
		return ShallowValue{Kind: SVImm, Imm: ImmediateBytes(b)}, nil
	case highArray:
		c, err := d.arrayCursor(off, low)
		if err != nil {
			return ShallowValue{}, err
		}
		return ShallowValue{Kind: SVArray, Array: c}, nil
	case highMap:
		c, err := d.mapCursor(off, low)
		if err != nil {
			return ShallowValue{}, err
		}
		return ShallowValue{Kind: SVMap, Map: c}, nil
	case highTag:
		tag, childOff, err := d.tag(off, low)
		if err != nil {
			return ShallowValue{}, err
		}
		return ShallowValue{Kind: SVTag, Tag: tag, TagChild: childOff}, nil
	case highVariant0, highVariant1, highVariantN:
		idx, args, err := d.cstor(off, high, low)
		if err != nil {
			return ShallowValue{}, err
		}
		return ShallowValue{Kind: SVCstor, Variant: idx, CstorArgs: args}, nil
	case highRef:
		p, _, err := d.u64WithLow(off, low)
		if err != nil {
			return ShallowValue{}, err
		}
		target := p + 1
		if target > off {
			return ShallowValue{}, errAt("ref underflow", off)
		}
		return ShallowValue{Kind: SVImm, Imm: ImmediateRef(off - target)}, nil
	case highPointer:
		// unreachable: Deref above already resolved any pointer chain.
		return ShallowValue{}, errAt("unexpected pointer after deref", off)
	default:
		return ShallowValue{}, errAt("invalid value", off)
	}
}

// GetI64 reads an Int64 immediate at off, or fails with a kind-mismatch error.
func (d *Decoder) GetI64(off Offset) (int64, error) {
	v, err := d.GetShallowValue(off)
	if err != nil {
		return 0, err
	}
	if v.Kind == SVImm && v.Imm.Kind == KindInt64 {
		return v.Imm.Int64, nil
	}
	return 0, errAt("expected integer", off)
}

// GetBool reads a Bool immediate at off.
func (d *Decoder) GetBool(off Offset) (bool, error) {
	v, err := d.GetShallowValue(off)
	if err != nil {
		return false, err
	}
	if v.Kind == SVImm && v.Imm.Kind == KindBool {
		return v.Imm.Bool, nil
	}
	return false, errAt("expected bool", off)
}

// GetNull asserts that the value at off is Null.
func (d *Decoder) GetNull(off Offset) error {
	v, err := d.GetShallowValue(off)
	if err != nil {
		return err
	}
	if v.Kind == SVImm && v.Imm.Kind == KindNull {
		return nil
	}
	return errAt("expected null", off)
}

// GetFloat reads a Float immediate at off.
func (d *Decoder) GetFloat(off Offset) (float64, error) {
	v, err := d.GetShallowValue(off)
	if err != nil {
		return 0, err
	}
	if v.Kind == SVImm && v.Imm.Kind == KindFloat {
		return v.Imm.Float, nil
	}
	return 0, errAt("expected float", off)
}

// GetStr reads a String immediate at off. The returned string aliases
// the decoder's backing buffer (zero-copy).
func (d *Decoder) GetStr(off Offset) (string, error) {
	v, err := d.GetShallowValue(off)
	if err != nil {
		return "", err
	}
	if v.Kind == SVImm && v.Imm.Kind == KindString {
		return v.Imm.String, nil
	}
	return "", errAt("expected string", off)
}

// GetBytes reads a Bytes immediate at off. The returned slice aliases
// the decoder's backing buffer (zero-copy).
func (d *Decoder) GetBytes(off Offset) ([]byte, error) {
	v, err := d.GetShallowValue(off)
	if err != nil {
		return nil, err
	}
	if v.Kind == SVImm && v.Imm.Kind == KindBytes {
		return v.Imm.Bytes, nil
	}
	return nil, errAt("expected bytes", off)
}

// GetArray reads the offsets of an array's elements into res. res is
// cleared first.
func (d *Decoder) GetArray(off Offset, res *[]Offset) error {
	*res = (*res)[:0]
	v, err := d.GetShallowValue(off)
	if err != nil {
		return err
	}
	if v.Kind != SVArray {
		return errAt("expected array", off)
	}
	for v.Array.Next() {
		o, err := v.Array.Offset()
		if err != nil {
			return err
		}
		*res = append(*res, o)
	}
	return v.Array.Err()
}

// GetDict reads a map's (key, value) offset pairs into res. res is
// cleared first.
func (d *Decoder) GetDict(off Offset, res *[][2]Offset) error {
	*res = (*res)[:0]
	v, err := d.GetShallowValue(off)
	if err != nil {
		return err
	}
	if v.Kind != SVMap {
		return errAt("expected map", off)
	}
	for v.Map.Next() {
		k, val, err := v.Map.Pair()
		if err != nil {
			return err
		}
		*res = append(*res, [2]Offset{k, val})
	}
	return v.Map.Err()
}

// GetTag reads a tag's number and the offset of its wrapped value
// (which is not itself read).
func (d *Decoder) GetTag(off Offset) (Tag, Offset, error) {
	v, err := d.GetShallowValue(off)
	if err != nil {
		return 0, 0, err
	}
	if v.Kind != SVTag {
		return 0, 0, errAt("expected tag", off)
	}
	return v.Tag, v.TagChild, nil
}

// GetCstor reads a constructor's variant index, pushing its argument
// offsets into args (cleared first).
func (d *Decoder) GetCstor(off Offset, args *[]Offset) (VariantIdx, error) {
	*args = (*args)[:0]
	v, err := d.GetShallowValue(off)
	if err != nil {
		return 0, err
	}
	if v.Kind != SVCstor {
		return 0, errAt("expected constructor", off)
	}
	for v.CstorArgs.Next() {
		o, err := v.CstorArgs.Offset()
		if err != nil {
			return 0, err
		}
		*args = append(*args, o)
	}
	return v.Variant, v.CstorArgs.Err()
}

// Entrypoint reads the blob's postfix byte and returns the dereferenced
// offset of the top-level value.
func (d *Decoder) Entrypoint() (Offset, error) {
	if len(d.bs) == 0 {
		return 0, errAt("empty blob has no postfix", 0)
	}
	last := Offset(len(d.bs) - 1)
	d8 := Offset(d.bs[last])
	if d8+1 > last {
		return 0, errAt("postfix underflow", last)
	}
	off := last - d8 - 1
	return d.Deref(off)
}
