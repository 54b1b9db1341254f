package twine

// ValueKind discriminates the cases of Value.
type ValueKind uint8

const (
	VNull ValueKind = iota
	VBool
	VInt64
	VFloat
	VString
	VBytes
	VVariant0
	VRef
	VTag
	VArray
	VMap
	VCstor
)

// Value is a fully materialized twine value tree. It mirrors
// ShallowValue but owns its children instead of borrowing/lazily
// iterating them: Tag wraps a child Value, Array/Map/Cstor hold owned
// slices. As in ShallowValue, a Ref is preserved as data (VRef); a
// Pointer never appears in a Value at all, because pointers are always
// transparently followed while reading.
//
// The original Rust implementation offers a bump-allocator-backed
// variant of this type so that all sub-values share one arena
// allocation. Go has no borrow checker forcing that discipline, and the
// garbage collector makes an arena an optimization rather than a
// semantic requirement, so Value here always owns its children via
// plain Go slices (spec.md §4.6: "the semantics are identical; only
// storage differs").
type Value struct {
	Kind ValueKind

	Bool      bool
	Int64     int64
	Float     float64
	String    string
	Bytes     []byte
	RefOffset Offset // valid when Kind == VRef

	Tag      Tag     // valid when Kind == VTag
	Child    *Value  // valid when Kind == VTag

	Variant  VariantIdx // valid when Kind == VVariant0 or VCstor
	Array    []Value    // valid when Kind == VArray
	MapPairs [][2]Value // valid when Kind == VMap
	CstorArgs []Value   // valid when Kind == VCstor
}

// Convenience constructors, mirroring the Immediate constructors.

func ValueNull() Value                     { return Value{Kind: VNull} }
func ValueBool(b bool) Value               { return Value{Kind: VBool, Bool: b} }
func ValueInt64(i int64) Value             { return Value{Kind: VInt64, Int64: i} }
func ValueFloat(f float64) Value           { return Value{Kind: VFloat, Float: f} }
func ValueString(s string) Value           { return Value{Kind: VString, String: s} }
func ValueBytes(b []byte) Value            { return Value{Kind: VBytes, Bytes: b} }
func ValueVariant0(idx VariantIdx) Value   { return Value{Kind: VVariant0, Variant: idx} }
func ValueRef(off Offset) Value            { return Value{Kind: VRef, RefOffset: off} }
func ValueTag(tag Tag, child Value) Value  { return Value{Kind: VTag, Tag: tag, Child: &child} }
func ValueArray(items []Value) Value       { return Value{Kind: VArray, Array: items} }
func ValueMap(pairs [][2]Value) Value      { return Value{Kind: VMap, MapPairs: pairs} }
func ValueCstor(idx VariantIdx, args []Value) Value {
	if len(args) == 0 {
		return ValueVariant0(idx)
	}
	return Value{Kind: VCstor, Variant: idx, CstorArgs: args}
}

// ReadValue recursively materializes the value tree rooted at off into
// an owned Value.
func ReadValue(d *Decoder, off Offset) (Value, error) {
	sv, err := d.GetShallowValue(off)
	if err != nil {
		return Value{}, err
	}
	switch sv.Kind {
	case SVImm:
		return immediateToValue(sv.Imm), nil
	case SVTag:
		child, err := ReadValue(d, sv.TagChild)
		if err != nil {
			return Value{}, err
		}
		return ValueTag(sv.Tag, child), nil
	case SVArray:
		items := make([]Value, 0, sv.Array.Len())
		for sv.Array.Next() {
			childOff, err := sv.Array.Offset()
			if err != nil {
				return Value{}, err
			}
			v, err := ReadValue(d, childOff)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		if err := sv.Array.Err(); err != nil {
			return Value{}, err
		}
		return ValueArray(items), nil
	case SVMap:
		pairs := make([][2]Value, 0, sv.Map.Len())
		for sv.Map.Next() {
			kOff, vOff, err := sv.Map.Pair()
			if err != nil {
				return Value{}, err
			}
			k, err := ReadValue(d, kOff)
			if err != nil {
				return Value{}, err
			}
			v, err := ReadValue(d, vOff)
			if err != nil {
				return Value{}, err
			}
			pairs = append(pairs, [2]Value{k, v})
		}
		if err := sv.Map.Err(); err != nil {
			return Value{}, err
		}
		return ValueMap(pairs), nil
	case SVCstor:
		args := make([]Value, 0, sv.CstorArgs.Len())
		for sv.CstorArgs.Next() {
			argOff, err := sv.CstorArgs.Offset()
			if err != nil {
				return Value{}, err
			}
			v, err := ReadValue(d, argOff)
			if err != nil {
				return Value{}, err
			}
			args = append(args, v)
		}
		if err := sv.CstorArgs.Err(); err != nil {
			return Value{}, err
		}
		return ValueCstor(sv.Variant, args), nil
	default:
		return Value{}, errAt("invalid shallow value kind", off)
	}
}

// ReadValueFromEntrypoint finds the blob's entry point and reads the
// full value tree rooted there.
func ReadValueFromEntrypoint(d *Decoder) (Value, error) {
	off, err := d.Entrypoint()
	if err != nil {
		return Value{}, err
	}
	return ReadValue(d, off)
}

func immediateToValue(imm Immediate) Value {
	switch imm.Kind {
	case KindNull:
		return ValueNull()
	case KindBool:
		return ValueBool(imm.Bool)
	case KindInt64:
		return ValueInt64(imm.Int64)
	case KindFloat:
		return ValueFloat(imm.Float)
	case KindString:
		return ValueString(imm.String)
	case KindBytes:
		return ValueBytes(imm.Bytes)
	case KindVariant0:
		return ValueVariant0(imm.Variant)
	case KindRef:
		return ValueRef(imm.Offset)
	default:
		// Pointer cannot appear: GetShallowValue never yields it.
		panic("twine: unexpected immediate kind in value tree")
	}
}

// writeValueOrImmediate post-order emits v's sub-values into enc and
// returns an Immediate representing the written node: pure immediates
// are returned without writing (the parent embeds or emits them), while
// composites are written and returned as a Pointer (or, for a
// zero-argument constructor, a Variant0).
func writeValueOrImmediate(enc *Encoder, v Value) Immediate {
	switch v.Kind {
	case VNull:
		return ImmediateNull
	case VBool:
		return ImmediateBool(v.Bool)
	case VInt64:
		return ImmediateInt64(v.Int64)
	case VFloat:
		return ImmediateFloat(v.Float)
	case VString:
		return ImmediateString(v.String)
	case VBytes:
		return ImmediateBytes(v.Bytes)
	case VVariant0:
		return ImmediateVariant0(v.Variant)
	case VRef:
		return ImmediateRef(v.RefOffset)
	case VTag:
		child := writeValueOrImmediate(enc, *v.Child)
		off := enc.WriteTag(v.Tag, child)
		return ImmediatePointer(off)
	case VArray:
		imms := make([]Immediate, len(v.Array))
		for i, x := range v.Array {
			imms[i] = writeValueOrImmediate(enc, x)
		}
		off := enc.WriteArray(imms)
		return ImmediatePointer(off)
	case VMap:
		pairs := make([][2]Immediate, len(v.MapPairs))
		for i, kv := range v.MapPairs {
			pairs[i] = [2]Immediate{writeValueOrImmediate(enc, kv[0]), writeValueOrImmediate(enc, kv[1])}
		}
		off := enc.WriteMap(pairs)
		return ImmediatePointer(off)
	case VCstor:
		args := make([]Immediate, len(v.CstorArgs))
		for i, a := range v.CstorArgs {
			args[i] = writeValueOrImmediate(enc, a)
		}
		return enc.WriteCstor(v.Variant, args)
	default:
		panic("twine: invalid Value kind")
	}
}

// WriteValue writes v into enc and returns the offset of its
// entry-point representation (materializing it if it was a pure
// immediate, or returning the pointer offset if it was already
// written as a composite).
//
// Unlike the original Rust encoder (generic over io::Write, which can
// fail), this package's Encoder writes into an in-memory Sink that
// cannot fail, so WriteValue has no error return; callers that need the
// bytes written to an io.Writer can call Encoder.Bytes() afterward.
func WriteValue(enc *Encoder, v Value) Offset {
	imm := writeValueOrImmediate(enc, v)
	return enc.WriteImmediateOrReturnPointer(imm)
}
