package twine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueRoundTripScalars(t *testing.T) {
	cases := []Value{
		ValueNull(),
		ValueBool(true),
		ValueBool(false),
		ValueInt64(0),
		ValueInt64(-1),
		ValueInt64(1 << 62),
		ValueInt64(-(1 << 62)),
		ValueFloat(3.25),
		ValueFloat(-0.5),
		ValueString(""),
		ValueString("hello, world"),
		ValueBytes([]byte{0, 1, 2, 255}),
		ValueVariant0(4),
	}

	for _, v := range cases {
		enc := NewEncoder()
		off := WriteValue(enc, v)
		got := enc.Finalize(ImmediatePointer(off))

		dec, err := NewDecoder(got)
		require.NoError(t, err)
		v2, err := ReadValueFromEntrypoint(dec)
		require.NoError(t, err)
		require.Equal(t, v, v2)
	}
}

func TestValueRoundTripNested(t *testing.T) {
	v := ValueArray([]Value{
		ValueTag(42, ValueString("tagged")),
		ValueMap([][2]Value{
			{ValueString("k1"), ValueInt64(1)},
			{ValueString("k2"), ValueBool(true)},
		}),
		ValueCstor(3, []Value{ValueInt64(1), ValueInt64(2)}),
		ValueCstor(9, nil),
		ValueArray([]Value{}),
	})

	enc := NewEncoder()
	off := WriteValue(enc, v)
	got := enc.Finalize(ImmediatePointer(off))

	dec, err := NewDecoder(got)
	require.NoError(t, err)
	v2, err := ReadValueFromEntrypoint(dec)
	require.NoError(t, err)
	require.Equal(t, v, v2)
}

func TestValueSharingIsPreservedViaPointer(t *testing.T) {
	enc := NewEncoder()
	shared := WriteValue(enc, ValueString("shared"))
	arr := enc.WriteArray([]Immediate{ImmediatePointer(shared), ImmediatePointer(shared)})
	got := enc.Finalize(ImmediatePointer(arr))

	// The shared string must only have been written once: both array
	// slots are separate pointer indirections, but both resolve to the
	// very same underlying offset once dereferenced.
	dec, err := NewDecoder(got)
	require.NoError(t, err)
	var offs []Offset
	require.NoError(t, dec.GetArray(arr, &offs))
	require.Len(t, offs, 2)

	target0, err := dec.Deref(offs[0])
	require.NoError(t, err)
	target1, err := dec.Deref(offs[1])
	require.NoError(t, err)
	require.Equal(t, shared, target0)
	require.Equal(t, shared, target1)
}

// genValue deterministically generates a random Value tree bounded by
// depth and node count, for the round-trip property law in spec.md §8.
func genValue(rnd *rand.Rand, depth int, nodesLeft *int) Value {
	*nodesLeft--
	if depth <= 0 || *nodesLeft <= 0 {
		return genLeaf(rnd)
	}
	switch rnd.Intn(8) {
	case 0, 1, 2:
		return genLeaf(rnd)
	case 3:
		return ValueTag(Tag(rnd.Intn(1000)), genValue(rnd, depth-1, nodesLeft))
	case 4:
		n := rnd.Intn(10)
		items := make([]Value, 0, n)
		for i := 0; i < n && *nodesLeft > 0; i++ {
			items = append(items, genValue(rnd, depth-1, nodesLeft))
		}
		return ValueArray(items)
	case 5:
		n := rnd.Intn(10)
		pairs := make([][2]Value, 0, n)
		for i := 0; i < n && *nodesLeft > 0; i++ {
			k := genLeaf(rnd)
			v := genValue(rnd, depth-1, nodesLeft)
			pairs = append(pairs, [2]Value{k, v})
		}
		return ValueMap(pairs)
	default:
		n := rnd.Intn(4)
		args := make([]Value, 0, n)
		for i := 0; i < n && *nodesLeft > 0; i++ {
			args = append(args, genValue(rnd, depth-1, nodesLeft))
		}
		return ValueCstor(VariantIdx(rnd.Intn(50)), args)
	}
}

func genLeaf(rnd *rand.Rand) Value {
	switch rnd.Intn(6) {
	case 0:
		return ValueNull()
	case 1:
		return ValueBool(rnd.Intn(2) == 0)
	case 2:
		return ValueInt64(rnd.Int63() - (1 << 62))
	case 3:
		return ValueFloat(rnd.NormFloat64())
	case 4:
		return ValueString(randString(rnd, rnd.Intn(20)))
	default:
		b := make([]byte, rnd.Intn(20))
		rnd.Read(b)
		return ValueBytes(b)
	}
}

func randString(rnd *rand.Rand, n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 _-"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rnd.Intn(len(alphabet))]
	}
	return string(b)
}

// TestValueRoundTripProperty draws random trees (depth <= 8, <= 256
// nodes, fan-out <= 10, per spec.md §8 property 2) and checks that
// encode -> decode -> ReadValueFromEntrypoint reproduces the tree.
func TestValueRoundTripProperty(t *testing.T) {
	rnd := rand.New(rand.NewSource(12345))
	for trial := 0; trial < 200; trial++ {
		nodesLeft := 256
		v := genValue(rnd, 8, &nodesLeft)

		enc := NewEncoder()
		off := WriteValue(enc, v)
		got := enc.Finalize(ImmediatePointer(off))

		dec, err := NewDecoder(got)
		require.NoError(t, err)
		v2, err := ReadValueFromEntrypoint(dec)
		require.NoError(t, err)
		require.Equal(t, v, v2, "round trip mismatch on trial %d", trial)

		postfix := got[len(got)-1]
		require.LessOrEqual(t, postfix, byte(250))
	}
}
