package twine

import "testing"

func TestEncLEB128(t *testing.T) {
	test := func(n uint64, expectedLen int, description string) {
		t.Run(description, func(t *testing.T) {
			var buf [16]byte
			got := encLEB128(n, buf[:])
			if got != expectedLen {
				t.Errorf("encLEB128(%d) len = %d, want %d", n, got, expectedLen)
			}
		})
	}
	test(42, 1, "fits in one byte")
	test(0, 1, "zero fits in one byte")
	test(127, 1, "127 is the largest one-byte value")
	test(128, 2, "128 needs a second byte")
	test(329282522, 5, "large value needs five bytes")
	test(^uint64(0), 10, "u64 max needs ten bytes")
}

func TestLEB128RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 8, 17, 127, 128, 300, 16384, 148104, 329282522, ^uint64(0), ^uint64(0) >> 1}
	for _, n := range values {
		var buf [10]byte
		l := encLEB128(n, buf[:])

		d := &Decoder{bs: buf[:l]}
		got, consumed, err := d.decLEB128(0)
		if err != nil {
			t.Fatalf("decLEB128(%d) encoded failed to decode: %v", n, err)
		}
		if got != n {
			t.Errorf("round trip mismatch: encoded %d, decoded %d", n, got)
		}
		if int(consumed) != l {
			t.Errorf("round trip byte count mismatch: encoded %d bytes, decoded reported %d", l, consumed)
		}
	}
}

// TestDecLEB128MultiByte exercises the worked example from the wire
// format: [0x88, 0x85, 0x09] decodes to (9<<14)+(5<<7)+8, length 3.
func TestDecLEB128MultiByte(t *testing.T) {
	d := &Decoder{bs: []byte{0x88, 0x85, 0x09}}
	got, n, err := d.decLEB128(0)
	if err != nil {
		t.Fatalf("decLEB128 failed: %v", err)
	}
	want := uint64((9 << 14) + (5 << 7) + 8)
	if got != want {
		t.Errorf("decLEB128 = %d, want %d", got, want)
	}
	if n != 3 {
		t.Errorf("decLEB128 consumed %d bytes, want 3", n)
	}
}

func TestDecLEB128Overflow(t *testing.T) {
	// 10 continuation bytes in a row never terminate within 64 bits.
	bs := make([]byte, 11)
	for i := range bs {
		bs[i] = 0xff
	}
	d := &Decoder{bs: bs}
	_, _, err := d.decLEB128(0)
	if err == nil {
		t.Fatal("expected an overflow error, got none")
	}
}
