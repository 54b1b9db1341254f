package bytesink

import (
	"bytes"
	"testing"
)

func TestSink(t *testing.T) {
	s := New()

	if s.Offset() != 0 {
		t.Errorf("initial offset should be 0, got %d", s.Offset())
	}
	if s.Len() != 0 {
		t.Errorf("initial len should be 0, got %d", s.Len())
	}

	off := s.WriteByte(0xAB)
	if off != 0 {
		t.Errorf("first WriteByte should return offset 0, got %d", off)
	}
	if s.Offset() != 1 {
		t.Errorf("after one WriteByte, offset should be 1, got %d", s.Offset())
	}

	off = s.Write([]byte{1, 2, 3})
	if off != 1 {
		t.Errorf("Write should return offset 1, got %d", off)
	}
	if s.Offset() != 4 {
		t.Errorf("after Write of 3 bytes, offset should be 4, got %d", s.Offset())
	}

	want := []byte{0xAB, 1, 2, 3}
	if !bytes.Equal(s.Bytes(), want) {
		t.Errorf("Bytes() = %v, want %v", s.Bytes(), want)
	}
}

func TestSinkGrowsPastInitialCapacity(t *testing.T) {
	old := InitialBufferSize
	InitialBufferSize = 2
	defer func() { InitialBufferSize = old }()

	s := New()
	for i := 0; i < 100; i++ {
		s.WriteByte(byte(i))
	}
	if s.Len() != 100 {
		t.Errorf("Len() = %d, want 100", s.Len())
	}
	for i := 0; i < 100; i++ {
		if s.Bytes()[i] != byte(i) {
			t.Errorf("Bytes()[%d] = %d, want %d", i, s.Bytes()[i], i)
		}
	}
}

func TestSinkOffsetsSpanMultipleWrites(t *testing.T) {
	s := New()
	o1 := s.Write([]byte("hello"))
	o2 := s.Write([]byte("world"))
	o3 := s.WriteByte('!')

	if o1 != 0 || o2 != 5 || o3 != 10 {
		t.Errorf("offsets = %d, %d, %d; want 0, 5, 10", o1, o2, o3)
	}
}
