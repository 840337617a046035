package memview

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViewWordRoundTrip(t *testing.T) {
	v := New(make([]byte, 64))

	v.SetWord(0, 0x1122334455667788)
	require.Equal(t, uint64(0x1122334455667788), v.Word(0))

	// Words are little-endian in the backing bytes.
	require.Equal(t, byte(0x88), v.Slice(0, 8)[0])
	require.Equal(t, byte(0x11), v.Slice(0, 8)[7])

	v.SetWord(8, 0)
	require.Zero(t, v.Word(8))
}

func TestViewZero(t *testing.T) {
	v := New(make([]byte, 32))
	s := v.Slice(0, 32)
	for i := range s {
		s[i] = 0xFF
	}

	v.Zero(8, 16)
	for i := 0; i < 8; i++ {
		require.Equal(t, byte(0xFF), s[i], "byte %d before the range", i)
	}
	for i := 8; i < 24; i++ {
		require.Zero(t, s[i], "byte %d inside the range", i)
	}
	for i := 24; i < 32; i++ {
		require.Equal(t, byte(0xFF), s[i], "byte %d after the range", i)
	}
}

func TestViewSliceIsCapped(t *testing.T) {
	v := New(make([]byte, 64))
	s := v.Slice(16, 8)
	require.Len(t, s, 8)
	require.Equal(t, 8, cap(s), "a slice must not reach past its range")
}

func TestViewContains(t *testing.T) {
	v := New(make([]byte, 64))
	require.True(t, v.Contains(0, 64))
	require.True(t, v.Contains(60, 4))
	require.False(t, v.Contains(60, 8))
	require.False(t, v.Contains(64, 1))
}

func TestAlignHelpers(t *testing.T) {
	tests := []struct {
		n, align uint64
		up, down uint64
	}{
		{0, 8, 0, 0},
		{1, 8, 8, 0},
		{8, 8, 8, 8},
		{9, 8, 16, 8},
		{4095, 4096, 4096, 0},
		{4096, 4096, 4096, 4096},
		{4097, 4096, 8192, 4096},
	}
	for _, tt := range tests {
		require.Equalf(t, tt.up, AlignUp(tt.n, tt.align), "AlignUp(%d, %d)", tt.n, tt.align)
		require.Equalf(t, tt.down, AlignDown(tt.n, tt.align), "AlignDown(%d, %d)", tt.n, tt.align)
	}

	require.True(t, IsAligned(4096, 4096))
	require.False(t, IsAligned(4097, 4096))
	require.True(t, IsPowerOfTwo(1))
	require.True(t, IsPowerOfTwo(4096))
	require.False(t, IsPowerOfTwo(0))
	require.False(t, IsPowerOfTwo(24))
}
