package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArenaLifecycle(t *testing.T) {
	a, err := New(1 << 20)
	require.NoError(t, err)
	require.Equal(t, 1<<20, a.Size())
	require.Len(t, a.Bytes(), 1<<20)

	// The space must be writable end to end.
	b := a.Bytes()
	b[0] = 0xAA
	b[len(b)-1] = 0xBB
	require.Equal(t, byte(0xAA), b[0])
	require.Equal(t, byte(0xBB), b[len(b)-1])

	require.NoError(t, a.Close())
}

func TestArenaRejectsBadSize(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
	_, err = New(-1)
	require.Error(t, err)
}
