package pcg32

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKnownValue(t *testing.T) {
	state := uint64(0x4c0c30effc1c7860)
	out := Next(5, &state)

	require.Equal(t, uint32(3477127742), out)
	require.Equal(t, uint64(12614161924357671141), state)
}

func TestDeterministic(t *testing.T) {
	s1 := uint64(42)
	s2 := uint64(42)

	for i := 0; i < 100; i++ {
		require.Equal(t, Next(5, &s1), Next(5, &s2))
	}
	require.Equal(t, s1, s2)
}

func TestDifferentIncrementsDiverge(t *testing.T) {
	s1 := uint64(1)
	s2 := uint64(1)

	Next(5, &s1)
	Next(3, &s2)
	require.NotEqual(t, s1, s2)
}
