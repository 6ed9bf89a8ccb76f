// Package pcg32 implements the PCG-XSH-RR 64-state, 32-output PRNG used
// throughout PPEnc to derive Threefish tweaks and to advance key schedules.
// The construction is the standard one: a 64-bit LCG state advanced by a
// caller-supplied odd increment, with output taken via xorshift-high then a
// state-dependent rotate of the top 32 bits.
package pcg32

const multiplier uint64 = 6364136223846793005

// Next advances state in place by one LCG step (multiplier fixed, the
// caller-supplied inc added) and returns the PCG-XSH-RR output derived from
// the *pre*-advance state, matching the reference construction.
func Next(inc uint64, state *uint64) uint32 {
	old := *state
	*state = old*multiplier + inc

	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint32(old >> 59)
	return (xorshifted >> rot) | (xorshifted << ((-rot) & 31))
}
