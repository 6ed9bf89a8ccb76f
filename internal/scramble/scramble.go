// Package scramble implements the PPEnc header scrambler: a deterministic,
// invertible 32-byte diffusion function that the sender applies to every
// frame header after the header-keystream XOR and that the receiver undoes
// before its own XOR (§4.7); the per-frame keystream mask, not the
// scrambler, is what keeps two frames with identical logical fields from
// producing identical wire bytes. It is built as a small
// Feistel network whose round function stretches each 16-byte half through
// CubeHash rounds — a Feistel network is invertible regardless of whether
// its round function is, which is what lets Scramble/ScrambleInverse be a
// true inverse pair built on a one-way-looking primitive.
package scramble

import (
	"encoding/binary"

	"github.com/flickpp/ppenc/internal/cubehash"
)

const (
	halfSize   = 16
	numRounds  = 4
	roundsPerF = 8
)

// roundConst seeds the unused half of the CubeHash state per Feistel
// round, so each round's F function differs even on identical input; the
// values are arbitrary fixed constants shared by both scramble and
// scramble_inverse, not secret material.
var roundConst = [numRounds]uint32{
	0x9e3779b9, 0x7f4a7c15, 0xf39cc060, 0x5a17dca3,
}

// feistelF stretches a 16-byte half through a seeded CubeHash state and
// folds the resulting 32 words down to 4, producing a 16-byte output that
// need not itself be invertible.
func feistelF(half [halfSize]byte, round int) [halfSize]byte {
	var state [32]uint32
	for i := 0; i < 4; i++ {
		state[i] = binary.LittleEndian.Uint32(half[i*4 : i*4+4])
	}
	state[4] = roundConst[round]
	state[5] = roundConst[round] ^ 0xffffffff
	for i := 6; i < 32; i++ {
		state[i] = uint32(i) * roundConst[round]
	}

	cubehash.Rounds(&state, roundsPerF)

	var out [halfSize]byte
	for i := 0; i < 4; i++ {
		folded := state[i] ^ state[8+i] ^ state[16+i] ^ state[24+i]
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], folded)
	}
	return out
}

func xorHalf(a, b [halfSize]byte) [halfSize]byte {
	var out [halfSize]byte
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Scramble applies the forward Feistel network to a 32-byte header in
// place.
func Scramble(header *[32]byte) {
	var l, r [halfSize]byte
	copy(l[:], header[:halfSize])
	copy(r[:], header[halfSize:])

	for round := 0; round < numRounds; round++ {
		newL := r
		newR := xorHalf(l, feistelF(r, round))
		l, r = newL, newR
	}

	copy(header[:halfSize], l[:])
	copy(header[halfSize:], r[:])
}

// ScrambleInverse applies the inverse Feistel network to a 32-byte header
// in place, undoing Scramble.
func ScrambleInverse(header *[32]byte) {
	var l, r [halfSize]byte
	copy(l[:], header[:halfSize])
	copy(r[:], header[halfSize:])

	for round := numRounds - 1; round >= 0; round-- {
		prevR := l
		prevL := xorHalf(r, feistelF(prevR, round))
		l, r = prevL, prevR
	}

	copy(header[:halfSize], l[:])
	copy(header[halfSize:], r[:])
}
