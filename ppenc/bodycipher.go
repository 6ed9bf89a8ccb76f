package ppenc

import (
	"encoding/binary"

	"github.com/flickpp/ppenc/internal/threefish"
)

// tweekSeedToPCGState interprets an 8-byte tweek_seed as a little-endian
// 64-bit PCG32 state, used directly (SPEC_FULL.md §4.13).
func tweekSeedToPCGState(tweekSeed [8]byte) uint64 {
	return binary.LittleEndian.Uint64(tweekSeed[:])
}

// cryptBody runs Threefish-512 over every 64-byte block of a padded body
// in place, re-initialising the key schedule with a fresh tweak for every
// block (§4.9 step 1, §4.3). encrypt selects EncryptBlock vs DecryptBlock;
// both directions consume the PCG32 tweak source identically so sender and
// receiver stay in lock-step.
func cryptBody(key [64]byte, tweekSeed [8]byte, body []byte, encrypt bool) {
	cipher := threefish.Init(key, tweekSeedToPCGState(tweekSeed))

	for off := 0; off < len(body); off += threefish.BlockSize {
		if off > 0 {
			cipher.Rekey()
		}
		var block [threefish.BlockSize]byte
		copy(block[:], body[off:off+threefish.BlockSize])

		if encrypt {
			cipher.EncryptBlock(&block)
		} else {
			cipher.DecryptBlock(&block)
		}

		copy(body[off:off+threefish.BlockSize], block[:])
	}
}
