package ppenc

import (
	"crypto/sha256"
	"encoding/binary"
)

// bodyKeyHistoryDepth bounds how many body-key generations a channel keeps
// installed at once (§3: "bounded so that only the current and a fixed
// number of preceding generations are retained").
const bodyKeyHistoryDepth = 4

// expand64 stretches a 32-byte seed to a 64-byte Threefish-512 key by
// appending a SHA-256 of the seed, per §4.9.1's "expanding to 64 bytes via
// one additional SHA-256 of the first half."
func expand64(seed [32]byte) [64]byte {
	tail := sha256.Sum256(seed[:])

	var out [64]byte
	copy(out[:32], seed[:])
	copy(out[32:], tail[:])
	return out
}

// bodyKeyGeneration0 derives generation 0's 64-byte Threefish key directly
// from the channel's body_key_state0, per SPEC_FULL.md §4.14.
func bodyKeyGeneration0(state0 [32]byte) [64]byte {
	return expand64(state0)
}

// nextBodyKeyGeneration derives generation k+1 from generation k's key
// material and the channel's body_key_salt, per §4.9.1: hash
// `generation_k || body_key_salt || (k+1)` with SHA-256, then expand the
// 32-byte digest to 64 bytes the same way generation 0 is expanded.
func nextBodyKeyGeneration(prevKey [64]byte, bodyKeySalt [16]byte, nextGen uint16) [64]byte {
	h := sha256.New()
	h.Write(prevKey[:])
	h.Write(bodyKeySalt[:])
	var genBytes [2]byte
	binary.LittleEndian.PutUint16(genBytes[:], nextGen)
	h.Write(genBytes[:])

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return expand64(digest)
}

// bodyKeyHistory tracks the small forward-only mapping from body_key_num to
// derived Threefish key, retaining at most bodyKeyHistoryDepth generations
// and evicting the oldest once that bound is exceeded.
type bodyKeyHistory struct {
	salt  [16]byte
	keys  map[uint16][64]byte
	order []uint16
}

func newBodyKeyHistory(salt [16]byte, state0 [32]byte) *bodyKeyHistory {
	h := &bodyKeyHistory{
		salt: salt,
		keys: make(map[uint16][64]byte, bodyKeyHistoryDepth),
	}
	h.install(0, bodyKeyGeneration0(state0))
	return h
}

func (h *bodyKeyHistory) install(gen uint16, key [64]byte) {
	h.keys[gen] = key
	h.order = append(h.order, gen)
	for len(h.order) > bodyKeyHistoryDepth {
		evict := h.order[0]
		h.order = h.order[1:]
		delete(h.keys, evict)
	}
}

// advanceTo derives and installs every intermediate generation from the
// latest installed generation up to (and including) target, per §4.9 step
// 7. It returns the target generation's key.
func (h *bodyKeyHistory) advanceTo(current, target uint16) [64]byte {
	prevKey := h.keys[current]
	for gen := uint32(current) + 1; gen <= uint32(target); gen++ {
		prevKey = nextBodyKeyGeneration(prevKey, h.salt, uint16(gen))
		h.install(uint16(gen), prevKey)
	}
	return prevKey
}

func (h *bodyKeyHistory) get(gen uint16) ([64]byte, bool) {
	k, ok := h.keys[gen]
	return k, ok
}
