// Package murmur2 implements Austin Appleby's MurmurHash2 (32-bit), the
// exact hash MonsterMac's secret-shard selection requires (spec.md:176),
// matching `fasthash::murmur2::hash32` in
// _examples/original_source/monstermac/src/server.rs:69. Murmur2 and the
// newer Murmur3 are different algorithms with different outputs for the
// same input, so this cannot be satisfied by a Murmur3 library — it is
// hand-rolled here the same way the other bespoke primitives are.
package murmur2

const (
	m uint32 = 0x5bd1e995
	r uint32 = 24
)

// Hash32 computes MurmurHash2 over data with the given seed.
func Hash32(data []byte, seed uint32) uint32 {
	h := seed ^ uint32(len(data))

	for len(data) >= 4 {
		k := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
		k *= m
		k ^= k >> r
		k *= m

		h *= m
		h ^= k

		data = data[4:]
	}

	switch len(data) {
	case 3:
		h ^= uint32(data[2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[0])
		h *= m
	}

	h ^= h >> 13
	h *= m
	h ^= h >> 15

	return h
}

// Sum32 computes MurmurHash2 over data with seed 0, matching
// `fasthash::murmur2::hash32`'s no-seed convenience form.
func Sum32(data []byte) uint32 {
	return Hash32(data, 0)
}
