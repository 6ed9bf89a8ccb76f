// Package chacha8 implements the 8-round ChaCha keystream generator used as
// PPEnc's core PRNG primitive: a 256-bit key, a 64-bit nonce, and a 32-bit
// block counter, in the classic (pre-RFC7539) Bernstein word layout — words
// 12-13 hold the counter (here only word 12 is ever nonzero; word 13 is
// fixed at zero since this protocol's counter is 32-bit, not 64-bit), and
// words 14-15 hold the nonce.
package chacha8

import "encoding/binary"

const (
	// KeySize is the key length in bytes.
	KeySize = 32
	// NonceSize is the nonce length in bytes.
	NonceSize = 8
	// BlockSize is the keystream block length in bytes.
	BlockSize = 64
	rounds    = 8
)

var sigma = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}

// State holds a ChaCha8 keystream generator's full state: key and nonce
// words, the current 64-byte keystream block, the block counter, and a byte
// position into the current block.
type State struct {
	key     [8]uint32
	nonce   [2]uint32
	counter uint32
	block   [BlockSize]byte
	pos     uint8
}

// Init seeds state from a 32-byte key and 8-byte nonce, resetting the block
// counter to zero and forcing generation of a fresh keystream block on the
// first call to Bytes.
func (s *State) Init(key [KeySize]byte, nonce [NonceSize]byte) {
	for i := 0; i < 8; i++ {
		s.key[i] = binary.LittleEndian.Uint32(key[i*4 : i*4+4])
	}
	for i := 0; i < 2; i++ {
		s.nonce[i] = binary.LittleEndian.Uint32(nonce[i*4 : i*4+4])
	}
	s.counter = 0
	s.pos = BlockSize
}

// InitWithCounter is Init plus an explicit starting block counter, used by
// the header keystream derivation (§4.12) which seeds the counter from the
// tail of header_rng_nonce rather than starting at zero.
func (s *State) InitWithCounter(key [KeySize]byte, nonce [NonceSize]byte, counter uint32) {
	s.Init(key, nonce)
	s.counter = counter
}

func rotl32(x uint32, n uint) uint32 {
	return (x << n) | (x >> (32 - n))
}

func quarterRound(s *[16]uint32, a, b, c, d int) {
	s[a] += s[b]
	s[d] ^= s[a]
	s[d] = rotl32(s[d], 16)
	s[c] += s[d]
	s[b] ^= s[c]
	s[b] = rotl32(s[b], 12)
	s[a] += s[b]
	s[d] ^= s[a]
	s[d] = rotl32(s[d], 8)
	s[c] += s[d]
	s[b] ^= s[c]
	s[b] = rotl32(s[b], 7)
}

func (s *State) generateBlock() {
	var state [16]uint32
	state[0], state[1], state[2], state[3] = sigma[0], sigma[1], sigma[2], sigma[3]
	copy(state[4:12], s.key[:])
	state[12] = s.counter
	state[13] = 0
	state[14], state[15] = s.nonce[0], s.nonce[1]

	working := state
	for i := 0; i < rounds/2; i++ {
		quarterRound(&working, 0, 4, 8, 12)
		quarterRound(&working, 1, 5, 9, 13)
		quarterRound(&working, 2, 6, 10, 14)
		quarterRound(&working, 3, 7, 11, 15)
		quarterRound(&working, 0, 5, 10, 15)
		quarterRound(&working, 1, 6, 11, 12)
		quarterRound(&working, 2, 7, 8, 13)
		quarterRound(&working, 3, 4, 9, 14)
	}

	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(s.block[i*4:i*4+4], working[i]+state[i])
	}
	s.counter++
	s.pos = 0
}

// Bytes fills dst with the next len(dst) bytes of keystream, refilling the
// 64-byte block and incrementing the counter whenever the current block is
// exhausted.
func (s *State) Bytes(dst []byte) {
	for len(dst) > 0 {
		if s.pos == BlockSize {
			s.generateBlock()
		}
		n := copy(dst, s.block[s.pos:])
		s.pos += uint8(n)
		dst = dst[n:]
	}
}
