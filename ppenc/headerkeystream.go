package ppenc

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/flickpp/ppenc/internal/chacha8"
)

// newHeaderKeystream derives and initialises the ChaCha8 instance that
// produces the per-frame 32-byte header mask, per SPEC_FULL.md §4.12: the
// key is a general SHA-256 of header_key_salt || header_state_init, the
// nonce is the first 8 bytes of header_rng_nonce, and the initial block
// counter is the remaining 4 bytes of header_rng_nonce (little-endian) —
// consuming every byte of every header channel parameter exactly once.
func newHeaderKeystream(headerKeySalt [16]byte, headerStateInit [32]byte, headerRNGNonce [12]byte) *chacha8.State {
	h := sha256.New()
	h.Write(headerKeySalt[:])
	h.Write(headerStateInit[:])
	key := h.Sum(nil)

	var keyArr [chacha8.KeySize]byte
	copy(keyArr[:], key)

	var nonceArr [chacha8.NonceSize]byte
	copy(nonceArr[:], headerRNGNonce[:8])

	counter := binary.LittleEndian.Uint32(headerRNGNonce[8:12])

	s := &chacha8.State{}
	s.InitWithCounter(keyArr, nonceArr, counter)
	return s
}

// nextHeaderMask returns the next 32 bytes of header keystream, consumed
// once per frame by both Receiver.ReadHeader and Sender.NewMsg.
func nextHeaderMask(s *chacha8.State) [HeaderSize]byte {
	var mask [HeaderSize]byte
	s.Bytes(mask[:])
	return mask
}

func xorHeader(dst *[HeaderSize]byte, mask [HeaderSize]byte) {
	for i := range dst {
		dst[i] ^= mask[i]
	}
}
