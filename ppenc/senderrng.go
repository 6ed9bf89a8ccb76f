package ppenc

import "github.com/flickpp/ppenc/internal/chacha8"

// senderRNG is a thin scheduler over ChaCha8 producing arbitrary-length
// deterministic byte sequences for per-message inner salts, tweek seeds,
// and body padding (§4.8). It is byte-for-byte equivalent to calling
// chacha8 directly with the same key and nonce.
type senderRNG struct {
	state chacha8.State
}

func newSenderRNG(key [chacha8.KeySize]byte, nonce [chacha8.NonceSize]byte) *senderRNG {
	r := &senderRNG{}
	r.state.Init(key, nonce)
	return r
}

func (r *senderRNG) nbytes(dst []byte) {
	r.state.Bytes(dst)
}
