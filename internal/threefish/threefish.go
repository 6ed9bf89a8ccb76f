// Package threefish implements Threefish-512: 72 rounds over eight 64-bit
// words, keyed by a 9-word extended key schedule and tweaked by three
// 64-bit tweak words (the third being the XOR of the first two). In PPEnc
// the tweak is never supplied by the caller — it is produced by stepping a
// PCG32 generator seeded from the frame's tweek_seed (see internal/pcg32
// and ppenc's tweak derivation), so Init takes a live PCG32 state rather
// than a fixed tweak.
package threefish

import (
	"encoding/binary"

	"github.com/flickpp/ppenc/internal/pcg32"
)

const (
	// KeySize is the Threefish-512 key length in bytes.
	KeySize = 64
	// BlockSize is the Threefish-512 block length in bytes.
	BlockSize = 64
	rounds    = 72
	numWords  = 8
	numSub    = rounds/4 + 1

	keyScheduleParity uint64 = 0x1BD11BDAA9FC1A22
	pcgInc            uint64 = 5
)

// rotation constants per round mod 8, four per round (one per MIX pair).
var rotConst = [8][4]uint{
	{46, 36, 19, 37},
	{33, 27, 14, 42},
	{17, 49, 36, 39},
	{44, 9, 54, 56},
	{39, 30, 34, 24},
	{13, 50, 10, 17},
	{25, 29, 39, 43},
	{8, 35, 56, 22},
}

// permute is the fixed word permutation applied after each round's MIX
// step: newWord[i] = mixed[permute[i]].
var permute = [8]int{2, 1, 4, 7, 6, 5, 0, 3}

func rotl64(x uint64, n uint) uint64 {
	n &= 63
	if n == 0 {
		return x
	}
	return (x << n) | (x >> (64 - n))
}

// Cipher holds a Threefish-512 instance with its precomputed subkey table
// and the live PCG32 tweak source for this frame. It is re-initialised for
// every frame (§5: the subkey table is not stable between calls).
type Cipher struct {
	keys     [numWords + 1]uint64
	subkeys  [numSub][numWords]uint64
	pcgState uint64
}

// Init derives the 9-word extended key and, for the first block this
// Cipher will process, a fresh 16-byte tweak pulled from the given PCG32
// state (advanced in place, four Next calls per block, per ppenc's tweak
// derivation). Call Rekey before every subsequent block.
func Init(key [KeySize]byte, pcgState uint64) *Cipher {
	c := &Cipher{pcgState: pcgState}
	keyWords := bytesToWords(key)

	copy(c.keys[:numWords], keyWords[:])
	c.keys[numWords] = keyScheduleParity
	for _, k := range keyWords {
		c.keys[numWords] ^= k
	}

	tweaks := c.nextTweak()
	c.buildSubkeys(tweaks)
	return c
}

// nextTweak steps the PCG32 state four times (inc=5) to fill 16 tweak
// bytes, returning the three tweak words (the third is t0 XOR t1).
func (c *Cipher) nextTweak() [3]uint64 {
	var buf [16]byte
	for i := 0; i < 4; i++ {
		v := pcg32.Next(pcgInc, &c.pcgState)
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	var t [3]uint64
	t[0] = binary.LittleEndian.Uint64(buf[0:8])
	t[1] = binary.LittleEndian.Uint64(buf[8:16])
	t[2] = t[0] ^ t[1]
	return t
}

func (c *Cipher) buildSubkeys(tweaks [3]uint64) {
	for s := 0; s < numSub; s++ {
		for i := 0; i < 5; i++ {
			c.subkeys[s][i] = c.keys[(s+i)%9]
		}
		c.subkeys[s][5] = c.keys[(s+5)%9] + tweaks[s%3]
		c.subkeys[s][6] = c.keys[(s+6)%9] + tweaks[(s+1)%3]
		c.subkeys[s][7] = c.keys[(s+7)%9] + uint64(s)
	}
}

// Rekey derives a fresh tweak from the live PCG32 state and rebuilds the
// subkey table's tweak-dependent words, matching §4.3's "each call to
// encrypt_block/decrypt_block advances the tweak source." Call this before
// every block after the first (Init already primes the first block).
func (c *Cipher) Rekey() {
	tweaks := c.nextTweak()
	c.buildSubkeys(tweaks)
}

func bytesToWords(b [KeySize]byte) [numWords]uint64 {
	var w [numWords]uint64
	for i := 0; i < numWords; i++ {
		w[i] = binary.LittleEndian.Uint64(b[i*8 : i*8+8])
	}
	return w
}

// EncryptBlock encrypts one 64-byte block in place using the current
// subkey table.
func (c *Cipher) EncryptBlock(block *[BlockSize]byte) {
	v := blockToWords(block)
	for d := 0; d < rounds; d++ {
		if d%4 == 0 {
			sk := c.subkeys[d/4]
			for i := 0; i < numWords; i++ {
				v[i] += sk[i]
			}
		}
		var y [numWords]uint64
		rs := rotConst[d%8]
		for j := 0; j < 4; j++ {
			y[2*j] = v[2*j] + v[2*j+1]
			y[2*j+1] = rotl64(v[2*j+1], rs[j]) ^ y[2*j]
		}
		for i := 0; i < numWords; i++ {
			v[i] = y[permute[i]]
		}
	}
	sk := c.subkeys[rounds/4]
	for i := 0; i < numWords; i++ {
		v[i] += sk[i]
	}
	wordsToBlock(v, block)
}

func rotr64(x uint64, n uint) uint64 {
	n &= 63
	if n == 0 {
		return x
	}
	return (x >> n) | (x << (64 - n))
}

// invPermute is the inverse of permute: mixed[i] = permuted[invPermute[i]].
var invPermute = func() [8]int {
	var inv [8]int
	for i, p := range permute {
		inv[p] = i
	}
	return inv
}()

// DecryptBlock decrypts one 64-byte block in place using the current
// subkey table.
func (c *Cipher) DecryptBlock(block *[BlockSize]byte) {
	v := blockToWords(block)

	sk := c.subkeys[rounds/4]
	for i := 0; i < numWords; i++ {
		v[i] -= sk[i]
	}

	for d := rounds - 1; d >= 0; d-- {
		var y [numWords]uint64
		for j := 0; j < numWords; j++ {
			y[j] = v[invPermute[j]]
		}
		rs := rotConst[d%8]
		var e [numWords]uint64
		for j := 0; j < 4; j++ {
			e[2*j+1] = rotr64(y[2*j+1]^y[2*j], rs[j])
			e[2*j] = y[2*j] - e[2*j+1]
		}
		v = e
		if d%4 == 0 {
			sk := c.subkeys[d/4]
			for i := 0; i < numWords; i++ {
				v[i] -= sk[i]
			}
		}
	}
	wordsToBlock(v, block)
}

func blockToWords(block *[BlockSize]byte) [numWords]uint64 {
	var w [numWords]uint64
	for i := 0; i < numWords; i++ {
		w[i] = binary.LittleEndian.Uint64(block[i*8 : i*8+8])
	}
	return w
}

func wordsToBlock(w [numWords]uint64, block *[BlockSize]byte) {
	for i := 0; i < numWords; i++ {
		binary.LittleEndian.PutUint64(block[i*8:i*8+8], w[i])
	}
}
