package ppenc

import (
	"github.com/flickpp/ppenc/internal/chacha8"
	"github.com/flickpp/ppenc/internal/scramble"
)

// Sender is the mirror endpoint of Receiver: it composes frames on demand
// from caller-presented plaintext and advances its own body key and
// sequence number the same way the receiver does (§4.10). Not safe for
// concurrent use.
type Sender struct {
	nextSeqNum        uint32
	currentBodyKeyNum uint16
	currentBodyKey    [64]byte
	bodyKeySalt       [16]byte
	headerKeystream   *chacha8.State
	rng               *senderRNG
}

// NewSender constructs a Sender from the five channel parameters plus a
// key/nonce for its own Sender RNG (§4.8) — the original implementation
// takes an already-initialised Sender RNG as a separate input, grounding
// this as a distinct construction parameter rather than something derived
// from the channel parameters.
func NewSender(params ChannelParams, rngKey [chacha8.KeySize]byte, rngNonce [chacha8.NonceSize]byte) *Sender {
	return &Sender{
		nextSeqNum:      1,
		currentBodyKey:  bodyKeyGeneration0(params.BodyKeyState0),
		bodyKeySalt:     params.BodyKeySalt,
		headerKeystream: newHeaderKeystream(params.HeaderKeySalt, params.HeaderStateInit, params.HeaderRNGNonce),
		rng:             newSenderRNG(rngKey, rngNonce),
	}
}

// Frame is one wire-ready PPEnc frame: a scrambled, XOR-masked 32-byte
// header and its padded, encrypted body.
type Frame struct {
	Header [HeaderSize]byte
	Body   []byte
}

// NewMsg composes a new frame carrying plaintext, returning the wire frame
// and the 32-byte response MAC a correctly-functioning receiver will
// compute for it (§4.10).
func (s *Sender) NewMsg(plaintext []byte) (Frame, [32]byte) {
	seqNum := s.nextSeqNum

	var innerSalt [6]byte
	s.rng.nbytes(innerSalt[:])
	var tweekSeed [8]byte
	s.rng.nbytes(tweekSeed[:])

	paddedLen := BodyPaddedLen(uint32(len(plaintext)))
	body := make([]byte, paddedLen)
	copy(body, plaintext)
	if pad := body[len(plaintext):]; len(pad) > 0 {
		s.rng.nbytes(pad)
	}

	checksum := bodyChecksum(body, innerSalt, seqNum, s.currentBodyKeyNum)
	mac := responseMAC(body, innerSalt, seqNum, s.currentBodyKeyNum)

	cryptBody(s.currentBodyKey, tweekSeed, body, true)

	h := Header{
		Version:      currentVersion,
		SeqNum:       seqNum,
		BodyLen:      uint32(len(plaintext)),
		BodyKeyNum:   s.currentBodyKeyNum,
		InnerSalt:    innerSalt,
		TweekSeed:    tweekSeed,
		BodyChecksum: checksum,
	}
	raw := encodeHeader(&h)
	mask := nextHeaderMask(s.headerKeystream)
	xorHeader(&raw, mask)
	scramble.Scramble(&raw)

	s.nextSeqNum++
	return Frame{Header: raw, Body: body}, mac
}

// NewBodyKey advances the current body-key generation by one and derives
// the new 64-byte key from the previous one (§4.9.1); subsequent NewMsg
// frames carry the new generation.
func (s *Sender) NewBodyKey() {
	next := s.currentBodyKeyNum + 1
	s.currentBodyKey = nextBodyKeyGeneration(s.currentBodyKey, s.bodyKeySalt, next)
	s.currentBodyKeyNum = next
}
