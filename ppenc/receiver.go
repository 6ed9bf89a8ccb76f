package ppenc

import (
	"github.com/flickpp/ppenc/internal/chacha8"
	"github.com/flickpp/ppenc/internal/scramble"
)

// Receiver is one endpoint of a PPEnc channel. It owns all per-channel
// state (§3) and is not safe for concurrent use — exactly one goroutine
// may drive a Receiver for its whole lifetime (§5).
type Receiver struct {
	expectedSeqNum    uint32
	currentBodyKeyNum uint16
	bodyKeys          *bodyKeyHistory
	headerKeystream   *chacha8.State
}

// NewReceiver constructs a Receiver from the five channel parameters
// established by the out-of-band handshake (§6).
func NewReceiver(params ChannelParams) *Receiver {
	return &Receiver{
		expectedSeqNum:  1,
		bodyKeys:        newBodyKeyHistory(params.BodyKeySalt, params.BodyKeyState0),
		headerKeystream: newHeaderKeystream(params.HeaderKeySalt, params.HeaderStateInit, params.HeaderRNGNonce),
	}
}

// ReadHeader unscrambles and decrypts a 32-byte raw header in place,
// validates it, and — on success — installs any intermediate body-key
// generations the frame's body_key_num requires (§4.9). The caller must
// call ReadBody next with the returned Header, or abandon the channel.
func (r *Receiver) ReadHeader(raw *[32]byte) (*Header, error) {
	scramble.ScrambleInverse(raw)
	mask := nextHeaderMask(r.headerKeystream)
	xorHeader(raw, mask)

	h := decodeHeader(*raw)

	if h.Version != currentVersion {
		return nil, newErr(ErrBadVersion)
	}
	if h.SeqNum != r.expectedSeqNum {
		return nil, newErr(ErrBadSeqNum)
	}
	if h.BodyKeyNum < r.currentBodyKeyNum {
		return nil, newErr(ErrBodyKeyInPast)
	}
	if h.BodyKeyNum > r.currentBodyKeyNum {
		r.bodyKeys.advanceTo(r.currentBodyKeyNum, h.BodyKeyNum)
		r.currentBodyKeyNum = h.BodyKeyNum
	}

	return &h, nil
}

// ReadBody decrypts body (exactly BodyPaddedLen(header.BodyLen) bytes) in
// place, verifies its checksum, and returns the 32-byte response MAC
// (§4.9). The caller must present the Header returned by the immediately
// preceding ReadHeader call and then truncate body to header.BodyLen to
// recover the plaintext.
func (r *Receiver) ReadBody(h *Header, body []byte) ([32]byte, error) {
	key, ok := r.bodyKeys.get(h.BodyKeyNum)
	if !ok {
		panic("ppenc: ReadBody called with a header whose body key generation was never installed — must be the Header returned by the immediately preceding ReadHeader call")
	}
	cryptBody(key, h.TweekSeed, body, false)

	checksum := bodyChecksum(body, h.InnerSalt, h.SeqNum, h.BodyKeyNum)
	if checksum != h.BodyChecksum {
		return [32]byte{}, newErr(ErrBadBodyChecksum)
	}

	mac := responseMAC(body, h.InnerSalt, h.SeqNum, h.BodyKeyNum)
	r.expectedSeqNum++
	return mac, nil
}
