package ppenc

import "encoding/binary"

// currentVersion is the only version byte this implementation accepts.
const currentVersion = 0x00

// Header is a parsed view of a frame's 32-byte header, valid after
// Receiver.ReadHeader or populated by Sender.NewMsg (§3).
type Header struct {
	Version      byte
	SeqNum       uint32
	BodyLen      uint32
	BodyKeyNum   uint16
	InnerSalt    [6]byte
	TweekSeed    [8]byte
	BodyChecksum [8]byte
}

// BodyPaddedLen returns the padded body length a frame carrying this
// header requires on the wire (§4.11).
func (h Header) BodyPaddedLen() uint32 {
	return BodyPaddedLen(h.BodyLen)
}

// encodeHeader writes h's fields into a 32-byte plaintext buffer using the
// layout resolved in SPEC_FULL.md §4.15: version packed into the top byte
// of the little-endian seq_num word, every other field at its literal
// spec-given width and offset.
func encodeHeader(h *Header) [HeaderSize]byte {
	var buf [HeaderSize]byte

	seqWord := (uint32(h.Version) << 24) | (h.SeqNum & 0x00ffffff)
	binary.LittleEndian.PutUint32(buf[0:4], seqWord)
	binary.LittleEndian.PutUint32(buf[4:8], h.BodyLen)
	binary.LittleEndian.PutUint16(buf[8:10], h.BodyKeyNum)
	copy(buf[10:16], h.InnerSalt[:])
	copy(buf[16:24], h.TweekSeed[:])
	copy(buf[24:32], h.BodyChecksum[:])

	return buf
}

// decodeHeader is the inverse of encodeHeader.
func decodeHeader(buf [HeaderSize]byte) Header {
	seqWord := binary.LittleEndian.Uint32(buf[0:4])

	var h Header
	h.Version = byte(seqWord >> 24)
	h.SeqNum = seqWord & 0x00ffffff
	h.BodyLen = binary.LittleEndian.Uint32(buf[4:8])
	h.BodyKeyNum = binary.LittleEndian.Uint16(buf[8:10])
	copy(h.InnerSalt[:], buf[10:16])
	copy(h.TweekSeed[:], buf[16:24])
	copy(h.BodyChecksum[:], buf[24:32])

	return h
}
