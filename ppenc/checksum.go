package ppenc

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/flickpp/ppenc/internal/shafast"
)

var checksumDomain = [4]byte{0x00, 0x00, 0x00, 0x00}
var macDomain = [4]byte{'R', 'M', 'A', 'C'}

// buildFastPathInput assembles the 48-byte buffer fed to the restricted
// SHA-256 fast path, per SPEC_FULL.md §4.13: a general SHA-256 of the
// padded body, followed by inner_salt, seq_num, body_key_num, and a 4-byte
// domain tag distinguishing a checksum derivation from a response-MAC
// derivation.
func buildFastPathInput(paddedBody []byte, innerSalt [6]byte, seqNum uint32, bodyKeyNum uint16, domain [4]byte) [48]byte {
	bodyHash := sha256.Sum256(paddedBody)

	var buf [48]byte
	copy(buf[0:32], bodyHash[:])
	copy(buf[32:38], innerSalt[:])
	binary.LittleEndian.PutUint32(buf[38:42], seqNum)
	binary.LittleEndian.PutUint16(buf[42:44], bodyKeyNum)
	copy(buf[44:48], domain[:])

	return buf
}

// bodyChecksum computes the 8-byte truncated checksum over a padded body
// (§4.9 step 2).
func bodyChecksum(paddedBody []byte, innerSalt [6]byte, seqNum uint32, bodyKeyNum uint16) [8]byte {
	buf := buildFastPathInput(paddedBody, innerSalt, seqNum, bodyKeyNum, checksumDomain)
	tag := shafast.Sum48(buf)

	var out [8]byte
	copy(out[:], tag[:8])
	return out
}

// responseMAC computes the 32-byte response MAC over a padded body (§4.9
// step 4).
func responseMAC(paddedBody []byte, innerSalt [6]byte, seqNum uint32, bodyKeyNum uint16) [32]byte {
	buf := buildFastPathInput(paddedBody, innerSalt, seqNum, bodyKeyNum, macDomain)
	return shafast.Sum48(buf)
}
