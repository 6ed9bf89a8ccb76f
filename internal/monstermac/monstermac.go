// Package monstermac implements the MonsterMac keyed-MAC HTTP service
// (SPEC_FULL.md §6): given a request body, it resolves a per-request
// secret and returns HMAC-SHA256(secret, body). Secret resolution is
// grounded on monstermac/src/{config,server}.rs: MODE0 uses a single
// global secret; MODE16/MODE32 shard a secret table keyed by a Murmur2
// hash of the body's SHA-256 digest.
package monstermac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flickpp/ppenc/internal/config"
	"github.com/flickpp/ppenc/internal/murmur2"
)

// secretSize is the length in bytes of every resolved secret.
const secretSize = 32

// Resolver resolves the secret to use for a request body and computes
// its MAC, according to a fixed mode decided once at startup. This
// replaces the original's lazily-initialised global configuration with
// an explicit value constructed once by the caller (§9 design note).
type Resolver struct {
	mode            config.MonsterMacMode
	mode0Secret     []byte
	secretDir       string
}

// NewResolver constructs a Resolver from a MonsterMacConfig. In MODE0 it
// eagerly reads the global secret file so startup fails fast on a
// misconfigured deployment.
func NewResolver(cfg config.MonsterMacConfig) (*Resolver, error) {
	r := &Resolver{mode: cfg.Mode, secretDir: cfg.SecretDir}

	if cfg.Mode == config.MonsterMacMode0 {
		secret, err := os.ReadFile(cfg.Mode0SecretFile)
		if err != nil {
			return nil, fmt.Errorf("monstermac: reading mode0 secret file: %w", err)
		}
		if len(secret) != secretSize {
			return nil, fmt.Errorf("monstermac: mode0 secret file must be %d bytes, got %d", secretSize, len(secret))
		}
		r.mode0Secret = secret
	}

	return r, nil
}

// Mode returns the resolver's configured mode.
func (r *Resolver) Mode() config.MonsterMacMode {
	return r.mode
}

// ComputeMAC resolves the secret for body and returns the 32-byte
// HMAC-SHA256 tag (§6).
func (r *Resolver) ComputeMAC(body []byte) ([secretSize]byte, error) {
	var mac [secretSize]byte

	secret, err := r.resolveSecret(body)
	if err != nil {
		return mac, err
	}

	h := hmac.New(sha256.New, secret)
	h.Write(body)
	copy(mac[:], h.Sum(nil))
	return mac, nil
}

// resolveSecret implements get_secret/get_secret32 from server.rs.
func (r *Resolver) resolveSecret(body []byte) ([]byte, error) {
	switch r.mode {
	case config.MonsterMacMode0:
		return r.mode0Secret, nil
	case config.MonsterMacMode16:
		keyID := keyIDFor(body) & 0xffff
		return r.readShardedSecret(keyID)
	case config.MonsterMacMode32:
		keyID := keyIDFor(body)
		return r.readShardedSecret(keyID)
	default:
		return nil, fmt.Errorf("monstermac: unknown mode %q", r.mode)
	}
}

// keyIDFor hashes body with SHA-256, then Murmur2 32-bit hashes the
// digest to produce a key_id (server.rs: compute_mac).
func keyIDFor(body []byte) uint32 {
	digest := sha256.Sum256(body)
	return murmur2.Sum32(digest[:])
}

// readShardedSecret reads the 32-byte secret for keyID out of the
// per-shard file named by the hex of keyID's upper 16 bits, at the byte
// offset given by keyID's lower 16 bits (server.rs: get_secret32).
func (r *Resolver) readShardedSecret(keyID uint32) ([]byte, error) {
	shard := uint16(keyID >> 16)
	var shardNameBytes [2]byte
	binary.LittleEndian.PutUint16(shardNameBytes[:], shard)
	shardName := hex.EncodeToString(shardNameBytes[:])

	path := filepath.Join(r.secretDir, shardName)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("monstermac: opening secret shard %q: %w", shardName, err)
	}
	defer f.Close()

	offset := int64(keyID&0xffff) * secretSize
	secret := make([]byte, secretSize)
	if _, err := f.ReadAt(secret, offset); err != nil {
		return nil, fmt.Errorf("monstermac: reading secret at offset %d in shard %q: %w", offset, shardName, err)
	}
	return secret, nil
}
