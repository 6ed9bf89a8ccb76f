package monstermac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flickpp/ppenc/internal/config"
)

func TestMode0ComputesHMAC(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "secret")
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(secretPath, secret, 0o600))

	r, err := NewResolver(config.MonsterMacConfig{Mode: config.MonsterMacMode0, Mode0SecretFile: secretPath})
	require.NoError(t, err)

	body := []byte("hello monstermac")
	mac, err := r.ComputeMAC(body)
	require.NoError(t, err)

	h := hmac.New(sha256.New, secret)
	h.Write(body)
	require.Equal(t, h.Sum(nil), mac[:])
}

func TestMode0RejectsWrongSecretSize(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(secretPath, []byte("too short"), 0o600))

	_, err := NewResolver(config.MonsterMacConfig{Mode: config.MonsterMacMode0, Mode0SecretFile: secretPath})
	require.Error(t, err)
}

func writeShardFile(t *testing.T, dir string, shard uint16, secrets [][]byte) {
	t.Helper()
	var nameBytes [2]byte
	binary.LittleEndian.PutUint16(nameBytes[:], shard)
	path := filepath.Join(dir, hex.EncodeToString(nameBytes[:]))

	var blob []byte
	for _, s := range secrets {
		blob = append(blob, s...)
	}
	require.NoError(t, os.WriteFile(path, blob, 0o600))
}

func TestMode16ComputesHMACFromShardedSecret(t *testing.T) {
	dir := t.TempDir()
	body := []byte("some request body")

	// key_id = murmur2(sha256(body)), computed independently of this
	// package (see internal/murmur2's own known-answer tests): 0xf8f36957.
	const keyID = 0xf8f36957 & 0xffff

	secrets := make([][]byte, keyID+1)
	for i := range secrets {
		s := make([]byte, 32)
		for j := range s {
			s[j] = byte(i*7 + j)
		}
		secrets[i] = s
	}
	writeShardFile(t, dir, 0, secrets)

	r, err := NewResolver(config.MonsterMacConfig{Mode: config.MonsterMacMode16, SecretDir: dir})
	require.NoError(t, err)

	mac, err := r.ComputeMAC(body)
	require.NoError(t, err)

	h := hmac.New(sha256.New, secrets[keyID])
	h.Write(body)
	require.Equal(t, h.Sum(nil), mac[:])
}

func TestMode32ComputesHMACFromShardedSecret(t *testing.T) {
	dir := t.TempDir()
	body := []byte("another request body")

	// key_id = murmur2(sha256(body)), computed independently of this
	// package (see internal/murmur2's own known-answer tests): 0x1f7893e7.
	const keyID uint32 = 0x1f7893e7
	shard := uint16(keyID >> 16)
	lower := keyID & 0xffff

	secrets := make([][]byte, lower+1)
	for i := range secrets {
		s := make([]byte, 32)
		for j := range s {
			s[j] = byte(i + j)
		}
		secrets[i] = s
	}
	writeShardFile(t, dir, shard, secrets)

	r, err := NewResolver(config.MonsterMacConfig{Mode: config.MonsterMacMode32, SecretDir: dir})
	require.NoError(t, err)

	mac, err := r.ComputeMAC(body)
	require.NoError(t, err)

	h := hmac.New(sha256.New, secrets[lower])
	h.Write(body)
	require.Equal(t, h.Sum(nil), mac[:])
}

func TestMode16MissingShardFileErrors(t *testing.T) {
	dir := t.TempDir()
	r, err := NewResolver(config.MonsterMacConfig{Mode: config.MonsterMacMode16, SecretDir: dir})
	require.NoError(t, err)

	_, err = r.ComputeMAC([]byte("anything"))
	require.Error(t, err)
}
