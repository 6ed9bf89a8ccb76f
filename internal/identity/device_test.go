package identity

import (
	"crypto/hmac"
	"crypto/md5" //nolint:gosec
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeValidToken(t *testing.T, mmac []byte) (Token, string) {
	t.Helper()
	name, err := GenerateName()
	require.NoError(t, err)

	mac := hmac.New(sha256.New, mmac)
	mac.Write(name[:])
	digest := md5.Sum(mac.Sum(nil)) //nolint:gosec

	tok := Token{Name: name}
	copy(tok.TokenMAC[:], digest[:])
	return tok, tok.FormatToken()
}

func TestParseAndFormatRoundTrip(t *testing.T) {
	mmac := make([]byte, 32)
	for i := range mmac {
		mmac[i] = byte(i)
	}
	_, wire := makeValidToken(t, mmac)

	tok, err := ParseToken(wire)
	require.NoError(t, err)
	require.Equal(t, wire, tok.FormatToken())
}

func TestVerifyMAC(t *testing.T) {
	mmac := make([]byte, 32)
	for i := range mmac {
		mmac[i] = byte(i * 7)
	}
	tok, wire := makeValidToken(t, mmac)
	require.Len(t, wire, TokenWireLen)

	require.True(t, tok.VerifyMAC(mmac))

	wrongMmac := make([]byte, 32)
	require.False(t, tok.VerifyMAC(wrongMmac))
}

func TestParseTokenRejectsWrongVersion(t *testing.T) {
	bad := "01." + hex.EncodeToString(make([]byte, 32)) + "." + hex.EncodeToString(make([]byte, 16))
	_, err := ParseToken(bad)
	require.Error(t, err)
}

func TestParseTokenRejectsWrongLength(t *testing.T) {
	_, err := ParseToken("00.deadbeef.cafebabe")
	require.Error(t, err)
}

func TestDeviceIDDeterministic(t *testing.T) {
	mmac := []byte("some-monstermac-secret-tag-bytes")
	id1 := DeviceID(mmac)
	id2 := DeviceID(mmac)
	require.Equal(t, id1, id2)
	require.Len(t, id1, 32) // md5 hex
}

func TestDeviceSaltSplitsCorrectly(t *testing.T) {
	mmac := []byte("another-tag")
	header, body := DeviceSalt(mmac)

	first := sha256.Sum256(mmac)
	second := sha256.Sum256(first[:])

	require.Equal(t, second[:16], header[:])
	require.Equal(t, second[16:], body[:])
}

func TestStoreLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device_token")

	name, err := GenerateName()
	require.NoError(t, err)
	tok := Token{Name: name}
	copy(tok.TokenMAC[:], []byte("0123456789abcdef"))

	require.NoError(t, Store(path, tok))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, tok, loaded)

	// Store must not leave temp files behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
