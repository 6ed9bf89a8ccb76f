package streamserver

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // test mirrors the wire-format MAC, not a security boundary
	"crypto/rand"
	"crypto/sha256"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flickpp/ppenc/internal/chacha8"
	"github.com/flickpp/ppenc/internal/identity"
	"github.com/flickpp/ppenc/ppenc"
)

// newMonsterMacStub returns an httptest server that echoes back a fixed
// 32-byte tag for any POST body, standing in for a running MonsterMac
// instance during the handshake.
func newMonsterMacStub(t *testing.T, mmac [32]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write(mmac[:])
	}))
}

// buildToken constructs a wire token whose MAC verifies against mmac, the
// tag the monstermac stub will return for this device's name.
func buildToken(t *testing.T, name [32]byte, mmac [32]byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, mmac[:])
	mac.Write(name[:])
	digest := md5.Sum(mac.Sum(nil)) //nolint:gosec

	tok := identity.Token{Name: name, TokenMAC: digest}
	return tok.FormatToken()
}

func TestStreamSetupAndMessageLoop(t *testing.T) {
	var mmac [32]byte
	_, err := rand.Read(mmac[:])
	require.NoError(t, err)

	stub := newMonsterMacStub(t, mmac)
	defer stub.Close()

	var name [32]byte
	_, err = rand.Read(name[:])
	require.NoError(t, err)
	token := buildToken(t, name, mmac)

	srv := NewServer("127.0.0.1:0", stub.URL, 2*time.Second, nil, nil)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.Address().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(token))
	require.NoError(t, err)

	var headerStateInit, bodyKeyState0 [32]byte
	_, err = io.ReadFull(conn, headerStateInit[:])
	require.NoError(t, err)
	_, err = io.ReadFull(conn, bodyKeyState0[:])
	require.NoError(t, err)

	var headerRNGNonce [12]byte
	_, err = rand.Read(headerRNGNonce[:])
	require.NoError(t, err)
	_, err = conn.Write(headerRNGNonce[:])
	require.NoError(t, err)

	headerKeySalt, bodyKeySalt := identity.DeviceSalt(mmac[:])

	var rngKey [chacha8.KeySize]byte
	var rngNonce [chacha8.NonceSize]byte
	_, err = rand.Read(rngKey[:])
	require.NoError(t, err)
	_, err = rand.Read(rngNonce[:])
	require.NoError(t, err)

	sender := ppenc.NewSender(ppenc.ChannelParams{
		HeaderKeySalt:   headerKeySalt,
		HeaderStateInit: headerStateInit,
		HeaderRNGNonce:  headerRNGNonce,
		BodyKeySalt:     bodyKeySalt,
		BodyKeyState0:   bodyKeyState0,
	}, rngKey, rngNonce)

	frame, expectedMAC := sender.NewMsg([]byte("hello from the stream server test"))

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	_, err = conn.Write(frame.Header[:])
	require.NoError(t, err)
	_, err = conn.Write(frame.Body)
	require.NoError(t, err)

	var gotMAC [32]byte
	_, err = io.ReadFull(conn, gotMAC[:])
	require.NoError(t, err)
	require.True(t, bytes.Equal(expectedMAC[:], gotMAC[:]))
}

func TestStreamSetupRejectsBadTokenMAC(t *testing.T) {
	var mmac [32]byte
	_, err := rand.Read(mmac[:])
	require.NoError(t, err)
	stub := newMonsterMacStub(t, mmac)
	defer stub.Close()

	var name [32]byte
	_, err = rand.Read(name[:])
	require.NoError(t, err)

	var badMAC [16]byte
	tok := identity.Token{Name: name, TokenMAC: badMAC}

	srv := NewServer("127.0.0.1:0", stub.URL, 2*time.Second, nil, nil)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.Address().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(tok.FormatToken()))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.Error(t, err)
}
