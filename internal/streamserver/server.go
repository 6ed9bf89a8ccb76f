// Package streamserver implements the PPEnc TCP stream server: it accepts
// connections, runs the channel-establishment handshake against
// MonsterMac, and then drives a ppenc.Receiver over the connection's
// frame stream. Grounded on example-server/src/main.rs's stream_setup/
// run_stream_with_res, rewritten around the teacher's goroutine-per-
// connection and graceful-shutdown idioms (internal/health/server.go).
package streamserver

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/flickpp/ppenc/internal/identity"
	"github.com/flickpp/ppenc/internal/logging"
	"github.com/flickpp/ppenc/internal/metrics"
	"github.com/flickpp/ppenc/ppenc"
)

const (
	tokenWireLen      = identity.TokenWireLen
	headerRNGNonceLen = 12
	initialBodyBufLen = 512
)

// Server is the PPEnc stream server: a TCP listener that spawns one
// handler goroutine per accepted connection (§6).
type Server struct {
	addr             string
	monsterMacURL    string
	handshakeTimeout time.Duration
	httpClient       *http.Client
	logger           *slog.Logger
	metrics          *metrics.Metrics

	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewServer constructs a Server bound to addr, resolving channel tokens
// against the MonsterMac instance at monsterMacURL.
func NewServer(addr, monsterMacURL string, handshakeTimeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if m == nil {
		m = metrics.Default()
	}
	return &Server{
		addr:             addr,
		monsterMacURL:    monsterMacURL,
		handshakeTimeout: handshakeTimeout,
		httpClient:       &http.Client{Timeout: handshakeTimeout},
		logger:           logger,
		metrics:          m,
	}
}

// Start begins accepting connections in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("streamserver: listen: %w", err)
	}
	s.listener = ln
	s.running.Store(true)

	go s.acceptLoop()
	return nil
}

// Stop closes the listener and waits for in-flight connections to drain.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

// Address returns the server's bound listen address.
func (s *Server) Address() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// handleConn runs a single connection's handshake and message loop to
// completion, logging and closing the connection on any error.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	remoteAddr := conn.RemoteAddr().String()
	start := time.Now()

	deviceID, receiver, err := s.streamSetup(conn)
	if err != nil {
		s.metrics.RecordHandshakeError(err.Error())
		s.logger.Warn("handshake failed", logging.KeyRemoteAddr, remoteAddr, "error", err)
		return
	}
	s.metrics.RecordHandshake(time.Since(start).Seconds())
	defer s.metrics.RecordChannelClosed()

	s.logger.Info("channel established",
		logging.KeyDeviceID, deviceID,
		logging.KeyRemoteAddr, remoteAddr,
	)

	if err := s.runMessageLoop(conn, deviceID, receiver); err != nil && err != io.EOF {
		attrs := append([]any{logging.KeyDeviceID, deviceID}, logging.ErrAttrs(err)...)
		s.logger.Warn("stream closed", attrs...)
	}
}

// streamSetup implements the channel-establishment handshake: read the
// 100-byte wire token, verify it against MonsterMac, derive the device's
// salts, generate and send the two random channel-init values, read back
// the sender's header RNG nonce, and build the Receiver (§6).
func (s *Server) streamSetup(conn net.Conn) (string, *ppenc.Receiver, error) {
	tokenBuf := make([]byte, tokenWireLen)
	if _, err := io.ReadFull(conn, tokenBuf); err != nil {
		return "", nil, fmt.Errorf("couldn't read token from stream: %w", err)
	}

	tok, err := identity.ParseToken(string(tokenBuf))
	if err != nil {
		return "", nil, err
	}

	mmac, err := s.callMonsterMac(tok.Name[:])
	if err != nil {
		return "", nil, err
	}
	if !tok.VerifyMAC(mmac) {
		return "", nil, fmt.Errorf("invalid token mac")
	}

	deviceID := identity.DeviceID(mmac)
	headerKeySalt, bodyKeySalt := identity.DeviceSalt(mmac)

	var headerStateInit, bodyKeyState0 [32]byte
	if _, err := rand.Read(headerStateInit[:]); err != nil {
		return "", nil, fmt.Errorf("couldn't generate header_state_init: %w", err)
	}
	if _, err := rand.Read(bodyKeyState0[:]); err != nil {
		return "", nil, fmt.Errorf("couldn't generate body_key_state0: %w", err)
	}

	if _, err := conn.Write(headerStateInit[:]); err != nil {
		return "", nil, fmt.Errorf("couldn't write header_state_init: %w", err)
	}
	if _, err := conn.Write(bodyKeyState0[:]); err != nil {
		return "", nil, fmt.Errorf("couldn't write body_key_state0: %w", err)
	}

	var headerRNGNonce [headerRNGNonceLen]byte
	if _, err := io.ReadFull(conn, headerRNGNonce[:]); err != nil {
		return "", nil, fmt.Errorf("couldn't read header_rng_nonce: %w", err)
	}

	receiver := ppenc.NewReceiver(ppenc.ChannelParams{
		HeaderKeySalt:   headerKeySalt,
		HeaderStateInit: headerStateInit,
		HeaderRNGNonce:  headerRNGNonce,
		BodyKeySalt:     bodyKeySalt,
		BodyKeyState0:   bodyKeyState0,
	})
	return deviceID, receiver, nil
}

// callMonsterMac POSTs name to the configured MonsterMac instance and
// returns its 32-byte tag.
func (s *Server) callMonsterMac(name []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.handshakeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.monsterMacURL, bytes.NewReader(name))
	if err != nil {
		return nil, fmt.Errorf("couldn't build monstermac request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("couldn't call monstermac: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("monstermac returned status %d", resp.StatusCode)
	}

	mmac, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return nil, fmt.Errorf("couldn't read monstermac response body: %w", err)
	}
	if len(mmac) != 32 {
		return nil, fmt.Errorf("invalid monstermac response body length %d", len(mmac))
	}
	return mmac, nil
}

// runMessageLoop reads frames off conn until an error or the connection
// closes, writing back each frame's response MAC (§6).
func (s *Server) runMessageLoop(conn net.Conn, deviceID string, receiver *ppenc.Receiver) error {
	var headerBuf [ppenc.HeaderSize]byte
	body := make([]byte, initialBodyBufLen)

	for {
		if _, err := io.ReadFull(conn, headerBuf[:]); err != nil {
			return err
		}

		header, err := receiver.ReadHeader(&headerBuf)
		if err != nil {
			s.metrics.RecordFrameRejected(errorKindLabel(err))
			return fmt.Errorf("bad header in stream: %w", err)
		}

		paddedLen := int(header.BodyPaddedLen())
		if cap(body) < paddedLen {
			body = make([]byte, paddedLen)
		} else {
			body = body[:paddedLen]
		}

		if _, err := io.ReadFull(conn, body); err != nil {
			return fmt.Errorf("couldn't read body: %w", err)
		}

		respMAC, err := receiver.ReadBody(header, body)
		if err != nil {
			s.metrics.RecordFrameRejected(errorKindLabel(err))
			return fmt.Errorf("bad body in stream: %w", err)
		}
		s.metrics.RecordFrameAccepted(paddedLen)

		s.logger.Debug("message",
			logging.KeyDeviceID, deviceID,
			logging.KeySeqNum, header.SeqNum,
			logging.KeyBodyKeyNum, header.BodyKeyNum,
			logging.KeyBytes, humanize.Bytes(uint64(paddedLen)),
			logging.KeyResponseMAC, hex.EncodeToString(respMAC[:5]),
		)

		if _, err := conn.Write(respMAC[:]); err != nil {
			return fmt.Errorf("couldn't write response_mac: %w", err)
		}
	}
}

// errorKindLabel renders a ppenc error's Kind as a stable metrics label.
func errorKindLabel(err error) string {
	if pe, ok := err.(*ppenc.Error); ok {
		switch pe.Kind {
		case ppenc.ErrBadVersion:
			return "bad_version"
		case ppenc.ErrBadSeqNum:
			return "bad_seq_num"
		case ppenc.ErrBadBodyChecksum:
			return "bad_body_checksum"
		case ppenc.ErrBodyKeyInPast:
			return "body_key_in_past"
		default:
			return "unknown"
		}
	}
	return "unknown"
}
