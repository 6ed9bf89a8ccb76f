package ppenc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testParams(r *rand.Rand) ChannelParams {
	var p ChannelParams
	r.Read(p.HeaderKeySalt[:])
	r.Read(p.HeaderStateInit[:])
	r.Read(p.HeaderRNGNonce[:])
	r.Read(p.BodyKeySalt[:])
	r.Read(p.BodyKeyState0[:])
	return p
}

func newPair(r *rand.Rand) (*Sender, *Receiver) {
	params := testParams(r)

	var rngKey [32]byte
	var rngNonce [8]byte
	r.Read(rngKey[:])
	r.Read(rngNonce[:])

	return NewSender(params, rngKey, rngNonce), NewReceiver(params)
}

func deliver(t *testing.T, receiver *Receiver, frame Frame) ([]byte, [32]byte, error) {
	t.Helper()
	raw := frame.Header
	h, err := receiver.ReadHeader(&raw)
	if err != nil {
		return nil, [32]byte{}, err
	}

	body := make([]byte, len(frame.Body))
	copy(body, frame.Body)
	mac, err := receiver.ReadBody(h, body)
	if err != nil {
		return nil, [32]byte{}, err
	}
	return body[:h.BodyLen], mac, nil
}

func TestRoundTrip13Messages(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	sender, receiver := newPair(r)

	lengths := []int{1, 2, 3, 62, 63, 64, 65, 66, 126, 127, 128, 129, 130}

	for i, n := range lengths {
		if i == 4 {
			sender.NewBodyKey()
		}

		plaintext := make([]byte, n)
		r.Read(plaintext)

		frame, senderMAC := sender.NewMsg(plaintext)

		gotPlain, receiverMAC, err := deliver(t, receiver, frame)
		require.NoError(t, err, "frame %d", i+1)
		require.Equal(t, plaintext, gotPlain, "frame %d", i+1)
		require.Equal(t, senderMAC, receiverMAC, "frame %d", i+1)
		require.Equal(t, uint32(i+1), receiver.expectedSeqNum-1, "frame %d", i+1)
	}
}

func TestBitFlipRejected(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	sender, receiver := newPair(r)

	frame, _ := sender.NewMsg([]byte("hello world"))
	frame.Header[10] ^= 0x01

	_, _, err := deliver(t, receiver, frame)
	require.Error(t, err)

	var ppErr *Error
	require.ErrorAs(t, err, &ppErr)
	require.Contains(t, []ErrorKind{ErrBadVersion, ErrBadSeqNum, ErrBadBodyChecksum}, ppErr.Kind)
}

func TestReplayRejected(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	sender, receiver := newPair(r)

	frame, _ := sender.NewMsg([]byte("first message"))

	_, _, err := deliver(t, receiver, frame)
	require.NoError(t, err)

	_, _, err = deliver(t, receiver, frame)
	require.Error(t, err)
	var ppErr *Error
	require.ErrorAs(t, err, &ppErr)
	require.Equal(t, ErrBadSeqNum, ppErr.Kind)
}

func TestBodyKeyInPastRejected(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	params := testParams(r)

	var rngKey [32]byte
	var rngNonce [8]byte
	r.Read(rngKey[:])
	r.Read(rngNonce[:])

	sender := NewSender(params, rngKey, rngNonce)
	receiver := NewReceiver(params)
	// stale never rotates its body key; it composes (and discards) one
	// frame for every frame the receiver reads, so its header keystream
	// and seq_num stay in lock-step with the receiver's.
	stale := NewSender(params, rngKey, rngNonce)

	frame1, _ := sender.NewMsg([]byte("gen 0 message"))
	stale.NewMsg([]byte("gen 0 message"))
	_, _, err := deliver(t, receiver, frame1)
	require.NoError(t, err)

	sender.NewBodyKey()
	frame2, _ := sender.NewMsg([]byte("gen 1 message"))
	stale.NewMsg([]byte("gen 1 message"))
	_, _, err = deliver(t, receiver, frame2)
	require.NoError(t, err)

	// A frame still carrying generation 0, at the receiver's current
	// seq_num (3), must be rejected as BodyKeyInPast.
	frame3, _ := stale.NewMsg([]byte("stale gen 0 message"))
	raw := frame3.Header
	h, err := receiver.ReadHeader(&raw)
	if err == nil {
		t.Fatalf("expected BodyKeyInPast, got header %+v with no error", h)
	}
	var ppErr *Error
	require.ErrorAs(t, err, &ppErr)
	require.Equal(t, ErrBodyKeyInPast, ppErr.Kind)
}

func TestBodyPaddedLen(t *testing.T) {
	cases := map[uint32]uint32{
		0:   64,
		1:   64,
		63:  64,
		64:  64,
		65:  128,
		127: 128,
		128: 128,
		129: 192,
	}
	for n, want := range cases {
		got := BodyPaddedLen(n)
		require.Equal(t, want, got, "n=%d", n)
		require.Zero(t, got%64)
		require.GreaterOrEqual(t, got, n)
	}
}

// TestReadBodyPanicsOnUninstalledGeneration documents that ReadBody
// requires its Header argument to be the one ReadHeader just returned:
// passing a Header whose BodyKeyNum generation was never installed (here,
// a hand-built Header instead of one that went through ReadHeader) is a
// caller bug, not a wire condition, so it panics rather than returning a
// value from ppenc's closed error taxonomy (§7).
func TestReadBodyPanicsOnUninstalledGeneration(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	_, receiver := newPair(r)

	h := &Header{BodyKeyNum: 1234}
	body := make([]byte, 64)

	require.Panics(t, func() {
		_, _ = receiver.ReadBody(h, body)
	})
}

// TestBodyPaddedLenNearUint32Max guards against the 64-bit carry needed
// for BodyLen values whose padded length would need a 33rd bit: rounding
// must saturate rather than wrap back down to a small value, since
// BodyLen comes straight off an unauthenticated header field.
func TestBodyPaddedLenNearUint32Max(t *testing.T) {
	const maxPaddedLen uint32 = 0xFFFFFFFF - 0xFFFFFFFF%64

	cases := []uint32{0xFFFFFFC0, 0xFFFFFFC1, 0xFFFFFFFE, 0xFFFFFFFF}
	for _, n := range cases {
		got := BodyPaddedLen(n)
		require.GreaterOrEqual(t, got, n-63, "n=%d got=%d must not wrap far below n", n, got)
		require.LessOrEqual(t, got, maxPaddedLen, "n=%d got=%d must not overflow uint32", n, got)
	}
}
