package noise

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	noiselib "github.com/flynn/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var flynnSuite = noiselib.NewCipherSuite(noiselib.DH25519, noiselib.CipherChaChaPoly, noiselib.HashSHA256)

func newFlynnState(t *testing.T, initiator bool, static noiselib.DHKey, rng io.Reader, prologue []byte) *noiselib.HandshakeState {
	t.Helper()
	if rng == nil {
		rng = rand.Reader
	}
	hs, err := noiselib.NewHandshakeState(noiselib.Config{
		CipherSuite:   flynnSuite,
		Random:        rng,
		Pattern:       noiselib.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: static,
		Prologue:      prologue,
	})
	require.NoError(t, err)
	return hs
}

func TestInteropOurInitiatorAgainstFlynnResponder(t *testing.T) {
	prologue := []byte("meshchat-v1")
	ourStatic, err := GenerateKeypair(nil)
	require.NoError(t, err)
	flynnStatic, err := flynnSuite.GenerateKeypair(rand.Reader)
	require.NoError(t, err)

	ours, err := NewHandshakeState(Config{
		Initiator:     true,
		StaticKeypair: ourStatic,
		Prologue:      prologue,
	})
	require.NoError(t, err)
	theirs := newFlynnState(t, false, flynnStatic, nil, prologue)

	msg1, err := ours.WriteMessage(nil, nil)
	require.NoError(t, err)
	_, _, _, err = theirs.ReadMessage(nil, msg1)
	require.NoError(t, err)

	msg2, _, _, err := theirs.WriteMessage(nil, nil)
	require.NoError(t, err)
	_, err = ours.ReadMessage(nil, msg2)
	require.NoError(t, err)

	msg3, err := ours.WriteMessage(nil, nil)
	require.NoError(t, err)
	_, theirRecv, theirSend, err := theirs.ReadMessage(nil, msg3)
	require.NoError(t, err)
	require.NotNil(t, theirRecv)
	require.NotNil(t, theirSend)

	assert.Equal(t, theirs.ChannelBinding(), ours.ChannelBinding(),
		"transcript hashes must agree across implementations")
	assert.Equal(t, flynnStatic.Public, ours.PeerStatic())
	assert.Equal(t, ourStatic.Public, theirs.PeerStatic())

	ourSend, ourRecv, err := ours.TransportCiphers(false)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ct, err := ourSend.Encrypt(nil, nil, []byte("to flynn"))
		require.NoError(t, err)
		pt, err := theirRecv.Decrypt(nil, nil, ct)
		require.NoError(t, err)
		assert.Equal(t, []byte("to flynn"), pt)

		ct, err = theirSend.Encrypt(nil, nil, []byte("from flynn"))
		require.NoError(t, err)
		pt, err = ourRecv.Decrypt(nil, nil, ct)
		require.NoError(t, err)
		assert.Equal(t, []byte("from flynn"), pt)
	}
}

func TestInteropFlynnInitiatorAgainstOurResponder(t *testing.T) {
	ourStatic, err := GenerateKeypair(nil)
	require.NoError(t, err)
	flynnStatic, err := flynnSuite.GenerateKeypair(rand.Reader)
	require.NoError(t, err)

	theirs := newFlynnState(t, true, flynnStatic, nil, nil)
	ours, err := NewHandshakeState(Config{
		Initiator:     false,
		StaticKeypair: ourStatic,
	})
	require.NoError(t, err)

	msg1, _, _, err := theirs.WriteMessage(nil, nil)
	require.NoError(t, err)
	_, err = ours.ReadMessage(nil, msg1)
	require.NoError(t, err)

	msg2, err := ours.WriteMessage(nil, nil)
	require.NoError(t, err)
	_, _, _, err = theirs.ReadMessage(nil, msg2)
	require.NoError(t, err)

	msg3, theirSend, theirRecv, err := theirs.WriteMessage(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, theirSend)
	require.NotNil(t, theirRecv)
	_, err = ours.ReadMessage(nil, msg3)
	require.NoError(t, err)

	assert.Equal(t, theirs.ChannelBinding(), ours.ChannelBinding())
	assert.Equal(t, flynnStatic.Public, ours.PeerStatic())
	assert.Equal(t, ourStatic.Public, theirs.PeerStatic())

	ourSend, ourRecv, err := ours.TransportCiphers(false)
	require.NoError(t, err)

	ct, err := theirSend.Encrypt(nil, nil, []byte("flynn speaks first"))
	require.NoError(t, err)
	pt, err := ourRecv.Decrypt(nil, nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("flynn speaks first"), pt)

	ct, err = ourSend.Encrypt(nil, nil, []byte("we answer"))
	require.NoError(t, err)
	pt, err = theirRecv.Decrypt(nil, nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("we answer"), pt)
}

func TestInteropHandshakePayloads(t *testing.T) {
	ourStatic, err := GenerateKeypair(nil)
	require.NoError(t, err)
	flynnStatic, err := flynnSuite.GenerateKeypair(rand.Reader)
	require.NoError(t, err)

	ours, err := NewHandshakeState(Config{Initiator: true, StaticKeypair: ourStatic})
	require.NoError(t, err)
	theirs := newFlynnState(t, false, flynnStatic, nil, nil)

	msg1, err := ours.WriteMessage(nil, []byte("clear hello"))
	require.NoError(t, err)
	payload, _, _, err := theirs.ReadMessage(nil, msg1)
	require.NoError(t, err)
	assert.Equal(t, []byte("clear hello"), payload)

	msg2, _, _, err := theirs.WriteMessage(nil, []byte("encrypted reply"))
	require.NoError(t, err)
	payload2, err := ours.ReadMessage(nil, msg2)
	require.NoError(t, err)
	assert.Equal(t, []byte("encrypted reply"), payload2)

	msg3, err := ours.WriteMessage(nil, []byte("final word"))
	require.NoError(t, err)
	payload3, _, _, err := theirs.ReadMessage(nil, msg3)
	require.NoError(t, err)
	assert.Equal(t, []byte("final word"), payload3)
}

// patternReader yields a deterministic byte stream so the same ephemeral keys
// can be fed to both implementations.
type patternReader struct {
	next byte
}

func (r *patternReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

func TestInteropIdenticalTranscriptsFromSeededKeys(t *testing.T) {
	iniSeed := bytes.Repeat([]byte{0x42}, DHLen)
	resSeed := bytes.Repeat([]byte{0x43}, DHLen)

	ourIniStatic, err := LoadKeypair(iniSeed)
	require.NoError(t, err)
	ourResStatic, err := LoadKeypair(resSeed)
	require.NoError(t, err)
	flynnIniStatic, err := flynnSuite.GenerateKeypair(bytes.NewReader(iniSeed))
	require.NoError(t, err)
	flynnResStatic, err := flynnSuite.GenerateKeypair(bytes.NewReader(resSeed))
	require.NoError(t, err)

	// Clamping happens inside X25519 either way, so the seeded public keys
	// agree even though flynn stores the scalar unclamped.
	require.Equal(t, ourIniStatic.Public, flynnIniStatic.Public)
	require.Equal(t, ourResStatic.Public, flynnResStatic.Public)

	ourIni, err := NewHandshakeState(Config{
		Initiator:     true,
		StaticKeypair: ourIniStatic,
		Random:        &patternReader{next: 0x10},
	})
	require.NoError(t, err)
	ourRes, err := NewHandshakeState(Config{
		Initiator:     false,
		StaticKeypair: ourResStatic,
		Random:        &patternReader{next: 0x80},
	})
	require.NoError(t, err)

	theirIni := newFlynnState(t, true, flynnIniStatic, &patternReader{next: 0x10}, nil)
	theirRes := newFlynnState(t, false, flynnResStatic, &patternReader{next: 0x80}, nil)

	ourMsg1, err := ourIni.WriteMessage(nil, nil)
	require.NoError(t, err)
	theirMsg1, _, _, err := theirIni.WriteMessage(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, theirMsg1, ourMsg1, "message 1 must match byte for byte")

	_, err = ourRes.ReadMessage(nil, ourMsg1)
	require.NoError(t, err)
	_, _, _, err = theirRes.ReadMessage(nil, theirMsg1)
	require.NoError(t, err)

	ourMsg2, err := ourRes.WriteMessage(nil, nil)
	require.NoError(t, err)
	theirMsg2, _, _, err := theirRes.WriteMessage(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, theirMsg2, ourMsg2, "message 2 must match byte for byte")

	_, err = ourIni.ReadMessage(nil, ourMsg2)
	require.NoError(t, err)
	_, _, _, err = theirIni.ReadMessage(nil, theirMsg2)
	require.NoError(t, err)

	ourMsg3, err := ourIni.WriteMessage(nil, nil)
	require.NoError(t, err)
	theirMsg3, _, _, err := theirIni.WriteMessage(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, theirMsg3, ourMsg3, "message 3 must match byte for byte")

	_, _, _, err = theirRes.ReadMessage(nil, theirMsg3)
	require.NoError(t, err)
	_, err = ourRes.ReadMessage(nil, ourMsg3)
	require.NoError(t, err)

	assert.Equal(t, theirIni.ChannelBinding(), ourIni.ChannelBinding(),
		"seeded runs must converge on one channel binding")
}
