package noise

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// HandshakeRole identifies which side of the XX handshake a session plays.
type HandshakeRole uint8

const (
	// Initiator sends the first handshake message.
	Initiator HandshakeRole = iota
	// Responder waits for the initiator's first message.
	Responder
)

func (r HandshakeRole) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// SessionState identifies where a session is in its lifecycle.
type SessionState uint8

const (
	// StateUninitialized means no handshake has started.
	StateUninitialized SessionState = iota
	// StateHandshaking means handshake messages are in flight.
	StateHandshaking
	// StateEstablished means the handshake finished and transport ciphers
	// are active.
	StateEstablished
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// A NoiseSession manages the complete lifecycle of one encrypted channel
// with one peer: handshake, transport, and teardown. Methods are safe for
// concurrent use, though handshake and transport calls are expected to be
// driven by a single connection handler.
type NoiseSession struct {
	mu   sync.Mutex
	peer string
	role HandshakeRole

	state  SessionState
	failed bool
	hs     *HandshakeState
	send   *CipherState
	recv   *CipherState

	static         DHKey
	prologue       []byte
	extractedNonce bool
	rng            io.Reader

	remoteStatic  []byte
	handshakeHash []byte

	log *logrus.Entry
}

// NewSession creates a session for the given peer in the given role. The
// static keypair is copied, so later wiping by the session leaves the
// caller's identity keys untouched.
func NewSession(peerID string, role HandshakeRole, cfg SessionConfig) (*NoiseSession, error) {
	if !cfg.StaticKeypair.Valid() {
		return nil, ErrMissingLocalStaticKey
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NoiseSession{
		peer:           peerID,
		role:           role,
		state:          StateUninitialized,
		static:         cfg.StaticKeypair.clone(),
		prologue:       append([]byte(nil), cfg.Prologue...),
		extractedNonce: cfg.ExtractedNonce,
		rng:            cfg.Random,
		log: logger.WithFields(logrus.Fields{
			"peer": peerID,
			"role": role.String(),
		}),
	}, nil
}

func (s *NoiseSession) handshakeConfig() Config {
	return Config{
		Random:        s.rng,
		Initiator:     s.role == Initiator,
		Prologue:      s.prologue,
		StaticKeypair: s.static,
	}
}

// StartHandshake arms the session. An initiator returns the first handshake
// message to send; a responder returns nil and waits for it. Valid only on
// an uninitialized session.
func (s *NoiseSession) StartHandshake() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninitialized {
		return nil, fmt.Errorf("noise: handshake already started for peer %s (state %s)", s.peer, s.state)
	}
	if !s.static.Valid() {
		return nil, ErrMissingLocalStaticKey
	}
	if s.role == Responder {
		s.state = StateHandshaking
		s.log.Debug("awaiting handshake")
		return nil, nil
	}
	hs, err := NewHandshakeState(s.handshakeConfig())
	if err != nil {
		return nil, err
	}
	msg, err := hs.WriteMessage(nil, nil)
	if err != nil {
		hs.destroy()
		return nil, err
	}
	s.hs = hs
	s.state = StateHandshaking
	s.log.Debug("handshake initiated")
	return msg, nil
}

// ProcessHandshakeMessage advances the handshake with a message received
// from the peer. When the handshake needs a reply, the reply is returned;
// when the received message completes the handshake, nil is returned and
// the session becomes established. Any cryptographic failure wipes the
// handshake and poisons the session until Reset.
func (s *NoiseSession) ProcessHandshakeMessage(message []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateEstablished:
		return nil, ErrHandshakeComplete
	case StateUninitialized:
		return nil, fmt.Errorf("noise: handshake not started for peer %s", s.peer)
	}
	if s.failed {
		return nil, errors.New("noise: session handshake failed, Reset before retrying")
	}
	if s.hs == nil {
		hs, err := NewHandshakeState(s.handshakeConfig())
		if err != nil {
			return nil, err
		}
		s.hs = hs
	}
	if _, err := s.hs.ReadMessage(nil, message); err != nil {
		s.abortHandshake(err)
		return nil, err
	}
	s.log.WithField("message", s.hs.MessageIndex()).Debug("handshake message processed")
	if s.hs.IsHandshakeComplete() {
		return nil, s.finalize()
	}
	reply, err := s.hs.WriteMessage(nil, nil)
	if err != nil {
		s.abortHandshake(err)
		return nil, err
	}
	if s.hs.IsHandshakeComplete() {
		if err := s.finalize(); err != nil {
			return nil, err
		}
	}
	return reply, nil
}

// finalize captures everything the transport phase needs from the completed
// handshake, then destroys it.
func (s *NoiseSession) finalize() error {
	send, recv, err := s.hs.TransportCiphers(s.extractedNonce)
	if err != nil {
		s.abortHandshake(err)
		return err
	}
	s.remoteStatic = s.hs.PeerStatic()
	s.handshakeHash = s.hs.ChannelBinding()
	s.hs.destroy()
	s.hs = nil
	s.send, s.recv = send, recv
	s.state = StateEstablished
	s.log.WithField("channel", fmt.Sprintf("%x", s.handshakeHash[:8])).Info("noise session established")
	return nil
}

func (s *NoiseSession) abortHandshake(err error) {
	if s.hs != nil {
		s.hs.destroy()
		s.hs = nil
	}
	s.failed = true
	s.log.WithError(err).Warn("noise handshake failed")
}

// Encrypt protects plaintext for the peer. Valid only on an established
// session.
func (s *NoiseSession) Encrypt(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEstablished {
		return nil, ErrNotEstablished
	}
	if len(plaintext) > MaxMsgLen {
		return nil, fmt.Errorf("noise: plaintext exceeds %d bytes", MaxMsgLen)
	}
	return s.send.Encrypt(nil, nil, plaintext)
}

// Decrypt opens a transport ciphertext from the peer. Valid only on an
// established session.
func (s *NoiseSession) Decrypt(ciphertext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEstablished {
		return nil, ErrNotEstablished
	}
	plaintext, err := s.recv.Decrypt(nil, nil, ciphertext)
	if err != nil {
		s.log.WithError(err).Warn("transport decrypt failed")
		return nil, err
	}
	return plaintext, nil
}

// IsEstablished reports whether the session has live transport ciphers.
func (s *NoiseSession) IsEstablished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateEstablished
}

// State returns the session's lifecycle state.
func (s *NoiseSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PeerID returns the peer identifier the session was created for.
func (s *NoiseSession) PeerID() string {
	return s.peer
}

// Role returns the handshake role the session plays.
func (s *NoiseSession) Role() HandshakeRole {
	return s.role
}

// GetRemoteStaticPublicKey returns a copy of the peer's authenticated
// static public key, or nil before the session is established.
func (s *NoiseSession) GetRemoteStaticPublicKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remoteStatic == nil {
		return nil
	}
	return append([]byte(nil), s.remoteStatic...)
}

// GetHandshakeHash returns a copy of the channel-binding hash, or nil
// before the session is established. Both peers of an established session
// hold the same value.
func (s *NoiseSession) GetHandshakeHash() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handshakeHash == nil {
		return nil
	}
	return append([]byte(nil), s.handshakeHash...)
}

// NeedsRekey reports whether the send counter is close enough to its
// ceiling that the caller should run a fresh handshake soon.
func (s *NoiseSession) NeedsRekey() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEstablished {
		return false
	}
	limit := MaxNonce
	if s.extractedNonce {
		limit = MaxExtractedNonce
	}
	return s.send.Nonce() >= limit-RekeyMargin
}

// Reset returns the session to its uninitialized state, wiping all
// handshake and transport material. The local static keypair is kept, so
// the session can start a fresh handshake.
func (s *NoiseSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.log.Debug("noise session reset")
}

func (s *NoiseSession) resetLocked() {
	if s.hs != nil {
		s.hs.destroy()
		s.hs = nil
	}
	if s.send != nil {
		s.send.clear()
		s.send = nil
	}
	if s.recv != nil {
		s.recv.clear()
		s.recv = nil
	}
	secureZeroAll(s.remoteStatic, s.handshakeHash)
	s.remoteStatic, s.handshakeHash = nil, nil
	s.failed = false
	s.state = StateUninitialized
}

// Close resets the session and wipes its copy of the local static keypair.
// The session cannot be restarted afterward.
func (s *NoiseSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.static.wipe()
	s.log.Debug("noise session closed")
}
