// Package noise implements the Noise Protocol secure-channel engine used by
// the mesh chat transport: the XX handshake pattern over Curve25519,
// ChaCha20-Poly1305 and SHA-256. It provides the handshake state machine,
// transport cipher states with optional extracted-nonce replay protection,
// and a concurrent per-peer session registry. For details on the framework
// itself, visit https://noiseprotocol.org.
package noise

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
)

// A HandshakeState tracks the state of a single Noise XX handshake. It is
// destroyed, and its key material wiped, as soon as the handshake completes
// or fails.
type HandshakeState struct {
	ss          symmetricState
	s           DHKey  // local static keypair, handshake-owned copy
	e           DHKey  // local ephemeral keypair
	rs          []byte // remote party's static public key
	re          []byte // remote party's ephemeral public key
	patterns    [][]MessagePattern
	shouldWrite bool
	initiator   bool
	msgIdx      int
	complete    bool
	split       bool
	failed      bool
	rng         io.Reader
	mu          sync.Mutex
}

// NewHandshakeState starts a new XX handshake using the provided
// configuration. The static keypair is copied, so the handshake can wipe
// its key material without corrupting the caller's identity keys.
func NewHandshakeState(c Config) (*HandshakeState, error) {
	if !c.StaticKeypair.Valid() {
		return nil, ErrMissingLocalStaticKey
	}
	hs := &HandshakeState{
		s:           c.StaticKeypair.clone(),
		e:           c.EphemeralKeypair.clone(),
		patterns:    HandshakeXX.Messages,
		shouldWrite: c.Initiator,
		initiator:   c.Initiator,
		rng:         c.Random,
	}
	if hs.rng == nil {
		hs.rng = rand.Reader
	}
	hs.ss.InitializeSymmetric([]byte(ProtocolName))
	hs.ss.MixHash(c.Prologue)
	return hs, nil
}

// fail poisons the handshake. Once any token processing has gone wrong the
// transcript can no longer match the peer's, so every later call fails too
// and the state must be discarded.
func (s *HandshakeState) fail(err error) ([]byte, error) {
	s.failed = true
	return nil, err
}

// mixDH runs X25519 over the given keys, ratchets the result into the
// chaining key, and wipes the raw shared secret.
func (s *HandshakeState) mixDH(private, public []byte) error {
	if len(private) != DHLen || len(public) != DHLen {
		return ErrMissingKeys
	}
	shared, err := dh(private, public)
	if err != nil {
		return err
	}
	s.ss.MixKey(shared)
	secureZero(shared)
	return nil
}

// WriteMessage appends the next handshake message to out, including the
// optional payload. Payloads in the first message travel unencrypted;
// afterward they are encrypted and bound to the transcript. It is an error
// to call this method out of sync with the handshake pattern.
func (s *HandshakeState) WriteMessage(out, payload []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed {
		return nil, errors.New("noise: handshake has failed and must be discarded")
	}
	if s.msgIdx > len(s.patterns)-1 {
		return nil, ErrHandshakeComplete
	}
	if !s.shouldWrite {
		return nil, errors.New("noise: out of turn, expected ReadMessage")
	}
	if len(payload) > MaxMsgLen {
		return nil, fmt.Errorf("noise: payload exceeds %d bytes", MaxMsgLen)
	}

	var err error
	for _, msg := range s.patterns[s.msgIdx] {
		switch msg {
		case MessagePatternE:
			if !s.e.Valid() {
				e, err := GenerateKeypair(s.rng)
				if err != nil {
					return s.fail(err)
				}
				s.e = e
			}
			out = append(out, s.e.Public...)
			s.ss.MixHash(s.e.Public)
		case MessagePatternS:
			if len(s.s.Public) == 0 {
				return s.fail(ErrMissingLocalStaticKey)
			}
			out, err = s.ss.EncryptAndHash(out, s.s.Public)
			if err != nil {
				return s.fail(err)
			}
		case MessagePatternDHEE:
			err = s.mixDH(s.e.Private, s.re)
		case MessagePatternDHES:
			if s.initiator {
				err = s.mixDH(s.e.Private, s.rs)
			} else {
				err = s.mixDH(s.s.Private, s.re)
			}
		case MessagePatternDHSE:
			if s.initiator {
				err = s.mixDH(s.s.Private, s.re)
			} else {
				err = s.mixDH(s.e.Private, s.rs)
			}
		case MessagePatternDHSS:
			err = s.mixDH(s.s.Private, s.rs)
		}
		if err != nil {
			return s.fail(err)
		}
	}
	out, err = s.ss.EncryptAndHash(out, payload)
	if err != nil {
		return s.fail(err)
	}
	s.shouldWrite = false
	s.msgIdx++
	if s.msgIdx >= len(s.patterns) {
		s.complete = true
	}
	return out, nil
}

// ReadMessage processes a received handshake message and appends its
// payload, if any, to out. Every public key carried by the message is
// validated before it is used in a DH operation. Any failure poisons the
// handshake; the caller must discard it and start over. It is an error to
// call this method out of sync with the handshake pattern.
func (s *HandshakeState) ReadMessage(out, message []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed {
		return nil, errors.New("noise: handshake has failed and must be discarded")
	}
	if s.msgIdx > len(s.patterns)-1 {
		return nil, ErrHandshakeComplete
	}
	if s.shouldWrite {
		return nil, errors.New("noise: out of turn, expected WriteMessage")
	}
	if len(message) > MaxMsgLen {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrInvalidMessage, MaxMsgLen)
	}

	var err error
	for _, msg := range s.patterns[s.msgIdx] {
		switch msg {
		case MessagePatternE:
			if len(message) < DHLen {
				return s.fail(fmt.Errorf("%w: truncated ephemeral key", ErrInvalidMessage))
			}
			if err = ValidatePublicKey(message[:DHLen]); err != nil {
				return s.fail(err)
			}
			s.re = append(s.re[:0], message[:DHLen]...)
			s.ss.MixHash(s.re)
			message = message[DHLen:]
		case MessagePatternS:
			expected := DHLen
			if s.ss.hasK {
				expected += TagLen
			}
			if len(message) < expected {
				return s.fail(fmt.Errorf("%w: truncated static key", ErrInvalidMessage))
			}
			if len(s.rs) > 0 {
				return s.fail(errors.New("noise: remote static key already received"))
			}
			s.rs, err = s.ss.DecryptAndHash(nil, message[:expected])
			if err != nil {
				return s.fail(err)
			}
			if err = ValidatePublicKey(s.rs); err != nil {
				secureZero(s.rs)
				s.rs = nil
				return s.fail(err)
			}
			message = message[expected:]
		case MessagePatternDHEE:
			err = s.mixDH(s.e.Private, s.re)
		case MessagePatternDHES:
			if s.initiator {
				err = s.mixDH(s.e.Private, s.rs)
			} else {
				err = s.mixDH(s.s.Private, s.re)
			}
		case MessagePatternDHSE:
			if s.initiator {
				err = s.mixDH(s.s.Private, s.re)
			} else {
				err = s.mixDH(s.e.Private, s.rs)
			}
		case MessagePatternDHSS:
			err = s.mixDH(s.s.Private, s.rs)
		}
		if err != nil {
			return s.fail(err)
		}
	}
	out, err = s.ss.DecryptAndHash(out, message)
	if err != nil {
		return s.fail(err)
	}
	s.shouldWrite = true
	s.msgIdx++
	if s.msgIdx >= len(s.patterns) {
		s.complete = true
	}
	return out, nil
}

// IsHandshakeComplete reports whether all three pattern messages have been
// processed.
func (s *HandshakeState) IsHandshakeComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

// TransportCiphers derives the two directional transport cipher states once
// the handshake is complete: send encrypts traffic to the peer, recv
// decrypts traffic from it, with the split ordered by role so both sides
// agree. extractedNonce selects the transport nonce mode for both
// directions. The derivation consumes the chaining key and can only happen
// once.
func (s *HandshakeState) TransportCiphers(extractedNonce bool) (send, recv *CipherState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.complete {
		return nil, nil, ErrHandshakeNotComplete
	}
	if s.split {
		return nil, nil, errors.New("noise: transport ciphers already derived")
	}
	s.split = true
	c1, c2 := s.ss.Split(extractedNonce)
	if s.initiator {
		return c1, c2, nil
	}
	return c2, c1, nil
}

// ChannelBinding returns a copy of the current transcript hash. After the
// final handshake message this value uniquely identifies the session and
// can be used as a channel binding.
func (s *HandshakeState) ChannelBinding() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.ss.h[:]...)
}

// PeerStatic returns a copy of the static key provided by the remote peer,
// or nil if no handshake message carrying one has been read yet.
func (s *HandshakeState) PeerStatic() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rs == nil {
		return nil
	}
	return append([]byte(nil), s.rs...)
}

// PeerEphemeral returns a copy of the ephemeral key provided by the remote
// peer, or nil if none has been read yet.
func (s *HandshakeState) PeerEphemeral() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.re == nil {
		return nil
	}
	return append([]byte(nil), s.re...)
}

// MessageIndex returns the number of handshake messages processed so far.
func (s *HandshakeState) MessageIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgIdx
}

// destroy wipes all handshake key material. The state is unusable
// afterward.
func (s *HandshakeState) destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.e.wipe()
	s.s.wipe()
	secureZeroAll(s.rs, s.re)
	s.rs, s.re = nil, nil
	s.ss.clear()
	s.failed = true
}
