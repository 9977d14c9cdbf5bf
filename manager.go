package noise

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// A SessionManager owns every noise session a node holds, keyed by peer
// identifier. It shares one identity keypair across all of them. All
// methods are safe for concurrent use.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*NoiseSession
	cfg      SessionConfig
	closed   bool
	log      *logrus.Entry
}

// NewSessionManager creates a manager around the node's identity keypair.
// The keypair is copied; per-session copies are made from it as sessions
// are created.
func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	if !cfg.StaticKeypair.Valid() {
		return nil, ErrMissingLocalStaticKey
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SessionManager{
		sessions: make(map[string]*NoiseSession),
		cfg: SessionConfig{
			StaticKeypair:  cfg.StaticKeypair.clone(),
			Prologue:       append([]byte(nil), cfg.Prologue...),
			ExtractedNonce: cfg.ExtractedNonce,
			Random:         cfg.Random,
			Logger:         logger,
		},
		log: logger.WithField("component", "noise_session_manager"),
	}, nil
}

// LocalStaticPublicKey returns a copy of the manager's identity public key.
func (m *SessionManager) LocalStaticPublicKey() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.cfg.StaticKeypair.Public...)
}

// GetOrCreateSession returns the session registered for peerID, creating
// one in the given role if none exists. An existing session is returned as
// is, whatever role it was created with.
func (m *SessionManager) GetOrCreateSession(peerID string, role HandshakeRole) (*NoiseSession, error) {
	m.mu.RLock()
	if session, ok := m.sessions[peerID]; ok {
		m.mu.RUnlock()
		return session, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("noise: session manager is closed")
	}
	if session, ok := m.sessions[peerID]; ok {
		return session, nil
	}
	session, err := NewSession(peerID, role, m.cfg)
	if err != nil {
		return nil, err
	}
	m.sessions[peerID] = session
	m.log.WithFields(logrus.Fields{
		"peer": peerID,
		"role": role.String(),
	}).Info("noise session created")
	return session, nil
}

// GetSession returns the session registered for peerID, if any.
func (m *SessionManager) GetSession(peerID string) (*NoiseSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[peerID]
	return session, ok
}

// RemoveSession closes and forgets the session for peerID. Removing an
// unknown peer is a no-op.
func (m *SessionManager) RemoveSession(peerID string) {
	m.mu.Lock()
	session, ok := m.sessions[peerID]
	if ok {
		delete(m.sessions, peerID)
	}
	m.mu.Unlock()
	if ok {
		session.Close()
		m.log.WithField("peer", peerID).Info("noise session removed")
	}
}

// ResetSession wipes the session for peerID back to its uninitialized
// state, keeping it registered so a fresh handshake can run.
// ErrSessionNotFound is returned for unknown peers.
func (m *SessionManager) ResetSession(peerID string) error {
	m.mu.RLock()
	session, ok := m.sessions[peerID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, peerID)
	}
	session.Reset()
	return nil
}

// EstablishedPeers returns the identifiers of every session that currently
// has transport ciphers active.
func (m *SessionManager) EstablishedPeers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	peers := make([]string, 0, len(m.sessions))
	for id, session := range m.sessions {
		if session.IsEstablished() {
			peers = append(peers, id)
		}
	}
	return peers
}

// Len returns the number of registered sessions in any state.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close tears down every session and wipes the manager's identity keypair
// copy. The manager cannot be used afterward.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for id, session := range m.sessions {
		session.Close()
		delete(m.sessions, id)
	}
	m.cfg.StaticKeypair.wipe()
	m.closed = true
	m.log.Info("noise session manager closed")
}
