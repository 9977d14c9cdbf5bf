package noise

import (
	"io"

	"github.com/sirupsen/logrus"
)

// A Config provides the details necessary to process a Noise handshake. It
// is never modified by this package, and can be reused.
type Config struct {
	// Random is the source for cryptographically appropriate random bytes.
	// If zero, it is automatically configured.
	Random io.Reader

	// Initiator must be true if the first message in the handshake will be
	// sent by this peer.
	Initiator bool

	// Prologue is an optional message that has already been communicated
	// and must be identical on both sides for the handshake to succeed.
	Prologue []byte

	// StaticKeypair is this peer's long-term identity keypair. The XX
	// pattern always requires it.
	StaticKeypair DHKey

	// EphemeralKeypair, when set, is used in place of a freshly generated
	// ephemeral keypair. Only deterministic tests and vector generation
	// should set it.
	EphemeralKeypair DHKey
}

// A SessionConfig provides the long-lived parameters shared by every session
// a peer creates. It is never modified by this package.
type SessionConfig struct {
	// StaticKeypair is this peer's long-term identity keypair.
	StaticKeypair DHKey

	// Prologue, when set, must be identical on both peers.
	Prologue []byte

	// ExtractedNonce selects the transport nonce mode. When true, transport
	// ciphertexts carry a 4-byte big-endian counter prefix and decryption
	// tolerates the loss and reordering of an unreliable transport behind a
	// replay window. When false, both directions run strictly sequential
	// counters.
	ExtractedNonce bool

	// Random overrides the source of randomness. Only deterministic tests
	// should set it.
	Random io.Reader

	// Logger receives session lifecycle events. Nil selects the logrus
	// standard logger.
	Logger *logrus.Logger
}
