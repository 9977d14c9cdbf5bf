package noise

import (
	"errors"
	"math"
)

// ProtocolName identifies the one handshake profile this package speaks:
// the XX pattern over Curve25519, ChaCha20-Poly1305 and SHA-256. The name
// is exactly 32 bytes long, so it seeds the transcript hash verbatim.
const ProtocolName = "Noise_XX_25519_ChaChaPoly_SHA256"

// Sizes of the fixed primitives. Every public key and DH output on the wire
// is DHLen bytes; every AEAD ciphertext carries a TagLen-byte tag.
const (
	DHLen   = 32
	HashLen = 32
	KeyLen  = 32
	TagLen  = 16
)

// MaxNonce is the maximum counter value allowed in sequential-nonce mode.
// ErrNonceExceeded is returned by Encrypt and Decrypt after this has been
// reached. 2^64-1 is reserved for rekeys.
const MaxNonce = uint64(math.MaxUint64) - 1

// MaxExtractedNonce is the maximum counter value allowed in extracted-nonce
// mode, where the counter travels on the wire as a 4-byte big-endian prefix.
const MaxExtractedNonce = uint64(math.MaxUint32)

// MaxMsgLen is the maximum number of bytes that can be sent in a single Noise
// message.
const MaxMsgLen = 65535

// ReplayWindowSize is the width in bits of the sliding window that
// extracted-nonce receivers keep over decrypted counters.
const ReplayWindowSize = 1024

// ExtractedNonceLen is the length of the counter prefix on extracted-nonce
// transport messages.
const ExtractedNonceLen = 4

// RekeyMargin is how close the send counter may get to its ceiling before
// NeedsRekey starts reporting true.
const RekeyMargin = uint64(1) << 16

// MessagePattern constants define the token types in a Noise handshake.
const (
	MessagePatternS MessagePattern = iota
	MessagePatternE
	MessagePatternDHEE
	MessagePatternDHES
	MessagePatternDHSE
	MessagePatternDHSS
)

// Error constants used throughout the package.
var (
	// ErrUninitializedCipher indicates Encrypt or Decrypt was called on a
	// CipherState that has no key installed.
	ErrUninitializedCipher = errors.New("noise: cipherstate has no key")

	// ErrNonceExceeded indicates a CipherState counter has reached its
	// ceiling. A new handshake must be performed.
	ErrNonceExceeded = errors.New("noise: cipherstate has reached maximum n, a new handshake must be performed")

	// ErrInvalidCiphertext indicates a transport ciphertext is too short to
	// contain its framing and authentication tag.
	ErrInvalidCiphertext = errors.New("noise: ciphertext is malformed")

	// ErrAuthenticationFailure indicates an AEAD tag did not verify. The
	// message was forged, corrupted, or encrypted under different keys.
	ErrAuthenticationFailure = errors.New("noise: message authentication failed")

	// ErrReplayDetected indicates an extracted-nonce counter was already
	// accepted or has fallen behind the replay window.
	ErrReplayDetected = errors.New("noise: message replay detected")

	// ErrInvalidPublicKey indicates a received Curve25519 public key is
	// malformed, all-zero, or a known low-order point.
	ErrInvalidPublicKey = errors.New("noise: invalid public key")

	// ErrInvalidMessage indicates a handshake message is too short for the
	// tokens it must carry.
	ErrInvalidMessage = errors.New("noise: message is malformed")

	// ErrMissingLocalStaticKey indicates the XX pattern requires a local
	// static keypair that was not supplied.
	ErrMissingLocalStaticKey = errors.New("noise: local static keypair required")

	// ErrMissingKeys indicates a DH token was reached without the key
	// material it needs.
	ErrMissingKeys = errors.New("noise: missing key material for DH operation")

	// ErrHandshakeComplete indicates a handshake message was requested or
	// supplied after the handshake already finished.
	ErrHandshakeComplete = errors.New("noise: handshake is already complete")

	// ErrHandshakeNotComplete indicates transport state was requested
	// before the handshake finished.
	ErrHandshakeNotComplete = errors.New("noise: handshake is not complete")

	// ErrNotEstablished indicates transport encryption was attempted on a
	// session that has not completed its handshake.
	ErrNotEstablished = errors.New("noise: session is not established")

	// ErrSessionNotFound indicates a manager operation referenced a peer
	// with no session.
	ErrSessionNotFound = errors.New("noise: no session for peer")
)
