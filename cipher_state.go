package noise

import (
	"crypto/cipher"
	"encoding/binary"
	"math"

	"golang.org/x/crypto/chacha20poly1305"
)

// A CipherState provides symmetric encryption and decryption with an
// attached nonce counter after a successful handshake. In sequential mode
// both sides advance their counters in lockstep and nothing nonce-related
// appears on the wire. In extracted-nonce mode each ciphertext instead
// carries a 4-byte big-endian counter prefix and the receiver tracks
// delivery through a sliding replay window, tolerating the loss and
// reordering of an unreliable transport.
type CipherState struct {
	k      [KeyLen]byte
	aead   cipher.AEAD
	n      uint64
	hasKey bool

	extractedNonce bool
	window         replayWindow
}

// InitializeKey installs a 32-byte key and resets the nonce counter and
// replay window.
func (s *CipherState) InitializeKey(key []byte) {
	copy(s.k[:], key)
	aead, err := chacha20poly1305.New(s.k[:])
	if err != nil {
		panic("noise: " + err.Error())
	}
	s.aead = aead
	s.n = 0
	s.hasKey = true
	s.window.reset()
}

// HasKey reports whether a key has been installed.
func (s *CipherState) HasKey() bool {
	return s.hasKey
}

// Nonce returns the current value of n. This can be used to determine if a
// new handshake should be performed before the counter ceiling is reached.
func (s *CipherState) Nonce() uint64 {
	return s.n
}

// ExtractedNonce reports whether ciphertexts carry the 4-byte counter
// prefix.
func (s *CipherState) ExtractedNonce() bool {
	return s.extractedNonce
}

// nonceBytes builds the 12-byte AEAD nonce: 4 zero bytes followed by the
// counter in little-endian at bytes 4 through 11.
func nonceBytes(n uint64) [chacha20poly1305.NonceSize]byte {
	var nonce [chacha20poly1305.NonceSize]byte
	binary.LittleEndian.PutUint64(nonce[4:], n)
	return nonce
}

func (s *CipherState) maxNonce() uint64 {
	if s.extractedNonce {
		return MaxExtractedNonce
	}
	return MaxNonce
}

// Encrypt encrypts the plaintext and appends to out the ciphertext and an
// authentication tag across the ciphertext and optional authenticated data,
// preceded in extracted-nonce mode by the counter prefix. The counter
// advances on every successful call, so sequential-mode messages must be
// decrypted in the order they were produced. ErrNonceExceeded is returned
// once the mode's counter ceiling is reached; the counter does not advance
// on any failure.
func (s *CipherState) Encrypt(out, ad, plaintext []byte) ([]byte, error) {
	if !s.hasKey {
		return nil, ErrUninitializedCipher
	}
	if s.n > s.maxNonce() {
		return nil, ErrNonceExceeded
	}
	nonce := nonceBytes(s.n)
	if s.extractedNonce {
		out = binary.BigEndian.AppendUint32(out, uint32(s.n))
	}
	out = s.aead.Seal(out, nonce[:], plaintext, ad)
	s.n++
	return out, nil
}

// Decrypt checks the authenticity of the ciphertext and authenticated data
// and appends the plaintext to out. In sequential mode the counter advances
// only after authentication succeeds, so a tampered message surfaces as
// ErrAuthenticationFailure without desynchronizing the channel. In
// extracted-nonce mode the counter prefix is checked against the replay
// window before decryption and marked accepted only after the tag verifies.
func (s *CipherState) Decrypt(out, ad, ciphertext []byte) ([]byte, error) {
	if !s.hasKey {
		return nil, ErrUninitializedCipher
	}
	if s.extractedNonce {
		return s.decryptExtracted(out, ad, ciphertext)
	}
	if len(ciphertext) < TagLen {
		return nil, ErrInvalidCiphertext
	}
	if s.n > MaxNonce {
		return nil, ErrNonceExceeded
	}
	nonce := nonceBytes(s.n)
	plaintext, err := s.aead.Open(out, nonce[:], ciphertext, ad)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	s.n++
	return plaintext, nil
}

func (s *CipherState) decryptExtracted(out, ad, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < ExtractedNonceLen+TagLen {
		return nil, ErrInvalidCiphertext
	}
	counter := uint64(binary.BigEndian.Uint32(ciphertext[:ExtractedNonceLen]))
	if err := s.window.check(counter); err != nil {
		return nil, err
	}
	nonce := nonceBytes(counter)
	plaintext, err := s.aead.Open(out, nonce[:], ciphertext[ExtractedNonceLen:], ad)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	s.window.accept(counter)
	return plaintext, nil
}

// Rekey replaces the key with ENCRYPT(k, 2^64-1, empty, zeros[32]) per the
// Noise specification and securely zeros the intermediate values. The
// counter and replay window carry over; both peers must rekey at an agreed
// point for the channel to survive.
func (s *CipherState) Rekey() {
	if !s.hasKey {
		return
	}
	var zeros [KeyLen]byte
	nonce := nonceBytes(math.MaxUint64)
	out := s.aead.Seal(nil, nonce[:], zeros[:], nil)
	copy(s.k[:], out[:KeyLen])
	aead, err := chacha20poly1305.New(s.k[:])
	if err != nil {
		panic("noise: " + err.Error())
	}
	s.aead = aead
	secureZero(out)
}

// clear wipes the key material and returns the state to uninitialized.
func (s *CipherState) clear() {
	secureZero(s.k[:])
	s.aead = nil
	s.n = 0
	s.hasKey = false
	s.extractedNonce = false
	s.window.reset()
}
