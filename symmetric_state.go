package noise

import "crypto/sha256"

// A symmetricState carries the chaining key and transcript hash that bind a
// handshake together, layered over the CipherState that encrypts handshake
// payloads once key material exists.
type symmetricState struct {
	CipherState
	hasK bool
	ck   [HashLen]byte
	h    [HashLen]byte
}

// InitializeSymmetric seeds the transcript hash with the protocol name,
// hashing it when longer than HashLen and zero-padding otherwise, then sets
// the chaining key to the same value.
func (s *symmetricState) InitializeSymmetric(protocolName []byte) {
	if len(protocolName) <= HashLen {
		s.h = [HashLen]byte{}
		copy(s.h[:], protocolName)
	} else {
		s.h = sha256.Sum256(protocolName)
	}
	s.ck = s.h
}

// MixKey ratchets the chaining key with new input key material and installs
// the derived encryption key, resetting the nonce counter. The caller owns
// and wipes the input key material.
func (s *symmetricState) MixKey(inputKeyMaterial []byte) {
	ck, k, _ := hkdf(s.ck[:], inputKeyMaterial, 2)
	copy(s.ck[:], ck)
	s.InitializeKey(k)
	s.hasK = true
	secureZeroAll(ck, k)
}

// MixHash absorbs data into the transcript hash.
func (s *symmetricState) MixHash(data []byte) {
	hash := sha256.New()
	hash.Write(s.h[:])
	hash.Write(data)
	hash.Sum(s.h[:0])
}

// EncryptAndHash encrypts plaintext with the transcript hash as
// authenticated data and absorbs the resulting ciphertext. Before any key
// material exists the plaintext passes through unencrypted.
func (s *symmetricState) EncryptAndHash(out, plaintext []byte) ([]byte, error) {
	if !s.hasK {
		s.MixHash(plaintext)
		return append(out, plaintext...), nil
	}
	ciphertext, err := s.Encrypt(out, s.h[:], plaintext)
	if err != nil {
		return nil, err
	}
	s.MixHash(ciphertext[len(out):])
	return ciphertext, nil
}

// DecryptAndHash authenticates and decrypts data with the transcript hash
// as authenticated data. The transcript absorbs the received ciphertext
// only after it verifies, so a failed message leaves no trace in the hash.
func (s *symmetricState) DecryptAndHash(out, data []byte) ([]byte, error) {
	if !s.hasK {
		s.MixHash(data)
		return append(out, data...), nil
	}
	plaintext, err := s.Decrypt(out, s.h[:], data)
	if err != nil {
		return nil, err
	}
	s.MixHash(data)
	return plaintext, nil
}

// Split derives the two transport cipher states from the final chaining key
// and wipes it. c1 carries the initiator-to-responder direction, c2 the
// reverse; both are created in the requested nonce mode.
func (s *symmetricState) Split(extractedNonce bool) (*CipherState, *CipherState) {
	k1, k2, _ := hkdf(s.ck[:], nil, 2)
	c1 := &CipherState{extractedNonce: extractedNonce}
	c2 := &CipherState{extractedNonce: extractedNonce}
	c1.InitializeKey(k1)
	c2.InitializeKey(k2)
	secureZeroAll(k1, k2)
	secureZero(s.ck[:])
	return c1, c2
}

// clear wipes the chaining key, transcript hash and embedded cipher state.
func (s *symmetricState) clear() {
	s.CipherState.clear()
	secureZero(s.ck[:])
	secureZero(s.h[:])
	s.hasK = false
}
