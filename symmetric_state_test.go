package noise

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"
)

func TestInitializeSymmetricWithExactLengthName(t *testing.T) {
	if len(ProtocolName) != HashLen {
		t.Fatalf("protocol name is %d bytes, expected %d", len(ProtocolName), HashLen)
	}
	var ss symmetricState
	ss.InitializeSymmetric([]byte(ProtocolName))
	if !bytes.Equal(ss.h[:], []byte(ProtocolName)) {
		t.Errorf("h = %x, want the protocol name bytes verbatim", ss.h)
	}
	if ss.ck != ss.h {
		t.Error("ck does not match h after initialization")
	}
}

func TestInitializeSymmetricWithShortAndLongNames(t *testing.T) {
	var short symmetricState
	short.InitializeSymmetric([]byte("Noise_XX"))
	wantShort := make([]byte, HashLen)
	copy(wantShort, "Noise_XX")
	if !bytes.Equal(short.h[:], wantShort) {
		t.Errorf("short name h = %x, want zero-padded name", short.h)
	}

	long := []byte("Noise_XXfallback+psk2_25519+448_ChaChaPoly_BLAKE2b")
	var ls symmetricState
	ls.InitializeSymmetric(long)
	wantLong := sha256.Sum256(long)
	if ls.h != wantLong {
		t.Errorf("long name h = %x, want %x", ls.h, wantLong)
	}
}

func TestMixKeyMatchesHKDF(t *testing.T) {
	ikm := bytes.Repeat([]byte{0x01}, 32)

	var ss symmetricState
	ss.InitializeSymmetric([]byte(ProtocolName))
	wantCK, wantK, _ := hkdf([]byte(ProtocolName), ikm, 2)
	ss.MixKey(ikm)

	if !bytes.Equal(ss.ck[:], wantCK) {
		t.Errorf("ck = %x, want %x", ss.ck, wantCK)
	}
	if !bytes.Equal(ss.k[:], wantK) {
		t.Errorf("k = %x, want %x", ss.k, wantK)
	}
	if !ss.hasK {
		t.Error("hasK false after MixKey")
	}
	if ss.Nonce() != 0 {
		t.Errorf("nonce = %d after MixKey, want 0", ss.Nonce())
	}
}

func TestMixKeyLeavesInputIntact(t *testing.T) {
	var ss symmetricState
	ss.InitializeSymmetric([]byte(ProtocolName))
	ikm := bytes.Repeat([]byte{0x33}, DHLen)
	want := append([]byte(nil), ikm...)
	ss.MixKey(ikm)
	if !bytes.Equal(ikm, want) {
		t.Error("MixKey modified the caller's input key material")
	}
}

func TestMixKeyResetsNonce(t *testing.T) {
	var ss symmetricState
	ss.InitializeSymmetric([]byte(ProtocolName))
	ss.MixKey([]byte("first input"))
	if _, err := ss.EncryptAndHash(nil, []byte("bump the counter")); err != nil {
		t.Fatalf("EncryptAndHash failed: %v", err)
	}
	if ss.Nonce() != 1 {
		t.Fatalf("nonce = %d, want 1", ss.Nonce())
	}
	ss.MixKey([]byte("second input"))
	if ss.Nonce() != 0 {
		t.Errorf("nonce = %d after second MixKey, want 0", ss.Nonce())
	}
}

func TestMixHashEvolution(t *testing.T) {
	var ss symmetricState
	ss.InitializeSymmetric([]byte(ProtocolName))
	before := ss.h

	ss.MixHash([]byte("data"))
	hash := sha256.New()
	hash.Write(before[:])
	hash.Write([]byte("data"))
	want := hash.Sum(nil)
	if !bytes.Equal(ss.h[:], want) {
		t.Errorf("h = %x, want %x", ss.h, want)
	}
}

func TestEncryptAndHashPassThroughBeforeKey(t *testing.T) {
	var ss symmetricState
	ss.InitializeSymmetric([]byte(ProtocolName))
	before := ss.h

	plaintext := []byte("cleartext payload")
	out, err := ss.EncryptAndHash(nil, plaintext)
	if err != nil {
		t.Fatalf("EncryptAndHash failed: %v", err)
	}
	if !bytes.Equal(out, plaintext) {
		t.Errorf("expected pass-through, got %x", out)
	}
	if ss.h == before {
		t.Error("transcript did not absorb the pass-through payload")
	}
}

func newKeyedPair(t *testing.T) (a, b *symmetricState) {
	t.Helper()
	a, b = &symmetricState{}, &symmetricState{}
	for _, ss := range []*symmetricState{a, b} {
		ss.InitializeSymmetric([]byte(ProtocolName))
		ss.MixHash([]byte("prior transcript"))
		ss.MixKey(bytes.Repeat([]byte{0x5A}, 32))
	}
	return a, b
}

func TestEncryptAndHashRoundTrip(t *testing.T) {
	a, b := newKeyedPair(t)

	plaintext := []byte("secret payload")
	ct, err := a.EncryptAndHash(nil, plaintext)
	if err != nil {
		t.Fatalf("EncryptAndHash failed: %v", err)
	}
	if len(ct) != len(plaintext)+TagLen {
		t.Errorf("ciphertext length = %d, want %d", len(ct), len(plaintext)+TagLen)
	}
	pt, err := b.DecryptAndHash(nil, ct)
	if err != nil {
		t.Fatalf("DecryptAndHash failed: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("got %q, want %q", pt, plaintext)
	}
	if a.h != b.h {
		t.Error("transcripts diverged after a successful round trip")
	}
}

func TestDecryptAndHashTamperKeepsTranscript(t *testing.T) {
	a, b := newKeyedPair(t)

	ct, err := a.EncryptAndHash(nil, []byte("secret payload"))
	if err != nil {
		t.Fatalf("EncryptAndHash failed: %v", err)
	}
	tampered := append([]byte(nil), ct...)
	tampered[len(tampered)-1] ^= 1

	before := b.h
	if _, err := b.DecryptAndHash(nil, tampered); !errors.Is(err, ErrAuthenticationFailure) {
		t.Fatalf("expected ErrAuthenticationFailure, got %v", err)
	}
	if b.h != before {
		t.Error("transcript absorbed a ciphertext that failed to verify")
	}

	// The genuine ciphertext still verifies against the untouched state.
	if _, err := b.DecryptAndHash(nil, ct); err != nil {
		t.Errorf("genuine ciphertext rejected after tamper attempt: %v", err)
	}
}

func TestSplitDirectionsAndModes(t *testing.T) {
	a, b := newKeyedPair(t)

	a1, a2 := a.Split(false)
	b1, b2 := b.Split(false)

	// The first state of one side pairs with the first state of the other.
	ct, err := a1.Encrypt(nil, nil, []byte("c1 direction"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := b1.Decrypt(nil, nil, ct); err != nil {
		t.Fatalf("Decrypt on the paired state failed: %v", err)
	}

	ct2, err := b2.Encrypt(nil, nil, []byte("c2 direction"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := a2.Decrypt(nil, nil, ct2); err != nil {
		t.Fatalf("Decrypt on the paired state failed: %v", err)
	}

	// Directions must not be interchangeable.
	crossA, crossB := newKeyedPair(t)
	x1, _ := crossA.Split(false)
	_, y2 := crossB.Split(false)
	ct3, err := x1.Encrypt(nil, nil, []byte("wrong direction"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := y2.Decrypt(nil, nil, ct3); !errors.Is(err, ErrAuthenticationFailure) {
		t.Errorf("cross-direction decrypt should fail authentication, got %v", err)
	}
}

func TestSplitPropagatesNonceMode(t *testing.T) {
	a, _ := newKeyedPair(t)
	c1, c2 := a.Split(true)
	if !c1.ExtractedNonce() || !c2.ExtractedNonce() {
		t.Error("split did not propagate extracted-nonce mode")
	}

	b, _ := newKeyedPair(t)
	s1, s2 := b.Split(false)
	if s1.ExtractedNonce() || s2.ExtractedNonce() {
		t.Error("sequential split produced extracted-nonce states")
	}
}

func TestSplitWipesChainingKey(t *testing.T) {
	a, _ := newKeyedPair(t)
	a.Split(false)
	if !bytes.Equal(a.ck[:], make([]byte, HashLen)) {
		t.Error("chaining key survived the split")
	}
}
