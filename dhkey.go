package noise

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

// A DHKey is a Curve25519 keypair used for Diffie-Hellman key agreement.
type DHKey struct {
	Private []byte
	Public  []byte
}

// Valid reports whether the keypair carries both halves at the expected
// length.
func (k DHKey) Valid() bool {
	return len(k.Private) == DHLen && len(k.Public) == DHLen
}

// clone returns an independent copy of the keypair so one side can be wiped
// without corrupting the other.
func (k DHKey) clone() DHKey {
	c := DHKey{}
	if k.Private != nil {
		c.Private = append([]byte(nil), k.Private...)
	}
	if k.Public != nil {
		c.Public = append([]byte(nil), k.Public...)
	}
	return c
}

// wipe zeroes the private scalar. The public half is not sensitive.
func (k *DHKey) wipe() {
	secureZero(k.Private)
	k.Private = nil
	k.Public = nil
}

// GenerateKeypair creates a new Curve25519 keypair from rng, or from
// crypto/rand when rng is nil. The private scalar is clamped per RFC 7748.
func GenerateKeypair(rng io.Reader) (DHKey, error) {
	if rng == nil {
		rng = rand.Reader
	}
	private := make([]byte, DHLen)
	if _, err := io.ReadFull(rng, private); err != nil {
		return DHKey{}, fmt.Errorf("noise: reading keypair entropy: %w", err)
	}
	clampPrivateKey(private)
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		secureZero(private)
		return DHKey{}, fmt.Errorf("noise: deriving public key: %w", err)
	}
	return DHKey{Private: private, Public: public}, nil
}

// LoadKeypair rebuilds a keypair from a stored 32-byte private scalar.
func LoadKeypair(private []byte) (DHKey, error) {
	if len(private) != DHLen {
		return DHKey{}, fmt.Errorf("noise: private key must be %d bytes, got %d", DHLen, len(private))
	}
	scalar := append([]byte(nil), private...)
	clampPrivateKey(scalar)
	public, err := curve25519.X25519(scalar, curve25519.Basepoint)
	if err != nil {
		secureZero(scalar)
		return DHKey{}, fmt.Errorf("noise: deriving public key: %w", err)
	}
	return DHKey{Private: scalar, Public: public}, nil
}

func clampPrivateKey(scalar []byte) {
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
}

// lowOrderPoints is the canonical little-endian encodings of the Curve25519
// points that must never reach a DH operation: the identity encodings, the
// two order-8 points, and the non-canonical encodings p-1, p and p+1.
var lowOrderPoints = [][]byte{
	mustDecodeHex("0000000000000000000000000000000000000000000000000000000000000000"),
	mustDecodeHex("0100000000000000000000000000000000000000000000000000000000000000"),
	mustDecodeHex("e0eb7a7c3b41b8ae1656e3faf19fc46ada098deb9c32b1fd866205165f49b800"),
	mustDecodeHex("5f9c95bca3508c24b1d0b1559c83ef5b04445cc4581c8e86d8224eddd09f1157"),
	mustDecodeHex("ecffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff7f"),
	mustDecodeHex("edffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff7f"),
	mustDecodeHex("eeffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff7f"),
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// ValidatePublicKey rejects public keys that are the wrong length, all-zero,
// known low-order points, or non-canonical field encodings. It must be called
// on every public key received over the wire before the key is used in a DH
// operation.
func ValidatePublicKey(public []byte) error {
	if len(public) != DHLen {
		return fmt.Errorf("%w: length %d", ErrInvalidPublicKey, len(public))
	}
	for _, p := range lowOrderPoints {
		if bytes.Equal(public, p) {
			return fmt.Errorf("%w: low-order or non-canonical point", ErrInvalidPublicKey)
		}
	}
	return nil
}

// dh performs X25519 between a local private scalar and a remote public key.
// curve25519.X25519 rejects low-order inputs by refusing an all-zero shared
// secret.
func dh(private, public []byte) ([]byte, error) {
	shared, err := curve25519.X25519(private, public)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return shared, nil
}
