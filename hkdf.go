package noise

import (
	"crypto/hmac"
	"crypto/sha256"
)

func hmacHash(key []byte, data ...[]byte) []byte {
	mac := hmac.New(sha256.New, key)
	for _, d := range data {
		mac.Write(d)
	}
	return mac.Sum(nil)
}

// hkdf derives one to three 32-byte outputs from a chaining key and input
// key material, per the Noise specification: an HMAC-SHA256 extract step
// followed by chained expansion with single-byte counters. Unlike RFC 5869
// there is no info parameter; output n is HMAC(tempKey, out(n-1) || n).
func hkdf(chainingKey, inputKeyMaterial []byte, outputs int) (out1, out2, out3 []byte) {
	if outputs < 1 || outputs > 3 {
		panic("noise: hkdf outputs out of range")
	}
	tempKey := hmacHash(chainingKey, inputKeyMaterial)
	out1 = hmacHash(tempKey, []byte{0x01})
	if outputs >= 2 {
		out2 = hmacHash(tempKey, out1, []byte{0x02})
	}
	if outputs == 3 {
		out3 = hmacHash(tempKey, out2, []byte{0x03})
	}
	secureZero(tempKey)
	return out1, out2, out3
}
