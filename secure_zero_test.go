package noise

import (
	"bytes"
	"testing"
)

func TestSecureZero(t *testing.T) {
	data := []byte("sensitive key material, 32 bytes")
	secureZero(data)
	if !bytes.Equal(data, make([]byte, len(data))) {
		t.Errorf("buffer not zeroed: %x", data)
	}
}

func TestSecureZeroHandlesNilAndEmpty(t *testing.T) {
	secureZero(nil)
	secureZero([]byte{})
}

func TestSecureZeroAll(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4, 5, 6, 7}
	secureZeroAll(a, nil, b)
	for i, buf := range [][]byte{a, b} {
		if !bytes.Equal(buf, make([]byte, len(buf))) {
			t.Errorf("buffer %d not zeroed: %x", i, buf)
		}
	}
}
