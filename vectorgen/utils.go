package main

import (
	"bytes"
	"encoding/hex"
	"io"
)

// hexReader turns a hex string into an io.Reader so keypair generation can
// be driven from fixed seeds. Seeds are compiled in; a malformed one panics.
func hexReader(s string) io.Reader {
	seed, err := hex.DecodeString(s)
	if err != nil {
		panic("vectorgen: bad hex seed: " + err.Error())
	}
	return bytes.NewReader(seed)
}
