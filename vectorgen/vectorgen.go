// Command vectorgen emits deterministic test vectors for the mesh chat
// noise channel: XX handshake transcripts, key derivation chains, and
// transport nonce layouts. Vectors are computed at generation time from
// fixed seeds, so the output doubles as a cross-implementation check.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/ogier/pflag"

	"github.com/meshchat/noise"
)

var (
	genHandshake = flag.Bool("handshake", false, "emit XX handshake transcript vectors")
	genHKDF      = flag.Bool("hkdf", false, "emit key derivation chain vectors")
	genNonce     = flag.Bool("nonce", false, "emit transport nonce layout vectors")
	output       = flag.StringP("output", "o", "", "write vectors to this file instead of stdout")
)

type vectorFile struct {
	Handshakes []handshakeVector `json:"handshakes,omitempty"`
	KeyChains  []hkdfVector      `json:"key_chains,omitempty"`
	Nonces     []nonceVector     `json:"nonces,omitempty"`
}

type handshakeVector struct {
	Name           string            `json:"name"`
	Protocol       string            `json:"protocol"`
	InitStatic     string            `json:"init_static"`
	RespStatic     string            `json:"resp_static"`
	InitEphemeral  string            `json:"init_ephemeral"`
	RespEphemeral  string            `json:"resp_ephemeral"`
	Prologue       string            `json:"prologue,omitempty"`
	ExtractedNonce bool              `json:"extracted_nonce,omitempty"`
	Messages       []vectorMessage   `json:"messages"`
	Transport      []transportRecord `json:"transport"`
	HandshakeHash  string            `json:"handshake_hash"`
}

type vectorMessage struct {
	Payload    string `json:"payload"`
	Ciphertext string `json:"ciphertext"`
}

type transportRecord struct {
	Sender     string `json:"sender"`
	Payload    string `json:"payload"`
	Ciphertext string `json:"ciphertext"`
}

type hkdfVector struct {
	ChainingKey      string `json:"chaining_key"`
	InputKeyMaterial string `json:"input_key_material"`
	Output1          string `json:"output1"`
	Output2          string `json:"output2"`
	Output3          string `json:"output3"`
}

type nonceVector struct {
	Counter         uint64 `json:"counter"`
	Nonce           string `json:"nonce"`
	ExtractedPrefix string `json:"extracted_prefix,omitempty"`
}

// handshakeSpec fixes every input to one handshake vector. The ephemeral
// seeds feed the handshake's RNG, so the whole transcript is reproducible.
type handshakeSpec struct {
	name           string
	initStatic     string
	respStatic     string
	initEphemeral  string
	respEphemeral  string
	prologue       string
	extractedNonce bool
	payloads       [3]string
	transport      []string
}

var handshakeSpecs = []handshakeSpec{
	{
		name:          "xx_empty_payloads",
		initStatic:    "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
		respStatic:    "202122232425262728292a2b2c2d2e2f303132333435363738393a3b3c3d3e3f",
		initEphemeral: "404142434445464748494a4b4c4d4e4f505152535455565758595a5b5c5d5e5f",
		respEphemeral: "606162636465666768696a6b6c6d6e6f707172737475767778797a7b7c7d7e7f",
		transport:     []string{"68656c6c6f", "776f726c64"},
	},
	{
		name:          "xx_prologue_and_payloads",
		initStatic:    "808182838485868788898a8b8c8d8e8f909192939495969798999a9b9c9d9e9f",
		respStatic:    "a0a1a2a3a4a5a6a7a8a9aaabacadaeafb0b1b2b3b4b5b6b7b8b9babbbcbdbebf",
		initEphemeral: "c0c1c2c3c4c5c6c7c8c9cacbcccdcecfd0d1d2d3d4d5d6d7d8d9dadbdcdddedf",
		respEphemeral: "e0e1e2e3e4e5e6e7e8e9eaebecedeeeff0f1f2f3f4f5f6f7f8f9fafbfcfdfeff",
		prologue:      "6d657368636861742d7631",
		payloads:      [3]string{"4d7231", "4d7232", "4d7233"},
		transport:     []string{"7472616e73706f727431", "7472616e73706f727432"},
	},
	{
		name:           "xx_extracted_nonce_transport",
		initStatic:     "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
		respStatic:     "202122232425262728292a2b2c2d2e2f303132333435363738393a3b3c3d3e3f",
		initEphemeral:  "404142434445464748494a4b4c4d4e4f505152535455565758595a5b5c5d5e5f",
		respEphemeral:  "606162636465666768696a6b6c6d6e6f707172737475767778797a7b7c7d7e7f",
		extractedNonce: true,
		transport:      []string{"68656c6c6f", "776f726c64", "616761696e"},
	},
}

func buildHandshakeVectors() ([]handshakeVector, error) {
	vectors := make([]handshakeVector, 0, len(handshakeSpecs))
	for _, spec := range handshakeSpecs {
		v, err := runHandshakeSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.name, err)
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func runHandshakeSpec(spec handshakeSpec) (handshakeVector, error) {
	initStatic, err := noise.GenerateKeypair(hexReader(spec.initStatic))
	if err != nil {
		return handshakeVector{}, err
	}
	respStatic, err := noise.GenerateKeypair(hexReader(spec.respStatic))
	if err != nil {
		return handshakeVector{}, err
	}
	prologue, err := hex.DecodeString(spec.prologue)
	if err != nil {
		return handshakeVector{}, err
	}

	ini, err := noise.NewHandshakeState(noise.Config{
		Initiator:     true,
		StaticKeypair: initStatic,
		Prologue:      prologue,
		Random:        hexReader(spec.initEphemeral),
	})
	if err != nil {
		return handshakeVector{}, err
	}
	res, err := noise.NewHandshakeState(noise.Config{
		Initiator:     false,
		StaticKeypair: respStatic,
		Prologue:      prologue,
		Random:        hexReader(spec.respEphemeral),
	})
	if err != nil {
		return handshakeVector{}, err
	}

	v := handshakeVector{
		Name:           spec.name,
		Protocol:       noise.ProtocolName,
		InitStatic:     spec.initStatic,
		RespStatic:     spec.respStatic,
		InitEphemeral:  spec.initEphemeral,
		RespEphemeral:  spec.respEphemeral,
		Prologue:       spec.prologue,
		ExtractedNonce: spec.extractedNonce,
	}

	writer, reader := ini, res
	for i := 0; i < 3; i++ {
		payload, err := hex.DecodeString(spec.payloads[i])
		if err != nil {
			return handshakeVector{}, err
		}
		wire, err := writer.WriteMessage(nil, payload)
		if err != nil {
			return handshakeVector{}, fmt.Errorf("message %d write: %w", i+1, err)
		}
		got, err := reader.ReadMessage(nil, wire)
		if err != nil {
			return handshakeVector{}, fmt.Errorf("message %d read: %w", i+1, err)
		}
		if hex.EncodeToString(got) != spec.payloads[i] {
			return handshakeVector{}, fmt.Errorf("message %d payload mismatch", i+1)
		}
		v.Messages = append(v.Messages, vectorMessage{
			Payload:    spec.payloads[i],
			Ciphertext: hex.EncodeToString(wire),
		})
		writer, reader = reader, writer
	}

	iniSend, iniRecv, err := ini.TransportCiphers(spec.extractedNonce)
	if err != nil {
		return handshakeVector{}, err
	}
	resSend, resRecv, err := res.TransportCiphers(spec.extractedNonce)
	if err != nil {
		return handshakeVector{}, err
	}

	for i, payloadHex := range spec.transport {
		payload, err := hex.DecodeString(payloadHex)
		if err != nil {
			return handshakeVector{}, err
		}
		send, recv, sender := iniSend, resRecv, "init"
		if i%2 == 1 {
			send, recv, sender = resSend, iniRecv, "resp"
		}
		ct, err := send.Encrypt(nil, nil, payload)
		if err != nil {
			return handshakeVector{}, fmt.Errorf("transport %d encrypt: %w", i, err)
		}
		pt, err := recv.Decrypt(nil, nil, ct)
		if err != nil {
			return handshakeVector{}, fmt.Errorf("transport %d decrypt: %w", i, err)
		}
		if hex.EncodeToString(pt) != payloadHex {
			return handshakeVector{}, fmt.Errorf("transport %d payload mismatch", i)
		}
		v.Transport = append(v.Transport, transportRecord{
			Sender:     sender,
			Payload:    payloadHex,
			Ciphertext: hex.EncodeToString(ct),
		})
	}

	v.HandshakeHash = hex.EncodeToString(ini.ChannelBinding())
	return v, nil
}

// hkdfChain is the two-or-three output HMAC-SHA256 chain the channel uses
// for key derivation, written out longhand so the vectors are independent
// of the library internals.
func hkdfChain(chainingKey, material []byte) (out1, out2, out3 []byte) {
	mac := hmac.New(sha256.New, chainingKey)
	mac.Write(material)
	tempKey := mac.Sum(nil)

	mac = hmac.New(sha256.New, tempKey)
	mac.Write([]byte{0x01})
	out1 = mac.Sum(nil)

	mac = hmac.New(sha256.New, tempKey)
	mac.Write(out1)
	mac.Write([]byte{0x02})
	out2 = mac.Sum(nil)

	mac = hmac.New(sha256.New, tempKey)
	mac.Write(out2)
	mac.Write([]byte{0x03})
	out3 = mac.Sum(nil)
	return out1, out2, out3
}

var hkdfSpecs = [][2]string{
	{
		"0000000000000000000000000000000000000000000000000000000000000000",
		"0101010101010101010101010101010101010101010101010101010101010101",
	},
	{
		"4e6f6973655f58585f32353531395f436861436861506f6c795f534841323536",
		"deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
	},
}

func buildHKDFVectors() ([]hkdfVector, error) {
	vectors := make([]hkdfVector, 0, len(hkdfSpecs))
	for _, spec := range hkdfSpecs {
		ck, err := hex.DecodeString(spec[0])
		if err != nil {
			return nil, err
		}
		ikm, err := hex.DecodeString(spec[1])
		if err != nil {
			return nil, err
		}
		out1, out2, out3 := hkdfChain(ck, ikm)
		vectors = append(vectors, hkdfVector{
			ChainingKey:      spec[0],
			InputKeyMaterial: spec[1],
			Output1:          hex.EncodeToString(out1),
			Output2:          hex.EncodeToString(out2),
			Output3:          hex.EncodeToString(out3),
		})
	}
	return vectors, nil
}

func buildNonceVectors() []nonceVector {
	counters := []uint64{0, 1, 255, 256, 0xDEADBEEF, 1 << 32, 0x0102030405060708, noise.MaxNonce}
	vectors := make([]nonceVector, 0, len(counters))
	for _, counter := range counters {
		nonce := make([]byte, 12)
		binary.LittleEndian.PutUint64(nonce[4:], counter)
		v := nonceVector{
			Counter: counter,
			Nonce:   hex.EncodeToString(nonce),
		}
		if counter <= noise.MaxExtractedNonce {
			v.ExtractedPrefix = hex.EncodeToString(binary.BigEndian.AppendUint32(nil, uint32(counter)))
		}
		vectors = append(vectors, v)
	}
	return vectors
}

func main() {
	flag.Parse()
	all := !*genHandshake && !*genHKDF && !*genNonce

	var file vectorFile
	var err error
	if all || *genHandshake {
		file.Handshakes, err = buildHandshakeVectors()
		if err != nil {
			fmt.Fprintf(os.Stderr, "vectorgen: %v\n", err)
			os.Exit(1)
		}
	}
	if all || *genHKDF {
		file.KeyChains, err = buildHKDFVectors()
		if err != nil {
			fmt.Fprintf(os.Stderr, "vectorgen: %v\n", err)
			os.Exit(1)
		}
	}
	if all || *genNonce {
		file.Nonces = buildNonceVectors()
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "vectorgen: %v\n", err)
		os.Exit(1)
	}
	data = append(data, '\n')

	if *output == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "vectorgen: %v\n", err)
		os.Exit(1)
	}
}
