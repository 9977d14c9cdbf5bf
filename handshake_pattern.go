package noise

// A MessagePattern is a single token operation within a handshake message.
type MessagePattern int

// A HandshakePattern is the scripted sequence of token operations that a
// Noise handshake walks through, message by message.
type HandshakePattern struct {
	Name     string
	Messages [][]MessagePattern
}

// HandshakeXX is the three-message mutual-authentication pattern this
// package speaks. Neither peer needs prior knowledge of the other's static
// key: both statics travel encrypted inside the handshake, hidden from
// passive observers.
var HandshakeXX = HandshakePattern{
	Name: "XX",
	Messages: [][]MessagePattern{
		{MessagePatternE},
		{MessagePatternE, MessagePatternDHEE, MessagePatternS, MessagePatternDHES},
		{MessagePatternS, MessagePatternDHSE},
	},
}
