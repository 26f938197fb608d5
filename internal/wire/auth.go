package wire

import (
	"encoding/binary"
	"fmt"
)

// ClientHashLen is the fixed size of the client-side KDF output carried
// in LoginRequest/RegistrationRequest (spec §6 "Password hashing":
// "output 32 bytes").
const ClientHashLen = 32

// Credentials is the wire shape shared by LoginRequest and
// RegistrationRequest: a length-prefixed username followed by the
// fixed-width client hash.
type Credentials struct {
	Username   string
	ClientHash [32]byte
}

func encodeCredentials(c Credentials) ([]byte, error) {
	if !ValidUsername(c.Username) {
		return nil, fmt.Errorf("invalid username %q", c.Username)
	}
	buf := make([]byte, 1+len(c.Username)+ClientHashLen)
	buf[0] = byte(len(c.Username))
	off := copy(buf[1:], c.Username) + 1
	copy(buf[off:], c.ClientHash[:])
	return buf, nil
}

func decodeCredentials(b []byte) (Credentials, error) {
	if len(b) < 1 {
		return Credentials{}, fmt.Errorf("credentials: short buffer")
	}
	nameLen := int(b[0])
	if len(b) < 1+nameLen+ClientHashLen {
		return Credentials{}, fmt.Errorf("credentials: truncated")
	}
	name := string(b[1 : 1+nameLen])
	if !ValidUsername(name) {
		return Credentials{}, fmt.Errorf("credentials: invalid username %q", name)
	}
	var c Credentials
	c.Username = name
	copy(c.ClientHash[:], b[1+nameLen:1+nameLen+ClientHashLen])
	return c, nil
}

// EncodeLoginRequest/DecodeLoginRequest carry KLoginRequest's payload.
func EncodeLoginRequest(c Credentials) ([]byte, error) { return encodeCredentials(c) }
func DecodeLoginRequest(b []byte) (Credentials, error) { return decodeCredentials(b) }

// EncodeRegistrationRequest/DecodeRegistrationRequest carry
// KRegistrationRequest's payload (identical shape to LoginRequest).
func EncodeRegistrationRequest(c Credentials) ([]byte, error) { return encodeCredentials(c) }
func DecodeRegistrationRequest(b []byte) (Credentials, error) { return decodeCredentials(b) }

// EncodeEloArray encodes GoodAuth's per-mode elo array as big-endian
// int32s (spec §6 "GoodAuth carrying the per-mode elo array").
func EncodeEloArray(elo []int32) []byte {
	buf := make([]byte, 4*len(elo))
	for i, e := range elo {
		binary.BigEndian.PutUint32(buf[i*4:], uint32(e))
	}
	return buf
}

// DecodeEloArray decodes EncodeEloArray's output.
func DecodeEloArray(b []byte) ([]int32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("elo array: length %d not a multiple of 4", len(b))
	}
	out := make([]int32, len(b)/4)
	for i := range out {
		out[i] = int32(binary.BigEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
