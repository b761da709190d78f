package signer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Signature is a detached Ed25519 signature.
//
// On the wire it travels as a JSON array of byte values, e.g. [12,250,3,...].
// A string holding such an array is also accepted when decoding.
type Signature []byte

// MarshalJSON encodes the signature as an array of decimal byte values.
func (s Signature) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.Grow(len(s)*4 + 2)
	buf.WriteByte('[')
	for i, b := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(b)))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an array of byte values, or a string containing one.
func (s *Signature) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return fmt.Errorf("invalid signature string: %w", err)
		}
		data = []byte(inner)
	}

	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}

	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return fmt.Errorf("signature byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	*s = out
	return nil
}
