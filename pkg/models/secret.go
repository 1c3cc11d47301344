package models

import (
	"crypto/subtle"
	"log/slog"
)

// secretBytes owns a private copy of some key material. The zero value
// holds nothing.
type secretBytes struct {
	b []byte
}

func newSecretBytes(src []byte) secretBytes {
	b := make([]byte, len(src))
	copy(b, src)
	return secretBytes{b: b}
}

func (s secretBytes) copyBytes() []byte {
	b := make([]byte, len(s.b))
	copy(b, s.b)
	return b
}

func (s secretBytes) len() int {
	return len(s.b)
}

func (s secretBytes) equal(o secretBytes) bool {
	if len(s.b) != len(o.b) {
		return false
	}
	return subtle.ConstantTimeCompare(s.b, o.b) == 1
}

func (s secretBytes) wipe() {
	Zero(s.b)
}

const redacted = "***"

var redactedValue = slog.StringValue(redacted)

// Zero overwrites every byte of bs with zero.
func Zero(bs ...[]byte) {
	for _, b := range bs {
		for i := range b {
			b[i] = 0
		}
	}
}
