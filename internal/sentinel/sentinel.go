// Package sentinel generates the per-process trigger signal that marks the
// start of an injected tool call in the model's raw text output.
package sentinel

import (
	"crypto/rand"
	"fmt"
)

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generate returns a new self-closing trigger tag, e.g. "<Function_Ab1c_Start/>".
// It uses crypto/rand rather than math/rand since the signal's
// unguessability is what lets the streaming detector tell a genuine tool
// call apart from the model merely echoing the literal string back.
func Generate() (string, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("sentinel: read random bytes: %w", err)
	}
	out := make([]byte, 4)
	for i, b := range buf {
		out[i] = charset[int(b)%len(charset)]
	}
	return fmt.Sprintf("<Function_%s_Start/>", out), nil
}

// MustGenerate panics on failure; intended for process startup where a
// missing entropy source is unrecoverable anyway.
func MustGenerate() string {
	s, err := Generate()
	if err != nil {
		panic(err)
	}
	return s
}
