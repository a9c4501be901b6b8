package app

import (
	"crypto/rand"
	"fmt"
)

const (
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength      = 6
	maxCodeAttempts = 10
)

// CodeGenerator produces candidate room codes. Collisions are resolved by the registry.
type CodeGenerator func() (string, error)

// RandomCode draws a code from an alphabet without easily confused characters (0/O, 1/I).
func RandomCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}
