package app

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"

	"family-quiz-service/internal/domain"
)

const (
	// CodeLength is the number of characters in a room code.
	CodeLength = 5
	// codeAlphabet skips I and O so codes read unambiguously aloud.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
)

// NewRoomCode returns a random room code.
func NewRoomCode() (string, error) {
	return newRoomCode(rand.Reader)
}

func newRoomCode(src io.Reader) (string, error) {
	limit := big.NewInt(int64(len(codeAlphabet)))
	out := make([]byte, CodeLength)
	for i := range out {
		n, err := rand.Int(src, limit)
		if err != nil {
			return "", fmt.Errorf("room code: %w", err)
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out), nil
}

// NormalizeRoomCode trims and upper-cases raw and checks it against the code alphabet.
func NormalizeRoomCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != CodeLength {
		return "", fmt.Errorf("room code %q must be %d letters: %w", raw, CodeLength, domain.ErrInvalidInput)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			return "", fmt.Errorf("room code %q has invalid character %q: %w", raw, r, domain.ErrInvalidInput)
		}
	}
	return code, nil
}
