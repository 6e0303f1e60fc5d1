package app

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"family-quiz-service/internal/domain"
)

func TestNewRoomCodeAlphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewRoomCode()
		if err != nil {
			t.Fatalf("new code: %v", err)
		}
		if len(code) != CodeLength {
			t.Fatalf("expected %d characters, got %q", CodeLength, code)
		}
		if strings.ContainsAny(code, "IO0123456789") {
			t.Fatalf("code %q contains ambiguous characters", code)
		}
	}
}

func TestNewRoomCodeRejectsOutOfRangeDraws(t *testing.T) {
	// 0xFF masks to 31, past the 24-letter alphabet, and must be redrawn
	// rather than folded back onto the first letters.
	src := bytes.NewReader([]byte{0xFF, 5, 0, 23, 0xF8, 1, 2})
	code, err := newRoomCode(src)
	if err != nil {
		t.Fatalf("new code: %v", err)
	}
	if code != "FAZBC" {
		t.Fatalf("expected FAZBC, got %q", code)
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	code, err := NormalizeRoomCode("  abcde ")
	if err != nil || code != "ABCDE" {
		t.Fatalf("expected ABCDE, got %q (%v)", code, err)
	}
	for _, raw := range []string{"", "ABCD", "ABCDEF", "ABCDO", "AB1DE"} {
		if _, err := NormalizeRoomCode(raw); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %q, got %v", raw, err)
		}
	}
}
