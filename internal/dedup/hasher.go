// Package dedup computes content-addressed digests for duplicate
// detection. Near-identical reposts (same text, different whitespace or
// casing) collapse to the same digest.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidInput is returned when the input is not usable text.
var ErrInvalidInput = errors.New("dedup: invalid input")

// Hash returns the hex-encoded SHA-256 of the normalized concatenation of
// title and body. It is a pure function: identical inputs always produce
// identical digests.
func Hash(title, body string) (string, error) {
	if err := checkText("title", title); err != nil {
		return "", err
	}
	if err := checkText("body", body); err != nil {
		return "", err
	}
	if strings.TrimSpace(title) == "" && strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%w: title and body are both empty", ErrInvalidInput)
	}

	normalized := Normalize(title) + "\n" + Normalize(body)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]), nil
}

// Normalize lowercases the text and collapses all runs of whitespace to a
// single space so formatting differences do not change the digest.
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	fields := strings.FieldsFunc(lowered, unicode.IsSpace)
	return strings.Join(fields, " ")
}

// checkText rejects byte sequences that are not text: invalid UTF-8 or
// content dominated by control characters.
func checkText(field, text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidInput, field)
	}
	for _, r := range text {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return fmt.Errorf("%w: %s contains control characters", ErrInvalidInput, field)
		}
	}
	return nil
}
