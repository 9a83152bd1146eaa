// internal/payment/memo.go
package payment

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

const (
	memoLetters     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	memoLetterCount = 2
	memoDigitCount  = 4
)

// GenerateMemo produces a short high-entropy correlation token of two
// letters followed by four digits, e.g. "KX4821".
func GenerateMemo() (string, error) {
	var b strings.Builder

	for i := 0; i < memoLetterCount; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(memoLetters))))
		if err != nil {
			return "", fmt.Errorf("generate memo letter: %w", err)
		}
		b.WriteByte(memoLetters[idx.Int64()])
	}

	for i := 0; i < memoDigitCount; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate memo digit: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}

	return b.String(), nil
}

// NormalizeMemo upper-cases a memo and strips every whitespace rune, so
// "ab1234", " AB1234 " and "AB 1234" all collapse to "AB1234".
func NormalizeMemo(memo string) string {
	var b strings.Builder
	for _, r := range memo {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// MemosEqual compares two memos after normalization.
func MemosEqual(a, b string) bool {
	na := NormalizeMemo(a)
	if na == "" {
		return false
	}
	return na == NormalizeMemo(b)
}
