// internal/wallet/address.go
package wallet

import (
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

var ErrInvalidAddress = errors.New("invalid wallet address")

// Normalize returns the canonical base58 form of a wallet address.
// Surrounding whitespace is dropped and the address is round-tripped
// through base58 so equivalent encodings compare identical.
func Normalize(addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return "", ErrInvalidAddress
	}

	raw, err := base58.Decode(trimmed)
	if err != nil {
		return "", ErrInvalidAddress
	}
	if len(raw) != 32 {
		return "", ErrInvalidAddress
	}

	return base58.Encode(raw), nil
}

// Equal reports whether two addresses refer to the same account. Inputs
// that fail to normalize never compare equal.
func Equal(a, b string) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}

// Valid reports whether addr is a well-formed account address.
func Valid(addr string) bool {
	_, err := Normalize(addr)
	return err == nil
}
