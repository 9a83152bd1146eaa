// internal/wallet/address_test.go
package wallet

import (
	"bytes"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddress(fill byte) string {
	return base58.Encode(bytes.Repeat([]byte{fill}, 32))
}

func TestNormalize(t *testing.T) {
	addr := testAddress(7)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "canonical address", input: addr, want: addr},
		{name: "surrounding whitespace", input: "  " + addr + "\n", want: addr},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
		{name: "not base58", input: "0OIl+/", wantErr: true},
		{name: "wrong length", input: base58.Encode([]byte{1, 2, 3}), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEqual(t *testing.T) {
	a := testAddress(1)
	b := testAddress(2)

	assert.True(t, Equal(a, a))
	assert.True(t, Equal(" "+a+" ", a))
	assert.False(t, Equal(a, b))
	assert.False(t, Equal("", a))
	assert.False(t, Equal("garbage", a))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(testAddress(9)))
	assert.False(t, Valid(""))
	assert.False(t, Valid("short"))
}
