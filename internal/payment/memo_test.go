// internal/payment/memo_test.go
package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMemoFormat(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		memo, err := GenerateMemo()
		require.NoError(t, err)
		require.Len(t, memo, 6)

		for j := 0; j < 2; j++ {
			assert.GreaterOrEqual(t, memo[j], byte('A'))
			assert.LessOrEqual(t, memo[j], byte('Z'))
		}
		for j := 2; j < 6; j++ {
			assert.GreaterOrEqual(t, memo[j], byte('0'))
			assert.LessOrEqual(t, memo[j], byte('9'))
		}
		seen[memo] = true
	}

	// 100 draws from a 6.76M space should not collapse to a handful.
	assert.Greater(t, len(seen), 90)
}

func TestNormalizeMemo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already canonical", input: "AB1234", want: "AB1234"},
		{name: "lowercase", input: "ab1234", want: "AB1234"},
		{name: "surrounding spaces", input: "  AB1234  ", want: "AB1234"},
		{name: "interior space", input: "AB 1234", want: "AB1234"},
		{name: "tabs and newlines", input: "\tab\n1234 ", want: "AB1234"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMemo(tt.input))
		})
	}
}

func TestMemosEqual(t *testing.T) {
	assert.True(t, MemosEqual("ab1234", "AB1234"))
	assert.True(t, MemosEqual(" AB 1234 ", "ab1234"))
	assert.False(t, MemosEqual("AB1234", "AB1235"))

	// An absent memo never matches anything, including another absent one.
	assert.False(t, MemosEqual("", ""))
	assert.False(t, MemosEqual("", "AB1234"))
	assert.False(t, MemosEqual("   ", "AB1234"))
}
