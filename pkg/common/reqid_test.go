package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
	assert.True(t, ValidRequestID(a))
}

func TestValidRequestID(t *testing.T) {
	cases := map[string]bool{
		"":                      false,
		"abc-123":               true,
		"has space":             false,
		"tab\t":                 false,
		"中文":                    false,
		strings.Repeat("x", 64): true,
		strings.Repeat("x", 65): false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidRequestID(in), "%q", in)
	}
}
