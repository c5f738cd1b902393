package zitadel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialPasswordPolicy(t *testing.T) {
	for i := 0; i < 50; i++ {
		pw, err := InitialPassword()
		require.NoError(t, err)

		assert.Len(t, pw, passwordLength)
		assert.True(t, strings.ContainsAny(pw, lowercase), "missing lowercase: %q", pw)
		assert.True(t, strings.ContainsAny(pw, uppercase), "missing uppercase: %q", pw)
		assert.True(t, strings.ContainsAny(pw, digits), "missing digit: %q", pw)
		assert.True(t, strings.ContainsAny(pw, symbols), "missing symbol: %q", pw)
	}
}

func TestInitialPasswordVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		pw, err := InitialPassword()
		require.NoError(t, err)
		seen[pw] = true
	}
	assert.Greater(t, len(seen), 1)
}
