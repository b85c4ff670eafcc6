package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintProducesValidToken(t *testing.T) {
	g := NewGate()
	token, err := g.Mint()
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.True(t, g.Valid(token))
}

func TestValidRejectsUnknownToken(t *testing.T) {
	g := NewGate()
	assert.False(t, g.Valid("deadbeef"))
	assert.False(t, g.Valid(""))
}

func TestMintProducesDistinctTokens(t *testing.T) {
	g := NewGate()
	a, err := g.Mint()
	require.NoError(t, err)
	b, err := g.Mint()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, g.Valid(a))
	assert.True(t, g.Valid(b))
}
