package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReturnsCanonicallyFormatted36CharacterID(t *testing.T) {
	id, err := New()
	assert.NoError(t, err)
	assert.Len(t, id, 36)
}

func TestNewProducesDistinctIDs(t *testing.T) {
	a, err := New()
	assert.NoError(t, err)
	b, err := New()
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}
