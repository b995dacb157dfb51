package knowledge

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_Unique(t *testing.T) {
	gen := UUIDv7Generator{}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen.NewID()
		assert.False(t, seen[id], "id %s generated twice", id)
		seen[id] = true
	}
}

func TestUUIDv7Generator_Version(t *testing.T) {
	gen := UUIDv7Generator{}

	parsed, err := uuid.Parse(gen.NewID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedIDGenerator_ReturnsInOrder(t *testing.T) {
	gen := NewFixedIDGenerator("a", "b", "c")

	assert.Equal(t, "a", gen.NewID())
	assert.Equal(t, "b", gen.NewID())
	assert.Equal(t, "c", gen.NewID())
}

func TestFixedIDGenerator_PanicsWhenExhausted(t *testing.T) {
	gen := NewFixedIDGenerator("only")
	gen.NewID()

	assert.Panics(t, func() { gen.NewID() })
}
