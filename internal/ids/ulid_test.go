package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsValidAndSorted(t *testing.T) {
	a := New()
	b := New()

	assert.Len(t, a, 26)
	assert.True(t, Valid(a))
	assert.True(t, Valid(b))
	assert.Less(t, a, b)
}

func TestValidRejectsGarbage(t *testing.T) {
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-a-ulid"))
}
