package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsProcessAlive(t *testing.T) {
	assert.True(t, IsProcessAlive(Self()), "current process should be alive")
	assert.False(t, IsProcessAlive(0))
	assert.False(t, IsProcessAlive(-42))
}
