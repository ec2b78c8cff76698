package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("a")
	assert.Equal(t, "a-1", g.Generate())
	assert.Equal(t, "a-2", g.Generate())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	g := NewSequentialIDs("")
	assert.Equal(t, "task-1", g.Generate())
}

func TestSequentialIDs_IndependentInstances(t *testing.T) {
	a := NewSequentialIDs("x")
	b := NewSequentialIDs("x")
	a.Generate()
	assert.Equal(t, "x-1", b.Generate(), "generators share no state")
}
