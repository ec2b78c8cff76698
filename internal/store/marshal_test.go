package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triplesync/internal/rdf"
)

func TestUnmarshalTriples_Empty(t *testing.T) {
	for _, in := range []string{"", "[]", "null"} {
		got, err := unmarshalTriples(in)
		require.NoError(t, err)
		assert.NotNil(t, got, "input %q", in)
		assert.Empty(t, got)
	}
}

func TestUnmarshalTriples_Invalid(t *testing.T) {
	_, err := unmarshalTriples(`[{"object":{"kind":"float","value":1.5}}]`)
	assert.Error(t, err)
}

func TestMarshalTriples_KeepsFalse(t *testing.T) {
	data, err := marshalTriples([]rdf.Triple{createTestTriple("s", "p", rdf.Bool(false), 1)})
	require.NoError(t, err)
	assert.Contains(t, data, `"value":false`)
}

func TestEncodeObject_Nil(t *testing.T) {
	_, _, err := encodeObject(nil)
	assert.Error(t, err)
}
