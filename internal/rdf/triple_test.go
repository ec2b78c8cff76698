package rdf

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripleKey(t *testing.T) {
	tr := Triple{Subject: "s", Predicate: "p"}
	assert.Equal(t, "s#p", tr.Key())
	assert.Equal(t, RegisterKey("s", "p"), tr.Key())
}

func TestTripleJSONKeepsFalseAndZero(t *testing.T) {
	tr := Triple{
		Subject:   TaskNamespace + "t1",
		Predicate: TodoCompleted,
		Object:    Bool(false),
		Timestamp: 5,
		ReplicaID: "replica-a",
	}

	data, err := json.Marshal(tr)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"subject": "http://example.org/todo#task/t1",
		"predicate": "http://example.org/todo#completed",
		"object": {"kind": "bool", "value": false},
		"timestamp": 5,
		"replica_id": "replica-a"
	}`, string(data))

	var back Triple
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, tr.Equal(back), "got %s", back)
}

func TestTripleJSONTombstone(t *testing.T) {
	tr := Triple{Subject: "s", Predicate: "p", Object: Deleted, Timestamp: 9, ReplicaID: "r"}

	data, err := json.Marshal(tr)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"object":{"kind":"deleted"}`)

	var back Triple
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.IsTombstone())
}

func TestTripleJSONMissingObject(t *testing.T) {
	var tr Triple
	require.NoError(t, json.Unmarshal([]byte(`{"subject":"s","predicate":"p","timestamp":1,"replica_id":"r"}`), &tr))
	assert.Nil(t, tr.Object)
}

func TestUnmarshalValueRejectsFloat(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"kind":"int","value":1.5}`))
	assert.Error(t, err)
}

func TestDecodeObject(t *testing.T) {
	for _, v := range []Value{IRI(TodoTask), String("x"), Bool(true), Int(7), Deleted} {
		kind, lex := EncodeObject(v)
		back, err := DecodeObject(kind, lex)
		require.NoError(t, err)
		assert.True(t, ValuesEqual(v, back), "%s", kind)
	}

	_, err := DecodeObject("bool", "maybe")
	assert.Error(t, err)
}

func TestSortTriples(t *testing.T) {
	ts := []Triple{
		{Subject: "b", Predicate: "a"},
		{Subject: "a", Predicate: "z"},
		{Subject: "a", Predicate: "b"},
	}
	SortTriples(ts)
	assert.Equal(t, []string{"a#b", "a#z", "b#a"}, []string{ts[0].Key(), ts[1].Key(), ts[2].Key()})
}

func TestOperationID(t *testing.T) {
	id := OperationID(1700000000123, "replica-0190")
	assert.Equal(t, "op-1700000000123-replica-0190", id)

	ts, replica, err := ParseOperationID(id)
	require.NoError(t, err)
	assert.Equal(t, LogicalTime(1700000000123), ts)
	assert.Equal(t, ReplicaID("replica-0190"), replica)

	_, _, err = ParseOperationID("1700-r")
	assert.Error(t, err)
}

func TestOntologyField(t *testing.T) {
	p, ok := DefaultOntology.Field("title")
	assert.True(t, ok)
	assert.Equal(t, SchemaName, p)

	p, ok = DefaultOntology.Field("http://example.org/todo#priority")
	assert.True(t, ok)
	assert.Equal(t, "http://example.org/todo#priority", p)

	_, ok = DefaultOntology.Field("priority")
	assert.False(t, ok)
}
