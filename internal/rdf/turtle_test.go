package rdf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() []Triple {
	t1 := TaskNamespace + "t1"
	t2 := TaskNamespace + "t2"
	return []Triple{
		{Subject: t2, Predicate: SchemaName, Object: String("line1\nline2"), Timestamp: 6, ReplicaID: "replica-a"},
		{Subject: t1, Predicate: RDFType, Object: IRI(TodoTask), Timestamp: 1, ReplicaID: "replica-a"},
		{Subject: t1, Predicate: SchemaName, Object: String(`Buy "milk"`), Timestamp: 2, ReplicaID: "replica-a"},
		{Subject: t1, Predicate: TodoCompleted, Object: Bool(false), Timestamp: 3, ReplicaID: "replica-b"},
		{Subject: t1, Predicate: SchemaDateCreated, Object: Int(1700), Timestamp: 1, ReplicaID: "replica-a"},
		{Subject: t1, Predicate: SchemaDateModified, Object: Deleted, Timestamp: 4, ReplicaID: "replica-b"},
		{Subject: t2, Predicate: RDFType, Object: IRI(TodoTask), Timestamp: 5, ReplicaID: "replica-a"},
	}
}

func TestWriteTurtleGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTurtle(&buf, sampleGraph()))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "two_tasks.ttl", buf.Bytes())
}

func TestWriteTurtleOmitsTombstones(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTurtle(&buf, sampleGraph()))
	assert.NotContains(t, buf.String(), "dateModified")
}

func TestWriteTurtleEmptyGraph(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTurtle(&buf, nil))
	assert.Equal(t, len(Prefixes), strings.Count(buf.String(), "@prefix"))
}

func TestShortenIRI(t *testing.T) {
	assert.Equal(t, "todo:Task", shortenIRI(TodoTask))
	assert.Equal(t, "<http://example.org/todo#task/t1>", shortenIRI(TaskNamespace+"t1"))
	assert.Equal(t, `<urn:x y>`, shortenIRI("urn:x y"))
}
