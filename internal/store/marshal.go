package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/triplesync/internal/rdf"
)

// marshalTriples converts an operation's triples to JSON TEXT for storage.
func marshalTriples(triples []rdf.Triple) (string, error) {
	data, err := json.Marshal(triples)
	if err != nil {
		return "", fmt.Errorf("marshal triples: %w", err)
	}
	return string(data), nil
}

// unmarshalTriples reverses marshalTriples. An empty column yields an empty
// slice, never nil.
func unmarshalTriples(data string) ([]rdf.Triple, error) {
	if data == "" {
		return []rdf.Triple{}, nil
	}
	var triples []rdf.Triple
	if err := json.Unmarshal([]byte(data), &triples); err != nil {
		return nil, fmt.Errorf("unmarshal triples: %w", err)
	}
	if triples == nil {
		triples = []rdf.Triple{}
	}
	return triples, nil
}

// encodeObject splits an object into (kind, lexical) columns.
func encodeObject(v rdf.Value) (string, string, error) {
	if v == nil {
		return "", "", fmt.Errorf("encode object: nil")
	}
	kind, lexical := rdf.EncodeObject(v)
	return kind, lexical, nil
}
