package harness

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden form of a run: the pass flag and the tasks every
// replica agrees on.
type Snapshot struct {
	Scenario  string         `json:"scenario"`
	Pass      bool           `json:"pass"`
	Converged bool           `json:"converged"`
	Tasks     []SnapshotTask `json:"tasks"`
}

// SnapshotTask omits timestamps so golden files stay readable.
type SnapshotTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// NewSnapshot builds the golden form of result. Tasks come from the first
// replica, sorted by id.
func NewSnapshot(scenario *Scenario, result *Result) Snapshot {
	snap := Snapshot{
		Scenario:  scenario.Name,
		Pass:      result.Pass,
		Converged: assertConverged(scenario.Replicas, result) == nil,
		Tasks:     []SnapshotTask{},
	}
	for _, t := range result.Replicas[scenario.Replicas[0]].Tasks {
		snap.Tasks = append(snap.Tasks, SnapshotTask{ID: t.ID, Title: t.Title, Completed: t.Completed})
	}
	slices.SortFunc(snap.Tasks, func(a, b SnapshotTask) int { return strings.Compare(a.ID, b.ID) })
	return snap
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(NewSnapshot(scenario, result), "", "  ")
	if err != nil {
		return nil, err
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result, nil
}
