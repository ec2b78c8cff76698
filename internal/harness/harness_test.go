package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_DivergesWithoutSync(t *testing.T) {
	s := mustParse(t, `
name: no_sync
description: "Nothing is exchanged"
replicas: [a, b]
steps:
  - {replica: a, action: add, id: t1, title: "Only on a"}
assertions:
  - type: converged
`)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "converged on b")
	assert.Len(t, result.Replicas["a"].Tasks, 1)
	assert.Empty(t, result.Replicas["b"].Tasks)
}

func TestRun_UnexpectedStepError(t *testing.T) {
	s := mustParse(t, `
name: bad_step
description: "Rename of an unknown task"
replicas: [a]
steps:
  - {replica: a, action: rename, id: nope, title: "x"}
assertions:
  - type: task_count
    count: 0
`)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 1 (rename on a)")
	require.Len(t, result.Trace, 1)
	assert.NotEmpty(t, result.Trace[0].Error)
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	s := mustParse(t, `
name: expect_error
description: "A step that should fail but does not"
replicas: [a]
steps:
  - {replica: a, action: add, id: t1, title: "fine", expect_error: true}
assertions:
  - type: task_count
    count: 1
`)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected an error")
}

func TestRun_TaskAssertionPerReplica(t *testing.T) {
	s := mustParse(t, `
name: per_replica
description: "A task assertion scoped to one replica"
replicas: [a, b]
steps:
  - {replica: a, action: add, id: t1, title: "mine"}
assertions:
  - type: task
    replica: a
    id: t1
    title: "mine"
  - type: task_absent
    replica: b
    id: t1
  - type: task
    id: t1
    completed: false
`)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[2]")
	assert.Contains(t, result.Errors[0], "on b")
}

func TestRun_SyncTrace(t *testing.T) {
	s := mustParse(t, `
name: trace
description: "sync_all records two rounds per replica"
replicas: [a, b]
steps:
  - {replica: a, action: add, id: t1, title: "x"}
  - {action: sync_all}
assertions:
  - type: converged
`)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 5)
	first := result.Trace[1]
	assert.Equal(t, "a", first.Replica)
	assert.Equal(t, ActionSync, first.Action)
	assert.Equal(t, 1, first.Pushed)

	b := result.Trace[2]
	assert.Equal(t, "b", b.Replica)
	assert.Equal(t, 3, b.Changed)
	for _, ev := range result.Trace[1:] {
		assert.Equal(t, 2, ev.Seq)
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing name", "description: d\nreplicas: [a]\nsteps: [{replica: a, action: sync}]\nassertions: [{type: converged}]", "name is required"},
		{"no replicas", "name: n\ndescription: d\nsteps: [{action: sync_all}]\nassertions: [{type: converged}]", "replicas list"},
		{"duplicate replica", "name: n\ndescription: d\nreplicas: [a, a]\nsteps: [{action: sync_all}]\nassertions: [{type: converged}]", "duplicate replica"},
		{"unknown action", "name: n\ndescription: d\nreplicas: [a]\nsteps: [{replica: a, action: fly}]\nassertions: [{type: converged}]", "unknown action"},
		{"unknown replica", "name: n\ndescription: d\nreplicas: [a]\nsteps: [{replica: z, action: sync}]\nassertions: [{type: converged}]", "unknown replica"},
		{"add without title", "name: n\ndescription: d\nreplicas: [a]\nsteps: [{replica: a, action: add, id: t1}]\nassertions: [{type: converged}]", "needs id and title"},
		{"task without fields", "name: n\ndescription: d\nreplicas: [a]\nsteps: [{action: sync_all}]\nassertions: [{type: task, id: t1}]", "needs title or completed"},
		{"unknown assertion", "name: n\ndescription: d\nreplicas: [a]\nsteps: [{action: sync_all}]\nassertions: [{type: nope}]", "unknown assertion type"},
		{"unknown field", "name: n\ndescription: d\nreplicas: [a]\nstep: []\nassertions: [{type: converged}]", "failed to parse YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
