package harness

import (
	"fmt"

	"github.com/roach88/triplesync/internal/projection"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Replica  string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	if e.Replica != "" {
		return fmt.Sprintf("%s on %s: expected %s, got %s", e.Type, e.Replica, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func (h *Harness) check(a Assertion, result *Result) error {
	if a.Type == AssertConverged {
		return assertConverged(h.order, result)
	}

	targets := h.order
	if a.Replica != "" {
		targets = []string{a.Replica}
	}
	for _, name := range targets {
		tasks := result.Replicas[name].Tasks
		var err error
		switch a.Type {
		case AssertTask:
			err = assertTask(tasks, a)
		case AssertTaskAbsent:
			if _, ok := findTask(tasks, a.ID); ok {
				err = &AssertionError{Type: a.Type, Expected: "no task " + a.ID, Actual: "present"}
			}
		case AssertTaskCount:
			if len(tasks) != a.Count {
				err = &AssertionError{
					Type:     a.Type,
					Expected: fmt.Sprintf("%d tasks", a.Count),
					Actual:   fmt.Sprintf("%d", len(tasks)),
				}
			}
		default:
			return fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			if ae, ok := err.(*AssertionError); ok {
				ae.Replica = name
			}
			return err
		}
	}
	return nil
}

func assertConverged(order []string, result *Result) error {
	first := result.Replicas[order[0]].Digest
	for _, name := range order[1:] {
		if d := result.Replicas[name].Digest; d != first {
			return &AssertionError{
				Type:     AssertConverged,
				Replica:  name,
				Expected: "digest " + short(first) + " (from " + order[0] + ")",
				Actual:   short(d),
			}
		}
	}
	return nil
}

func assertTask(tasks []projection.Task, a Assertion) error {
	task, ok := findTask(tasks, a.ID)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: "task " + a.ID, Actual: "absent"}
	}
	if a.Title != nil && task.Title != *a.Title {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("title %q", *a.Title), Actual: fmt.Sprintf("%q", task.Title)}
	}
	if a.Completed != nil && task.Completed != *a.Completed {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("completed=%t", *a.Completed), Actual: fmt.Sprintf("completed=%t", task.Completed)}
	}
	return nil
}

func findTask(tasks []projection.Task, id string) (projection.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return projection.Task{}, false
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
