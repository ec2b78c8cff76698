// Package projection derives tasks from a triple set.
//
// Project is a pure function: it holds no state and never caches. Ordering is
// not part of projection; callers that render a list use SortForDisplay.
package projection

import (
	"cmp"
	"slices"
	"strings"

	"github.com/roach88/triplesync/internal/rdf"
)

// Task is the projected view of one task subject.
type Task struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Project folds triples into tasks using the ontology.
//
// A subject is a candidate when it has a live (s, type, TaskClass) triple.
// Absent attributes take defaults (title "", completed false). createdAt
// falls back to the type triple's timestamp and updatedAt to the newest live
// triple of the subject. Candidates without a live title triple are dropped,
// so a task that has only half-synced stays hidden until its title arrives.
//
// The result is sorted by ID.
func Project(triples []rdf.Triple, o rdf.Ontology) []Task {
	bySubject := make(map[string][]rdf.Triple)
	for _, t := range triples {
		if t.IsTombstone() || t.Object == nil {
			continue
		}
		bySubject[t.Subject] = append(bySubject[t.Subject], t)
	}

	tasks := make([]Task, 0, len(bySubject))
	for subject, live := range bySubject {
		task, ok := fold(subject, live, o)
		if ok {
			tasks = append(tasks, task)
		}
	}
	slices.SortFunc(tasks, func(a, b Task) int {
		if c := cmp.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Subject, b.Subject)
	})
	return tasks
}

func fold(subject string, live []rdf.Triple, o rdf.Ontology) (Task, bool) {
	var (
		typeTriple   *rdf.Triple
		hasTitle     bool
		hasCreatedAt bool
		hasUpdatedAt bool
		latest       rdf.LogicalTime
		task         = Task{Subject: subject, ID: IDFromSubject(o, subject)}
	)

	for i := range live {
		t := live[i]
		if t.Timestamp > latest {
			latest = t.Timestamp
		}
		switch t.Predicate {
		case o.Type:
			if class, ok := rdf.AsString(t.Object); ok && class == o.TaskClass {
				typeTriple = &live[i]
			}
		case o.Title:
			hasTitle = true
			task.Title = t.Object.Lexical()
		case o.Completed:
			task.Completed, _ = rdf.AsBool(t.Object)
		case o.CreatedAt:
			if n, ok := rdf.AsInt(t.Object); ok {
				task.CreatedAt = n
				hasCreatedAt = true
			}
		case o.UpdatedAt:
			if n, ok := rdf.AsInt(t.Object); ok {
				task.UpdatedAt = n
				hasUpdatedAt = true
			}
		}
	}

	if typeTriple == nil || !hasTitle {
		return Task{}, false
	}
	if !hasCreatedAt {
		task.CreatedAt = int64(typeTriple.Timestamp)
	}
	if !hasUpdatedAt {
		task.UpdatedAt = int64(latest)
	}
	return task, true
}

// SortForDisplay orders tasks for a list view: active before completed,
// newest createdAt first, ID as the final tie-break. It sorts in place and
// returns the slice for chaining.
func SortForDisplay(tasks []Task) []Task {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		if a.Completed != b.Completed {
			if !a.Completed {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return tasks
}

// TaskToTriples expresses a task as the five triples Project reads back.
// All triples share the timestamp ts and the replica.
func TaskToTriples(task Task, o rdf.Ontology, ts rdf.LogicalTime, replica rdf.ReplicaID) []rdf.Triple {
	subject := task.Subject
	if subject == "" {
		subject = SubjectFor(o, task.ID)
	}
	mk := func(predicate string, v rdf.Value) rdf.Triple {
		return rdf.Triple{Subject: subject, Predicate: predicate, Object: v, Timestamp: ts, ReplicaID: replica}
	}
	return []rdf.Triple{
		mk(o.Type, rdf.IRI(o.TaskClass)),
		mk(o.Title, rdf.String(task.Title)),
		mk(o.Completed, rdf.Bool(task.Completed)),
		mk(o.CreatedAt, rdf.Int(task.CreatedAt)),
		mk(o.UpdatedAt, rdf.Int(task.UpdatedAt)),
	}
}

// SubjectFor returns the subject IRI of the task with the given id.
func SubjectFor(o rdf.Ontology, id string) string {
	if strings.Contains(id, ":") {
		return id
	}
	return o.SubjectNS + id
}

// IDFromSubject strips the task namespace. Subjects outside the namespace
// are their own id.
func IDFromSubject(o rdf.Ontology, subject string) string {
	if id, ok := strings.CutPrefix(subject, o.SubjectNS); ok && id != "" {
		return id
	}
	return subject
}
