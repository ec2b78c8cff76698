package rdf

// Namespaces used by the task vocabulary.
const (
	NSRDF    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSXSD    = "http://www.w3.org/2001/XMLSchema#"
	NSSchema = "http://schema.org/"
	NSTodo   = "http://example.org/todo#"
)

// Predicates and classes.
const (
	RDFType            = NSRDF + "type"
	TodoTask           = NSTodo + "Task"
	TodoCompleted      = NSTodo + "completed"
	SchemaName         = NSSchema + "name"
	SchemaDateCreated  = NSSchema + "dateCreated"
	SchemaDateModified = NSSchema + "dateModified"

	// TaskNamespace prefixes every task subject.
	TaskNamespace = NSTodo + "task/"
)

// Ontology maps task attributes to predicate IRIs.
// It is static configuration, never runtime state.
type Ontology struct {
	Type      string
	TaskClass string
	Title     string
	Completed string
	CreatedAt string
	UpdatedAt string
	// SubjectNS prefixes the subject IRI of each task.
	SubjectNS string
}

// DefaultOntology is the todo vocabulary.
var DefaultOntology = Ontology{
	Type:      RDFType,
	TaskClass: TodoTask,
	Title:     SchemaName,
	Completed: TodoCompleted,
	CreatedAt: SchemaDateCreated,
	UpdatedAt: SchemaDateModified,
	SubjectNS: TaskNamespace,
}

// Field resolves a short attribute name ("title", "completed", ...) to its
// predicate. Full IRIs pass through unchanged.
func (o Ontology) Field(name string) (string, bool) {
	switch name {
	case "type":
		return o.Type, true
	case "title", "name":
		return o.Title, true
	case "completed":
		return o.Completed, true
	case "createdAt", "created_at":
		return o.CreatedAt, true
	case "updatedAt", "updated_at":
		return o.UpdatedAt, true
	}
	if isAbsoluteIRI(name) {
		return name, true
	}
	return "", false
}

// Prefixes lists the Turtle prefixes in output order.
var Prefixes = []struct {
	Name string
	IRI  string
}{
	{"rdf", NSRDF},
	{"xsd", NSXSD},
	{"schema", NSSchema},
	{"todo", NSTodo},
}

func isAbsoluteIRI(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' {
			return i > 0
		}
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.')) {
			return false
		}
	}
	return false
}
