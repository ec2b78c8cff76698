package rdf

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
)

// WriteTurtle writes the live triples as Turtle.
//
// Tombstoned registers are omitted. Output is grouped by subject and sorted,
// so equal graphs always serialize to equal bytes. Each statement carries a
// comment with its timestamp and replica for debugging.
func WriteTurtle(w io.Writer, triples []Triple) error {
	live := make([]Triple, 0, len(triples))
	for _, t := range triples {
		if !t.IsTombstone() && t.Object != nil {
			live = append(live, t)
		}
	}
	SortTriples(live)

	bw := bufio.NewWriter(w)
	for _, p := range Prefixes {
		fmt.Fprintf(bw, "@prefix %s: <%s> .\n", p.Name, p.IRI)
	}

	for i := 0; i < len(live); {
		j := i
		for j < len(live) && live[j].Subject == live[i].Subject {
			j++
		}
		group := live[i:j]

		fmt.Fprintf(bw, "\n%s\n", shortenIRI(group[0].Subject))
		for k, t := range group {
			sep := " ;"
			if k == len(group)-1 {
				sep = " ."
			}
			fmt.Fprintf(bw, "    %s %s%s # @%d %s\n",
				turtlePredicate(t.Predicate), turtleObject(t.Object), sep, t.Timestamp, t.ReplicaID)
		}
		i = j
	}
	return bw.Flush()
}

func turtlePredicate(p string) string {
	if p == RDFType {
		return "a"
	}
	return shortenIRI(p)
}

func turtleObject(v Value) string {
	switch val := v.(type) {
	case IRI:
		return shortenIRI(string(val))
	case String:
		return quoteTurtle(string(val))
	case Bool, Int:
		return val.Lexical()
	}
	return quoteTurtle(v.Lexical())
}

// shortenIRI uses a prefixed name when the local part is a plain name,
// otherwise the full <IRI> form.
func shortenIRI(iri string) string {
	for _, p := range Prefixes {
		local, ok := strings.CutPrefix(iri, p.IRI)
		if ok && isPlainLocalName(local) {
			return p.Name + ":" + local
		}
	}
	return "<" + escapeIRI(iri) + ">"
}

func isPlainLocalName(s string) bool {
	if s == "" {
		return false
	}
	return !slices.ContainsFunc([]rune(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_')
	})
}

var iriEscaper = strings.NewReplacer(
	"<", "\\u003C", ">", "\\u003E", "\"", "\\u0022", " ", "\\u0020",
	"{", "\\u007B", "}", "\\u007D", "|", "\\u007C", "\\", "\\u005C",
	"^", "\\u005E", "`", "\\u0060",
)

func escapeIRI(s string) string {
	return iriEscaper.Replace(s)
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`,
)

func quoteTurtle(s string) string {
	return `"` + literalEscaper.Replace(s) + `"`
}
