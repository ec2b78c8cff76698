package engine

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/triplesync/internal/rdf"
)

// validate checks the struct tags on rdf.Triple and rdf.Operation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateTriples rejects the batch at the first malformed triple.
// The returned error names the index and field; nothing should be applied.
func ValidateTriples(op string, triples []rdf.Triple) error {
	for i, t := range triples {
		if err := validateTriple(op, i, t); err != nil {
			return err
		}
	}
	return nil
}

func validateTriple(op string, index int, t rdf.Triple) error {
	if err := validate.Struct(t); err != nil {
		field, msg := describe(err)
		return NewValidationError(op, index, field, msg)
	}
	if t.Object == nil {
		return NewValidationError(op, index, "Object", "is required")
	}
	return nil
}

// ValidateOperation checks an operation and every triple it carries.
func ValidateOperation(op string, o rdf.Operation) error {
	if err := validate.Struct(o); err != nil {
		field, msg := describe(err)
		return NewValidationError(op, -1, field, msg)
	}
	for i, t := range o.Triples {
		if err := validateTriple(op, i, t); err != nil {
			return err
		}
	}
	return nil
}

// describe turns the first validator failure into (field, message).
func describe(err error) (string, string) {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return "", err.Error()
	}
	fe := ves[0]
	switch fe.Tag() {
	case "required":
		return fe.Field(), "is required"
	case "gt":
		return fe.Field(), fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fe.Field(), fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fe.Field(), fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return fe.Field(), fmt.Sprintf("must have at least %s element(s)", fe.Param())
	}
	return fe.Field(), fmt.Sprintf("failed %q check", fe.Tag())
}
