package model

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of a workflow entity. Field errors are
// flattened into one message.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid %T: %s", v, strings.Join(msgs, "; "))
}

// ValidateGraph runs field validation on every entity and then checks
// referential integrity.
func ValidateGraph(g *Graph) error {
	if err := Validate(g.Workflow); err != nil {
		return err
	}
	for _, s := range g.States {
		if err := Validate(s); err != nil {
			return err
		}
	}
	for _, t := range g.Transitions {
		if err := Validate(t); err != nil {
			return err
		}
	}
	for _, gates := range g.Gates {
		for _, gate := range gates {
			if err := Validate(gate); err != nil {
				return err
			}
		}
	}
	return g.Validate()
}
