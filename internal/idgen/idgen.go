// Package idgen provides short, URL-safe unique IDs backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes identify the entity an ID belongs to.
const (
	WorkflowPrefix   = "wf-"
	StatePrefix      = "st-"
	TransitionPrefix = "tr-"
	GatePrefix       = "gt-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Func produces an ID for the given prefix. Callers that need
// deterministic IDs in tests inject their own.
type Func func(prefix string) (string, error)

// Generate returns a new unique ID with the given prefix.
func Generate(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Sequence returns a Func yielding prefix1, prefix2, ... for tests.
func Sequence() Func {
	n := 0
	return func(prefix string) (string, error) {
		n++
		return fmt.Sprintf("%s%d", prefix, n), nil
	}
}
