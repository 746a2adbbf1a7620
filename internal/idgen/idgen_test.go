package idgen

import (
	"regexp"
	"testing"
)

func TestGenerate_Length(t *testing.T) {
	id, err := Generate(StatePrefix)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	wantLen := len(StatePrefix) + Length
	if len(id) != wantLen {
		t.Errorf("Generate() length = %d, want %d (id=%q)", len(id), wantLen, id)
	}
}

func TestGenerate_Charset(t *testing.T) {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(TransitionPrefix) + `[a-zA-Z0-9]+$`)
	for i := 0; i < 100; i++ {
		id, err := Generate(TransitionPrefix)
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("Generate() = %q, does not match expected charset pattern", id)
		}
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := Generate(WorkflowPrefix)
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestSequence(t *testing.T) {
	next := Sequence()
	for _, want := range []string{"st-1", "tr-2", "st-3"} {
		prefix := want[:3]
		got, err := next(prefix)
		if err != nil {
			t.Fatalf("Sequence() error: %v", err)
		}
		if got != want {
			t.Errorf("Sequence() = %q, want %q", got, want)
		}
	}
}
