// Package clipboard copies a single state or transition between editing
// sessions through the system clipboard.
package clipboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	sysclip "github.com/atotto/clipboard"

	"stateflow/internal/model"
)

type Kind string

const (
	KindState      Kind = "state"
	KindTransition Kind = "transition"
)

// Item holds exactly one of State or Transition, selected by Kind. Gates
// travel with a copied transition.
type Item struct {
	Kind       Kind              `json:"kind"`
	State      *model.State      `json:"state,omitempty"`
	Transition *model.Transition `json:"transition,omitempty"`
	Gates      []model.Gate      `json:"gates,omitempty"`
}

// marker tells our payload apart from arbitrary text on the clipboard
const marker = "stateflow/clip"

type envelope struct {
	Format string `json:"format"`
	Item   Item   `json:"item"`
}

var ErrEmpty = errors.New("clipboard is empty")

func StateItem(s model.State) Item {
	return Item{Kind: KindState, State: &s}
}

func TransitionItem(t model.Transition, gates []model.Gate) Item {
	return Item{Kind: KindTransition, Transition: &t, Gates: gates}
}

// Validate checks that the payload matches the kind.
func (it Item) Validate() error {
	switch it.Kind {
	case KindState:
		if it.State == nil || it.Transition != nil {
			return fmt.Errorf("clipboard: %s item must carry only a state", it.Kind)
		}
	case KindTransition:
		if it.Transition == nil || it.State != nil {
			return fmt.Errorf("clipboard: %s item must carry only a transition", it.Kind)
		}
	default:
		return fmt.Errorf("clipboard: unknown item kind %q", it.Kind)
	}
	return nil
}

func Encode(it Item) (string, error) {
	if err := it.Validate(); err != nil {
		return "", err
	}
	body, err := json.Marshal(envelope{Format: marker, Item: it})
	if err != nil {
		return "", fmt.Errorf("clipboard: %w", err)
	}
	return string(body), nil
}

func Decode(text string) (Item, error) {
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return Item{}, fmt.Errorf("clipboard: %w", err)
	}
	if env.Format != marker {
		return Item{}, fmt.Errorf("clipboard: not a stateflow item")
	}
	if err := env.Item.Validate(); err != nil {
		return Item{}, err
	}
	return env.Item, nil
}

// Board is a clipboard with an in-process copy that is used whenever the
// system clipboard is missing or holds something else.
type Board struct {
	read  func() (string, error)
	write func(string) error

	mu    sync.Mutex
	local string
}

// New returns a board backed by the system clipboard when one is usable.
func New() *Board {
	if sysclip.Unsupported {
		return NewLocal()
	}
	return &Board{read: sysclip.ReadAll, write: sysclip.WriteAll}
}

// NewLocal returns a board that never leaves the process.
func NewLocal() *Board { return &Board{} }

// Copy stores it locally and, when possible, on the system clipboard. A
// failing system clipboard is reported but the local copy is kept.
func (b *Board) Copy(it Item) error {
	text, err := Encode(it)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.local = text
	b.mu.Unlock()
	if b.write == nil {
		return nil
	}
	if err := b.write(text); err != nil {
		return fmt.Errorf("clipboard: system clipboard: %w", err)
	}
	return nil
}

// Paste returns the system clipboard item if it holds one, the local copy
// otherwise.
func (b *Board) Paste() (Item, error) {
	if b.read != nil {
		if text, err := b.read(); err == nil && text != "" {
			if it, err := Decode(text); err == nil {
				return it, nil
			}
		}
	}
	b.mu.Lock()
	text := b.local
	b.mu.Unlock()
	if text == "" {
		return Item{}, ErrEmpty
	}
	return Decode(text)
}
