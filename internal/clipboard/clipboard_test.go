package clipboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stateflow/internal/geometry"
	"stateflow/internal/model"
)

func TestEncodeDecode(t *testing.T) {
	s := model.NewState("wf-1", "Draft", geometry.Pt(10, 20))
	s.ID = "st-1"

	text, err := Encode(StateItem(s))
	require.NoError(t, err)
	it, err := Decode(text)
	require.NoError(t, err)
	require.Equal(t, KindState, it.Kind)
	assert.Equal(t, s, *it.State)
	assert.Nil(t, it.Transition)
}

func TestItemValidate(t *testing.T) {
	s := model.State{Name: "A"}
	tr := model.Transition{FromStateID: "a", ToStateID: "b"}

	assert.NoError(t, StateItem(s).Validate())
	assert.NoError(t, TransitionItem(tr, nil).Validate())
	assert.Error(t, Item{Kind: KindState}.Validate())
	assert.Error(t, Item{Kind: KindState, State: &s, Transition: &tr}.Validate())
	assert.Error(t, Item{Kind: "box", State: &s}.Validate())
}

func TestDecodeRejectsForeignText(t *testing.T) {
	_, err := Decode("hello")
	assert.Error(t, err)
	_, err = Decode(`{"format":"other","item":{"kind":"state","state":{"name":"A"}}}`)
	assert.Error(t, err)
}

func TestLocalBoard(t *testing.T) {
	b := NewLocal()
	_, err := b.Paste()
	assert.ErrorIs(t, err, ErrEmpty)

	tr := model.Transition{ID: "tr-1", FromStateID: "a", ToStateID: "b"}
	gates := []model.Gate{{ID: "gt-1", TransitionID: "tr-1", Name: "Review"}}
	require.NoError(t, b.Copy(TransitionItem(tr, gates)))

	it, err := b.Paste()
	require.NoError(t, err)
	assert.Equal(t, KindTransition, it.Kind)
	assert.Equal(t, tr, *it.Transition)
	assert.Equal(t, gates, it.Gates)
}

func TestBoardFallsBackToLocal(t *testing.T) {
	var system string
	b := &Board{
		read:  func() (string, error) { return system, nil },
		write: func(s string) error { system = s; return nil },
	}
	require.NoError(t, b.Copy(StateItem(model.State{Name: "A"})))
	it, err := b.Paste()
	require.NoError(t, err)
	assert.Equal(t, "A", it.State.Name)

	// another program replaced the clipboard contents
	system = "some text"
	it, err = b.Paste()
	require.NoError(t, err)
	assert.Equal(t, "A", it.State.Name)
}

func TestBoardKeepsLocalCopyWhenSystemFails(t *testing.T) {
	b := &Board{
		read:  func() (string, error) { return "", errors.New("no display") },
		write: func(string) error { return errors.New("no display") },
	}
	assert.Error(t, b.Copy(StateItem(model.State{Name: "A"})))
	it, err := b.Paste()
	require.NoError(t, err)
	assert.Equal(t, "A", it.State.Name)
}
