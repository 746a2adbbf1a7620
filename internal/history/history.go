// Package history keeps a bounded undo/redo log of committed edits.
package history

import "sync"

// MaxHistory is the default capacity of each stack.
const MaxHistory = 50

// Manager holds two stacks of entries. Pushing clears the redo stack and
// either stack drops its oldest entry once it exceeds the limit.
type Manager[T any] struct {
	mu    sync.Mutex
	limit int
	undo  []T
	redo  []T
}

// New returns a manager capped at limit entries per stack. A non-positive
// limit selects MaxHistory.
func New[T any](limit int) *Manager[T] {
	if limit <= 0 {
		limit = MaxHistory
	}
	return &Manager[T]{limit: limit}
}

func (m *Manager[T]) Limit() int { return m.limit }

func (m *Manager[T]) push(stack []T, entry T) []T {
	stack = append(stack, entry)
	if over := len(stack) - m.limit; over > 0 {
		clear(stack[:over])
		stack = stack[over:]
	}
	return stack
}

// Push records a committed edit.
func (m *Manager[T]) Push(entry T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = m.push(m.undo, entry)
	clear(m.redo)
	m.redo = m.redo[:0]
}

// Undo pops the latest entry and hands it to revert. On success the entry
// moves to the redo stack; on error it stays on the undo stack. It reports
// false when there is nothing to undo.
func (m *Manager[T]) Undo(revert func(T) error) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return false, nil
	}
	entry := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	if err := revert(entry); err != nil {
		m.undo = append(m.undo, entry)
		return true, err
	}
	m.redo = m.push(m.redo, entry)
	return true, nil
}

// Redo is the mirror of Undo.
func (m *Manager[T]) Redo(apply func(T) error) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redo) == 0 {
		return false, nil
	}
	entry := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	if err := apply(entry); err != nil {
		m.redo = append(m.redo, entry)
		return true, err
	}
	m.undo = m.push(m.undo, entry)
	return true, nil
}

func (m *Manager[T]) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

func (m *Manager[T]) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Len returns the sizes of the undo and redo stacks.
func (m *Manager[T]) Len() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}

// Peek returns the entry the next Undo would revert.
func (m *Manager[T]) Peek() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if len(m.undo) == 0 {
		return zero, false
	}
	return m.undo[len(m.undo)-1], true
}

func (m *Manager[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo, m.redo = nil, nil
}
