package editor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// WriteTimeout bounds every gateway call made by the writer.
const WriteTimeout = 10 * time.Second

// ErrWriterClosed is returned for writes issued after the session closed.
var ErrWriterClosed = errors.New("writer closed")

type job struct {
	desc    string
	id      string
	run     func(ctx context.Context) error
	barrier chan struct{}
}

// writer runs gateway writes one at a time in submission order on a
// background goroutine. The queue is unbounded so enqueueing never blocks
// the caller.
type writer struct {
	timeout time.Duration
	onError func(j job, err error)

	mu      sync.Mutex
	queue   []job
	closed  bool
	wake    chan struct{}
	closing chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newWriter(timeout time.Duration, onError func(job, error)) *writer {
	if timeout <= 0 {
		timeout = WriteTimeout
	}
	w := &writer{
		timeout: timeout,
		onError: onError,
		wake:    make(chan struct{}, 1),
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *writer) enqueue(j job) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	w.queue = append(w.queue, j)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

func (w *writer) next() (job, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return job{}, false
	}
	j := w.queue[0]
	w.queue[0] = job{}
	w.queue = w.queue[1:]
	return j, true
}

func (w *writer) loop() {
	defer close(w.stopped)
	for {
		j, ok := w.next()
		if !ok {
			select {
			case <-w.wake:
				continue
			case <-w.closing:
				// drain anything queued between the last check and close
				if j, ok = w.next(); !ok {
					return
				}
			}
		}
		w.do(j)
	}
}

func (w *writer) do(j job) {
	if j.barrier != nil {
		close(j.barrier)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := j.run(ctx); err != nil && w.onError != nil {
		w.onError(j, err)
	}
}

// flush waits until every write queued before the call has finished.
func (w *writer) flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := w.enqueue(job{barrier: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains the queue and stops the goroutine.
func (w *writer) close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.closing)
	})
	<-w.stopped
}
