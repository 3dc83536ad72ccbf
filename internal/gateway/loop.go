package gateway

import "sync"

const defaultLoopQueueSize = 1024

// eventLoop runs posted events one at a time, in posting order, on its own goroutine.
type eventLoop struct {
	events chan func()
	done   chan struct{}

	mu      sync.RWMutex
	stopped bool
}

func newEventLoop(queueSize int) *eventLoop {
	if queueSize <= 0 {
		queueSize = defaultLoopQueueSize
	}

	l := &eventLoop{
		events: make(chan func(), queueSize),
		done:   make(chan struct{}),
	}

	go l.run()

	return l
}

func (l *eventLoop) run() {
	defer close(l.done)

	for event := range l.events {
		event()
	}
}

// post queues event. It must not be called from the loop goroutine itself and
// reports false once the loop has been stopped.
func (l *eventLoop) post(event func()) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.stopped {
		return false
	}

	l.events <- event

	return true
}

// flush blocks until every event posted before the call has run.
func (l *eventLoop) flush() {
	barrier := make(chan struct{})
	if !l.post(func() { close(barrier) }) {
		return
	}

	<-barrier
}

// stop refuses further events, runs the queued ones and waits for the loop to exit.
func (l *eventLoop) stop() {
	l.mu.Lock()
	if !l.stopped {
		l.stopped = true
		close(l.events)
	}
	l.mu.Unlock()

	<-l.done
}
