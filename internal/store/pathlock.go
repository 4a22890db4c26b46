package store

import "sync"

// pathLocks serializes writers per file path. Each path carries a chain of
// waiters: a new writer parks behind the current tail and runs when its
// predecessor releases, which yields strict FIFO ordering. Readers never
// take the lock; the atomic rename protocol guarantees they observe either
// the old or the new complete file.
type pathLocks struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func newPathLocks() *pathLocks {
	return &pathLocks{tails: make(map[string]chan struct{})}
}

// acquire blocks until this caller holds the write lock for path and
// returns the release function. Release is idempotent.
func (l *pathLocks) acquire(path string) (release func()) {
	l.mu.Lock()
	prev := l.tails[path]
	ch := make(chan struct{})
	l.tails[path] = ch
	l.mu.Unlock()

	if prev != nil {
		<-prev
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(ch)
			l.mu.Lock()
			if l.tails[path] == ch {
				delete(l.tails, path)
			}
			l.mu.Unlock()
		})
	}
}
