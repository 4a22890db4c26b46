package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func timeout(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(2 * time.Second)
}

func TestPathLock_SerializesWriters(t *testing.T) {
	locks := newPathLocks()

	const writers = 32
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.acquire("data/chunks/doc.json")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, writers, counter)
}

func TestPathLock_IndependentPathsDoNotBlock(t *testing.T) {
	locks := newPathLocks()

	releaseA := locks.acquire("a.json")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release := locks.acquire("b.json")
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-timeout(t):
		t.Fatal("lock on a.json blocked b.json")
	}
}

func TestPathLock_ReleaseIsIdempotent(t *testing.T) {
	locks := newPathLocks()

	release := locks.acquire("x.json")
	release()
	release() // second call must not panic or corrupt the chain

	done := make(chan struct{})
	go func() {
		r := locks.acquire("x.json")
		r()
		close(done)
	}()

	select {
	case <-done:
	case <-timeout(t):
		t.Fatal("lock not released")
	}
}
