package diag

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreUpdateIsAtomic(t *testing.T) {
	s := NewStore(DefaultState())

	got := s.Update(func(st *State) {
		st.StatusCode = 503
		st.Body = "down"
	})
	assert.Equal(t, 503, got.StatusCode)
	assert.Equal(t, "down", got.Body)
	assert.Equal(t, got, s.Load())
}

func TestStoreWatchWakesEveryWaiter(t *testing.T) {
	s := NewStore(DefaultState())

	const waiters = 8
	var ready, done sync.WaitGroup
	ready.Add(waiters)
	done.Add(waiters)
	seen := make(chan int, waiters)

	for i := 0; i < waiters; i++ {
		go func() {
			defer done.Done()
			_, changed := s.Watch()
			ready.Done()
			<-changed
			seen <- s.Load().StatusCode
		}()
	}

	ready.Wait()
	s.Update(func(st *State) { st.StatusCode = 418 })

	finished := make(chan struct{})
	go func() {
		done.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("waiters were not released")
	}

	close(seen)
	for code := range seen {
		assert.Equal(t, 418, code)
	}
}

func TestStoreWatchAfterUpdate(t *testing.T) {
	s := NewStore(DefaultState())
	_, before := s.Watch()
	s.Update(func(st *State) { st.DelayMs = 10 })

	select {
	case <-before:
	default:
		t.Fatal("superseded version was not signalled")
	}

	st, after := s.Watch()
	require.Equal(t, 10, st.DelayMs)
	select {
	case <-after:
		t.Fatal("current version must not be signalled")
	default:
	}
}

func TestStateDerivedPredicates(t *testing.T) {
	st := DefaultState()
	assert.False(t, st.IsListening())
	assert.False(t, st.IsResponding())

	st.Started = true
	assert.True(t, st.IsListening())
	assert.True(t, st.IsResponding())

	st.RespondEnabled = false
	assert.True(t, st.IsListening())
	assert.False(t, st.IsResponding())

	st.ListenEnabled = false
	st.RespondEnabled = true
	assert.False(t, st.IsListening())
	assert.False(t, st.IsResponding())

	st.Body = "hello"
	assert.Equal(t, "hello", st.EffectiveBody())
	st.EmptyBody = true
	assert.Equal(t, "", st.EffectiveBody())
}

func TestStateStatus(t *testing.T) {
	st := DefaultState()
	st.Started = true
	st.RespondEnabled = false

	status := st.Status()
	assert.Equal(t, "127.0.0.1", status.Hostname)
	assert.Equal(t, uint16(8080), status.Port)
	assert.True(t, status.Listening)
	assert.False(t, status.Responding)
	assert.Equal(t, "127.0.0.1:8080", st.Addr())
}
