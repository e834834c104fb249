package diag

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freePort reserves an ephemeral loopback port and releases it again.
func freePort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return uint16(port)
}

func startResponder(t *testing.T, mutate func(*State)) (*Store, *Responder, string) {
	t.Helper()
	st := DefaultState()
	st.Port = 0
	if mutate != nil {
		mutate(&st)
	}
	store := NewStore(st)
	r := NewResponder(store)
	require.NoError(t, r.Start())
	t.Cleanup(r.Stop)

	base := ""
	if addr := r.Addr(); addr != nil {
		base = "http://" + addr.String()
	}
	return store, r, base
}

func get(t *testing.T, url string) (int, string, error) {
	t.Helper()
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), err
}

func TestResponderAnswers(t *testing.T) {
	_, _, base := startResponder(t, func(s *State) {
		s.StatusCode = 201
		s.Body = "hello"
	})

	code, body, err := get(t, base+"/")
	require.NoError(t, err)
	assert.Equal(t, 201, code)
	assert.Equal(t, "hello", body)
}

func TestResponderEmptyBody(t *testing.T) {
	_, _, base := startResponder(t, func(s *State) {
		s.Body = "hidden"
		s.EmptyBody = true
	})

	code, body, err := get(t, base+"/")
	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Empty(t, body)
}

func TestResponderRouting(t *testing.T) {
	_, _, base := startResponder(t, func(s *State) { s.Path = "/health" })

	code, _, err := get(t, base+"/health")
	require.NoError(t, err)
	assert.Equal(t, 200, code)

	code, _, err = get(t, base+"/other")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)

	resp, err := http.Post(base+"/health", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestResponderUnusualStatusCodes(t *testing.T) {
	store, _, base := startResponder(t, nil)

	for _, code := range []int{0, 42, 299, 999} {
		store.Update(func(s *State) {
			s.StatusCode = code
			s.Body = "x"
		})
		got, body, err := get(t, base+"/")
		require.NoError(t, err, "code %d", code)
		assert.Equal(t, code, got)
		assert.Equal(t, "x", body)
	}
}

func TestResponderFourDigitStatusCode(t *testing.T) {
	store, _, base := startResponder(t, nil)
	store.Update(func(s *State) { s.StatusCode = 1234 })

	conn, err := net.Dial("tcp", strings.TrimPrefix(base, "http://"))
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	_, err = fmt.Fprintf(conn, "GET / HTTP/1.1\r\nHost: test\r\n\r\n")
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "HTTP/1.1 1234"), line)
}

func TestResponderBroadcastRelease(t *testing.T) {
	store, _, base := startResponder(t, func(s *State) { s.RespondEnabled = false })

	const n = 5
	var wg sync.WaitGroup
	codes := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, _, err := get(t, base+"/")
			if err != nil {
				codes <- -1
				return
			}
			codes <- code
		}()
	}

	time.Sleep(300 * time.Millisecond)
	assert.Len(t, codes, 0, "requests must be held while responding is off")

	store.Update(func(s *State) {
		s.StatusCode = 202
		s.RespondEnabled = true
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("suspended requests were not released")
	}

	close(codes)
	for code := range codes {
		assert.Equal(t, 202, code)
	}
}

func TestResponderDelayReadsValuesAtCompletion(t *testing.T) {
	store, _, base := startResponder(t, func(s *State) {
		s.DelayEnabled = true
		s.DelayMs = 500
	})

	type result struct {
		code int
		body string
		err  error
	}
	res := make(chan result, 1)
	start := time.Now()
	go func() {
		code, body, err := get(t, base+"/")
		res <- result{code, body, err}
	}()

	time.Sleep(100 * time.Millisecond)
	store.Update(func(s *State) {
		s.StatusCode = 503
		s.Body = "late"
	})

	r := <-res
	require.NoError(t, r.err)
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 503, r.code)
	assert.Equal(t, "late", r.body)
}

func TestResponderStopAbandonsWaiters(t *testing.T) {
	_, r, base := startResponder(t, func(s *State) { s.RespondEnabled = false })

	errs := make(chan error, 1)
	go func() {
		_, _, err := get(t, base+"/")
		errs <- err
	}()

	time.Sleep(200 * time.Millisecond)
	r.Stop()

	select {
	case err := <-errs:
		assert.Error(t, err, "abandoned request must not get a response")
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not release the suspended request")
	}
	r.Stop()
}

func TestResponderStopAbandonsDelayedRequest(t *testing.T) {
	_, r, base := startResponder(t, func(s *State) {
		s.DelayEnabled = true
		s.DelayMs = 10000
	})

	errs := make(chan error, 1)
	go func() {
		_, _, err := get(t, base+"/")
		errs <- err
	}()

	time.Sleep(200 * time.Millisecond)
	stopped := time.Now()
	r.Stop()

	select {
	case err := <-errs:
		assert.Error(t, err, "abandoned request must not get a response")
		assert.Less(t, time.Since(stopped), 2*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not release the delayed request")
	}
}

func TestResponderRespondReleasesWithListenOff(t *testing.T) {
	store, r, base := startResponder(t, func(s *State) { s.RespondEnabled = false })
	coord := NewCoordinator(store, r, nil, nil)

	type result struct {
		code int
		err  error
	}
	res := make(chan result, 1)
	go func() {
		code, _, err := get(t, base+"/")
		res <- result{code, err}
	}()

	time.Sleep(300 * time.Millisecond)
	_, err := coord.SetListenEnabled(false)
	require.NoError(t, err)
	require.Nil(t, r.Addr())
	_, err = coord.SetRespondEnabled(true)
	require.NoError(t, err)

	select {
	case got := <-res:
		require.NoError(t, got.err)
		assert.Equal(t, 200, got.code)
	case <-time.After(5 * time.Second):
		t.Fatal("suspended request not released after responding was enabled")
	}
}

func TestIdentityRestartAbandonsSuspended(t *testing.T) {
	store, r, base := startResponder(t, func(s *State) { s.RespondEnabled = false })
	coord := NewCoordinator(store, r, nil, nil)

	errs := make(chan error, 1)
	go func() {
		_, _, err := get(t, base+"/")
		errs <- err
	}()

	time.Sleep(200 * time.Millisecond)
	st, err := coord.SetPath("/moved")
	require.NoError(t, err)
	assert.True(t, st.Started)

	select {
	case err := <-errs:
		assert.Error(t, err, "request of the stopped generation must not get a response")
	case <-time.After(5 * time.Second):
		t.Fatal("restart did not release the suspended request")
	}

	_, err = coord.SetRespondEnabled(true)
	require.NoError(t, err)
	code, _, err := get(t, "http://"+r.Addr().String()+"/moved")
	require.NoError(t, err)
	assert.Equal(t, 200, code)
}

func TestResponderListenDisabled(t *testing.T) {
	port := freePort(t)
	store, r, _ := startResponder(t, func(s *State) {
		s.Port = port
		s.ListenEnabled = false
	})

	st := store.Load()
	assert.True(t, st.Started)
	assert.False(t, st.IsListening())
	assert.Nil(t, r.Addr())

	addr := net.JoinHostPort("127.0.0.1", fmt.Sprint(port))
	_, err := net.DialTimeout("tcp", addr, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.ECONNREFUSED), "%v", err)

	store.Update(func(s *State) { s.ListenEnabled = true })
	require.NoError(t, r.SyncListener())
	code, _, err := get(t, "http://"+addr+"/")
	require.NoError(t, err)
	assert.Equal(t, 200, code)

	store.Update(func(s *State) { s.ListenEnabled = false })
	require.NoError(t, r.SyncListener())
	_, err = net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)
}

func TestResponderBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	st := DefaultState()
	st.Port = uint16(taken.Addr().(*net.TCPAddr).Port)
	store := NewStore(st)
	r := NewResponder(store)

	err = r.Start()
	var berr *BindError
	require.True(t, errors.As(err, &berr))
	assert.False(t, store.Load().Started)
	assert.True(t, store.Load().Error)
}

func TestEndToEndPortChange(t *testing.T) {
	portA, portB := freePort(t), freePort(t)
	st := DefaultState()
	st.Port = portA
	store := NewStore(st)
	r := NewResponder(store)
	log := &recordingLog{}
	coord := NewCoordinator(store, r, nil, log)
	t.Cleanup(func() { coord.StopServer() })

	_, err := coord.StartServer()
	require.NoError(t, err)

	urlA := fmt.Sprintf("http://127.0.0.1:%d", portA)
	code, _, err := get(t, urlA+"/")
	require.NoError(t, err)
	assert.Equal(t, 200, code)
	code, _, err = get(t, urlA+"/missing")
	require.NoError(t, err)
	assert.Equal(t, 404, code)

	st, err = coord.SetPort(portB)
	require.NoError(t, err)
	assert.True(t, st.Started)

	code, _, err = get(t, fmt.Sprintf("http://127.0.0.1:%d/", portB))
	require.NoError(t, err)
	assert.Equal(t, 200, code)

	_, err = net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", portA), time.Second)
	assert.Error(t, err, "old port must refuse connections")
}
