package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/webmondiag/webmondiag/pkg/types"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:8090/")
	if c.baseURL != "http://localhost:8090" {
		t.Errorf("expected baseURL without trailing slash, got %s", c.baseURL)
	}

	c = New("127.0.0.1:8090")
	if c.baseURL != "http://127.0.0.1:8090" {
		t.Errorf("expected http scheme to be added, got %s", c.baseURL)
	}
}

func TestWithTimeout(t *testing.T) {
	c := New("http://localhost:8090", WithTimeout(60*time.Second))
	if c.httpClient.Timeout != 60*time.Second {
		t.Errorf("expected timeout 60s, got %s", c.httpClient.Timeout)
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("expected path /health, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	if err := New(server.URL).Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestApply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/state" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var ch types.Change
		if err := json.NewDecoder(r.Body).Decode(&ch); err != nil {
			t.Fatal(err)
		}
		if ch.StatusCode == nil || *ch.StatusCode != 503 || ch.Path != nil {
			t.Errorf("unexpected change %+v", ch)
		}
		json.NewEncoder(w).Encode(types.Status{StatusCode: *ch.StatusCode})
	}))
	defer server.Close()

	code := 503
	st, err := New(server.URL).Apply(context.Background(), types.Change{StatusCode: &code})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if st.StatusCode != 503 {
		t.Errorf("status code = %d", st.StatusCode)
	}
}

func TestApplyRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(types.ErrorResponse{
			Error: `invalid hostname "bad!": not a valid host name or address`,
			State: &types.Status{Hostname: "127.0.0.1"},
		})
	}))
	defer server.Close()

	host := "bad!"
	_, err := New(server.URL).Apply(context.Background(), types.Change{Hostname: &host})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if !apiErr.IsBadRequest() {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.State == nil || apiErr.State.Hostname != "127.0.0.1" {
		t.Errorf("state = %+v", apiErr.State)
	}
}

func TestLifecycleRoutes(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		json.NewEncoder(w).Encode(types.Status{})
	}))
	defer server.Close()

	c := New(server.URL)
	ctx := context.Background()
	c.Toggle(ctx)
	c.Stop(ctx)
	c.Reset(ctx)
	c.State(ctx)

	want := []string{"POST /server/toggle", "POST /server/stop", "POST /reset", "GET /state"}
	if len(got) != len(want) {
		t.Fatalf("requests = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("session") != "current" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(types.EventList{
			SessionID: "abc",
			Events:    []*types.Event{{ID: 1, Text: "Port set to 8080"}},
		})
	}))
	defer server.Close()

	list, err := New(server.URL).Events(context.Background(), "current", 5)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if list.SessionID != "abc" || len(list.Events) != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestPlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "404 page not found\n")
	}))
	defer server.Close()

	_, err := New(server.URL).State(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsNotFound() {
		t.Fatalf("expected not found, got %v", err)
	}
	if apiErr.Message != "404 page not found" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestConnectionError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url, WithTimeout(2*time.Second)).State(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectionError, got %T: %v", err, err)
	}
}
