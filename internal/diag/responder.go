package diag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Responder owns the diagnostic listener and answers requests according to
// the live State.
type Responder struct {
	store  *Store
	logger logrus.FieldLogger
	tracer trace.Tracer

	mu  sync.Mutex
	gen *generation
}

// generation is one started server. Requests accepted by a generation are
// abandoned when its stopping channel is closed.
type generation struct {
	srv      *http.Server
	ln       net.Listener
	stopping chan struct{}
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithLogger sets the logger used for per-request diagnostics.
func WithLogger(l logrus.FieldLogger) ResponderOption {
	return func(r *Responder) {
		r.logger = l
	}
}

// WithTracer sets the tracer used to record request spans.
func WithTracer(t trace.Tracer) ResponderOption {
	return func(r *Responder) {
		r.tracer = t
	}
}

// NewResponder creates a stopped responder reading from store.
func NewResponder(store *Store, opts ...ResponderOption) *Responder {
	quiet := logrus.New()
	quiet.Out = io.Discard

	r := &Responder{
		store:  store,
		logger: quiet,
		tracer: otel.Tracer("webmondiag/diag"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins serving the configured path. When listening is enabled the
// configured address is bound first; a failure is returned as a *BindError
// and leaves the responder stopped with the error flag set.
func (r *Responder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gen != nil {
		return nil
	}

	st := r.store.Load()
	g := r.newGeneration(st.Path)
	if st.ListenEnabled {
		if err := r.listen(g, st.Addr()); err != nil {
			r.store.Update(func(s *State) {
				s.Started = false
				s.Error = true
			})
			return err
		}
	}

	r.gen = g
	r.store.Update(func(s *State) {
		s.Started = true
		if st.ListenEnabled {
			s.Error = false
		}
	})
	r.logger.WithFields(logrus.Fields{"addr": st.Addr(), "path": st.Path, "listening": st.ListenEnabled}).Info("diagnostic endpoint started")
	return nil
}

// Stop closes the listener and every open connection. Requests that are
// suspended or delaying are released without a response.
func (r *Responder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g := r.gen; g != nil {
		r.gen = nil
		close(g.stopping)
		if g.ln != nil {
			g.ln.Close()
		}
		if err := g.srv.Close(); err != nil {
			r.logger.WithError(err).Debug("closing diagnostic server")
		}
		r.logger.Info("diagnostic endpoint stopped")
	}
	r.store.Update(func(s *State) {
		s.Started = false
	})
}

// SyncListener opens or closes the listening socket of a started responder
// to match ListenEnabled. Connections already accepted are kept.
func (r *Responder) SyncListener() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.gen
	if g == nil {
		return nil
	}

	st := r.store.Load()
	switch {
	case st.ListenEnabled && g.ln == nil:
		if err := r.listen(g, st.Addr()); err != nil {
			r.store.Update(func(s *State) {
				s.Error = true
			})
			return err
		}
		r.store.Update(func(s *State) {
			s.Error = false
		})
	case !st.ListenEnabled && g.ln != nil:
		if err := g.ln.Close(); err != nil {
			r.logger.WithError(err).Debug("closing diagnostic listener")
		}
		g.ln = nil
	}
	return nil
}

// Addr returns the address of the open listener, or nil.
func (r *Responder) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gen == nil || r.gen.ln == nil {
		return nil
	}
	return r.gen.ln.Addr()
}

func (r *Responder) newGeneration(path string) *generation {
	g := &generation{stopping: make(chan struct{})}

	router := mux.NewRouter().UseEncodedPath()
	router.Handle(path, r.handler(g)).Methods(http.MethodGet)

	g.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      0, // responses may be held back indefinitely
		IdleTimeout:       120 * time.Second,
	}
	return g
}

func (r *Responder) listen(g *generation, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &BindError{Addr: addr, Err: err}
	}
	g.ln = ln

	go func() {
		err := g.srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			r.logger.WithError(err).Warn("diagnostic listener failed")
		}
	}()
	return nil
}

func (r *Responder) handler(g *generation) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx, span := r.tracer.Start(req.Context(), "diag.request")
		defer span.End()

		arrived := time.Now()
		log := r.logger.WithFields(logrus.Fields{
			"request_id": uuid.NewString(),
			"remote":     req.RemoteAddr,
			"path":       req.URL.Path,
		})

		st, ok := r.await(ctx, g, span)
		if !ok {
			span.AddEvent("abandoned")
			log.WithField("waited", time.Since(arrived)).Debug("request abandoned")
			panic(http.ErrAbortHandler)
		}

		span.SetAttributes(attribute.Int("http.status_code", st.StatusCode))
		if err := writeResponse(w, st.StatusCode, st.EffectiveBody()); err != nil {
			log.WithError(err).Debug("writing response")
		}
		log.WithFields(logrus.Fields{
			"status": st.StatusCode,
			"bytes":  len(st.EffectiveBody()),
			"waited": time.Since(arrived),
		}).Debug("request answered")
	})
}

// await holds a request back while responding is disabled and for the
// configured delay. Only the respond flag releases a suspended request; a
// closed listener does not affect connections already accepted. It returns
// the state to answer with, read after all waiting is done, or false when
// the request must be abandoned.
func (r *Responder) await(ctx context.Context, g *generation, span trace.Span) (State, bool) {
	st, changed := r.store.Watch()
	if !st.RespondEnabled {
		span.AddEvent("suspended")
	}
	for !st.RespondEnabled {
		select {
		case <-changed:
		case <-g.stopping:
			return st, false
		case <-ctx.Done():
			return st, false
		}
		st, changed = r.store.Watch()
	}

	if st.DelayEnabled && st.DelayMs > 0 {
		span.AddEvent("delayed", trace.WithAttributes(attribute.Int("delay_ms", st.DelayMs)))
		t := time.NewTimer(time.Duration(st.DelayMs) * time.Millisecond)
		defer t.Stop()
		select {
		case <-t.C:
		case <-g.stopping:
			return st, false
		case <-ctx.Done():
			return st, false
		}
	}

	select {
	case <-g.stopping:
		return st, false
	default:
	}
	return r.store.Load(), true
}

// writeResponse answers with an arbitrary non-negative status code. Codes
// net/http refuses to send as a final response are written by hand on the
// hijacked connection.
func writeResponse(w http.ResponseWriter, code int, body string) error {
	if code >= 200 && code <= 999 {
		w.WriteHeader(code)
		_, err := io.WriteString(w, body)
		if errors.Is(err, http.ErrBodyNotAllowed) {
			return nil
		}
		return err
	}
	return writeRawResponse(w, code, body)
}

func writeRawResponse(w http.ResponseWriter, code int, body string) error {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return fmt.Errorf("status %d needs a hijackable connection", code)
	}
	conn, buf, err := hj.Hijack()
	if err != nil {
		return fmt.Errorf("hijack connection: %w", err)
	}
	defer conn.Close()

	fmt.Fprintf(buf, "HTTP/1.1 %03d %s\r\n", code, http.StatusText(code))
	fmt.Fprintf(buf, "Content-Type: text/plain; charset=utf-8\r\n")
	fmt.Fprintf(buf, "Content-Length: %d\r\n", len(body))
	fmt.Fprintf(buf, "Connection: close\r\n\r\n")
	buf.WriteString(body)
	return buf.Flush()
}
