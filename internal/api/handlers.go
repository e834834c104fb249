package api

import (
	"net/http"
	"strconv"

	"github.com/webmondiag/webmondiag/internal/journal"
	"github.com/webmondiag/webmondiag/pkg/types"
)

// handleGetState returns the current endpoint state.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.State().Status())
}

// handlePatchState applies a partial change. An empty change echoes the
// current state.
func (s *Server) handlePatchState(w http.ResponseWriter, r *http.Request) {
	var ch types.Change
	if err := decodeJSON(r, &ch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if ch.IsEmpty() {
		writeJSON(w, http.StatusOK, s.ctrl.State().Status())
		return
	}

	st, err := s.ctrl.Apply(ch)
	if err != nil {
		writeChangeError(w, st, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Status())
}

// handleToggle starts a stopped endpoint or stops a running one.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.StartServer()
	if err != nil {
		writeChangeError(w, st, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.StopServer().Status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Reset().Status())
}

// handleEvents lists journal entries. The session query parameter selects
// a run; "current" is this process.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusNotFound, "event journal is disabled")
		return
	}

	opts := journal.ListOptions{SessionID: r.URL.Query().Get("session")}
	if opts.SessionID == "current" {
		opts.SessionID = s.session
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}

	events, err := s.events.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []*types.Event{}
	}
	writeJSON(w, http.StatusOK, types.EventList{SessionID: s.session, Events: events})
}
