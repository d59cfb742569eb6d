package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/acpthread/pkg/types"
)

// ThreadResponse is the summary document for GET /thread.
type ThreadResponse struct {
	SessionID        string   `json:"sessionId"`
	Title            string   `json:"title"`
	Tags             []string `json:"tags,omitempty"`
	ParentThreadID   string   `json:"parentThreadId,omitempty"`
	State            string   `json:"state"`
	MessageCount     int      `json:"messageCount"`
	CurrentModeID    string   `json:"currentModeId,omitempty"`
	InPlanMode       bool     `json:"inPlanMode"`
	PlanPresented    bool     `json:"planPresented"`
	CurrentlyCalling bool     `json:"currentlyCalling"`
	PlanProgress     string   `json:"planProgress,omitempty"`
}

// getThread returns the thread summary.
func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ThreadResponse{
		SessionID:        s.thread.SessionID(),
		Title:            s.thread.Title(),
		Tags:             s.thread.Tags(),
		ParentThreadID:   s.thread.ParentThreadID(),
		State:            string(s.thread.State()),
		MessageCount:     s.thread.MessageCount(),
		CurrentModeID:    s.thread.CurrentModeID(),
		InPlanMode:       s.thread.InPlanMode(),
		PlanPresented:    s.thread.PlanPresented(),
		CurrentlyCalling: s.thread.CurrentlyCalling(),
		PlanProgress:     s.thread.Plan().Progress(),
	})
}

// getState returns the lifecycle state only.
func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.thread.State())})
}

// getMessages returns the full message history.
func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.thread.Messages())
}

// getMessage returns a single message by id.
func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "messageID")
	for _, msg := range s.thread.Messages() {
		if msg.ID == id {
			writeJSON(w, http.StatusOK, msg)
			return
		}
	}
	writeError(w, http.StatusNotFound, ErrCodeNotFound, "message not found")
}

// PlanResponse is the document for GET /thread/plan.
type PlanResponse struct {
	Todos    []types.TodoItem `json:"todos"`
	Progress string           `json:"progress"`
}

// getPlan returns the current plan with progress stats.
func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	tracker := s.thread.Plan()
	writeJSON(w, http.StatusOK, PlanResponse{
		Todos:    tracker.Todos(),
		Progress: tracker.Progress(),
	})
}

// getPlanMarkdown returns the plan rendered as a markdown checklist.
func (s *Server) getPlanMarkdown(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.thread.Plan().Markdown()))
}

// ModesResponse is the document for GET /thread/mode.
type ModesResponse struct {
	Modes         []types.Mode `json:"modes"`
	CurrentModeID string       `json:"currentModeId"`
}

// getModes returns the advertised modes and the current selection.
func (s *Server) getModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModesResponse{
		Modes:         s.thread.Modes(),
		CurrentModeID: s.thread.CurrentModeID(),
	})
}

// getConfigOptions returns the advertised config options.
func (s *Server) getConfigOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.thread.ConfigOptions())
}

// listCommands returns the agent's advertised slash commands.
func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	reg := s.thread.Commands()
	if reg == nil {
		writeJSON(w, http.StatusOK, []types.CommandInfo{})
		return
	}
	writeJSON(w, http.StatusOK, reg.List())
}

// PromptRequest is the body for POST /thread/prompt.
type PromptRequest struct {
	Text string `json:"text"`
}

// sendPrompt submits a user turn. The response acknowledges acceptance;
// the turn outcome arrives on the event stream.
func (s *Server) sendPrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "text required")
		return
	}

	if err := s.thread.SendPrompt(req.Text, nil); err != nil {
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// cancelTurn cancels the in-flight turn.
func (s *Server) cancelTurn(w http.ResponseWriter, r *http.Request) {
	if err := s.thread.Cancel(); err != nil {
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	}
	writeSuccess(w)
}

// ModeRequest is the body for POST /thread/mode.
type ModeRequest struct {
	ModeID string `json:"modeId"`
}

// setMode switches the session mode and waits for the round-trip.
func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ModeID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "modeId required")
		return
	}

	done := make(chan error, 1)
	s.thread.SetMode(req.ModeID, func(err error) { done <- err })

	select {
	case <-r.Context().Done():
		return
	case err := <-done:
		if err != nil {
			writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
			return
		}
		writeSuccess(w)
	}
}

// cycleMode advances to the next advertised mode.
func (s *Server) cycleMode(w http.ResponseWriter, r *http.Request) {
	type result struct {
		mode *types.Mode
		err  error
	}
	done := make(chan result, 1)
	s.thread.CycleMode(func(mode *types.Mode, err error) { done <- result{mode, err} })

	select {
	case <-r.Context().Done():
		return
	case res := <-done:
		if res.err != nil {
			writeError(w, http.StatusConflict, ErrCodeConflict, res.err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res.mode)
	}
}

// ConfigOptionRequest is the body for POST /thread/config-option.
type ConfigOptionRequest struct {
	OptionID string `json:"optionId"`
	ValueID  string `json:"valueId"`
}

// setConfigOption sets a session config option.
func (s *Server) setConfigOption(w http.ResponseWriter, r *http.Request) {
	var req ConfigOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OptionID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "optionId required")
		return
	}

	done := make(chan error, 1)
	s.thread.SetConfigOption(req.OptionID, req.ValueID, func(err error) { done <- err })

	select {
	case <-r.Context().Done():
		return
	case err := <-done:
		if err != nil {
			writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
			return
		}
		writeSuccess(w)
	}
}

// listPermissions returns the ids of unanswered approval requests.
func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"pending": s.thread.PendingPermissions()})
}

// PermissionReply is the body for POST /thread/permissions/{permissionID}.
type PermissionReply struct {
	OptionID  string `json:"optionId"`
	Cancelled bool   `json:"cancelled"`
}

// respondPermission answers a pending approval request.
func (s *Server) respondPermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "permissionID")

	var reply PermissionReply
	if err := json.NewDecoder(r.Body).Decode(&reply); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	if !s.thread.RespondPermission(id, reply.OptionID, reply.Cancelled) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no pending request with that id")
		return
	}
	writeSuccess(w)
}

// listChanges returns the tracked file changes in first-touched order.
func (s *Server) listChanges(w http.ResponseWriter, r *http.Request) {
	if s.changes == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "change tracking disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.changes.Changes())
}

// getDiff renders the unified diff for one tracked file.
func (s *Server) getDiff(w http.ResponseWriter, r *http.Request) {
	if s.changes == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "change tracking disabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "path required")
		return
	}
	diff := s.changes.Unified(path)
	if diff == "" {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no tracked change for path")
		return
	}
	w.Header().Set("Content-Type", "text/x-diff; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(diff))
}
