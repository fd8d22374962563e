package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coworkai/coworker/pkg/protocol"
	"github.com/coworkai/coworker/pkg/store"
)

type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func errNotFound(what string) error {
	return &httpError{status: http.StatusNotFound, message: what + " not found"}
}

func errBadRequest(message string) error {
	return &httpError{status: http.StatusBadRequest, message: message}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var he *httpError
	if errors.As(err, &he) {
		writeJSON(w, he.status, map[string]string{"detail": he.message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadRequest("invalid request body: " + err.Error())
	}
	return nil
}

// ---- Group CRUD ----

type createGroupRequest struct {
	WorkspaceID    string   `json:"workspace_id"`
	Name           string   `json:"name"`
	MemberAgentIDs []string `json:"member_agent_ids"`
	SupervisorID   string   `json:"supervisor_id"`
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace_id")
	if workspace == "" {
		writeError(w, errBadRequest("workspace_id is required"))
		return
	}
	groups, err := s.groups.ListGroups(workspace)
	if err != nil {
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = []*store.GroupConfig{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkspaceID == "" || req.Name == "" || req.SupervisorID == "" {
		writeError(w, errBadRequest("workspace_id, name, and supervisor_id are required"))
		return
	}
	group, err := s.groups.CreateGroup(req.WorkspaceID, req.Name, req.SupervisorID, req.MemberAgentIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	workspace, _ := req["workspace_id"].(string)
	groupID, _ := req["group_id"].(string)
	if workspace == "" || groupID == "" {
		writeError(w, errBadRequest("workspace_id and group_id are required"))
		return
	}
	delete(req, "workspace_id")
	delete(req, "group_id")

	group, err := s.groups.UpdateGroup(workspace, groupID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace_id")
	groupID := chi.URLParam(r, "groupID")
	if workspace == "" {
		writeError(w, errBadRequest("workspace_id is required"))
		return
	}
	if err := s.groups.DeleteGroup(workspace, groupID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace_id")
	groupID := chi.URLParam(r, "groupID")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	messages, err := s.groups.GetMessages(workspace, groupID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []protocol.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace_id")
	groupID := chi.URLParam(r, "groupID")
	if workspace == "" {
		var body struct {
			WorkspaceID string `json:"workspace_id"`
		}
		if err := decodeBody(r, &body); err == nil {
			workspace = body.WorkspaceID
		}
	}
	if workspace == "" {
		writeError(w, errBadRequest("workspace_id is required"))
		return
	}
	if err := s.groups.ClearMessages(workspace, groupID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
