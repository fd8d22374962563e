package server

import (
	"encoding/json"
	"net/http"

	"github.com/coworkai/coworker/pkg/protocol"
	"github.com/coworkai/coworker/pkg/stream"
	"github.com/coworkai/coworker/pkg/supervisor"
	"github.com/coworkai/coworker/pkg/workflow"
)

type planRequest struct {
	WorkspaceID string `json:"workspace_id"`
	GroupID     string `json:"group_id"`
	UserRequest string `json:"user_request"`
}

type executeRequest struct {
	WorkspaceID string             `json:"workspace_id"`
	GroupID     string             `json:"group_id"`
	Workflow    json.RawMessage    `json:"workflow"`
	History     []protocol.Message `json:"history,omitempty"`
	UserInput   string             `json:"user_input,omitempty"`
}

// handlePlan generates a complete workflow document through the supervisor.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkspaceID == "" || req.GroupID == "" {
		writeError(w, errBadRequest("workspace_id and group_id are required"))
		return
	}

	a, err := s.assemble(req.WorkspaceID, req.GroupID)
	if err != nil {
		writeError(w, err)
		return
	}

	roster := make([]supervisor.RosterEntry, 0, len(a.memberOrder))
	for _, name := range a.memberOrder {
		roster = append(roster, supervisor.RosterEntry{Name: name, Role: a.descriptions[name]})
	}

	planner := workflow.NewPlanner(a.supervisorCfg, a.group.WorkflowSupervisorPrompt, s.gateway)
	plan, err := planner.Generate(r.Context(), roster, req.UserRequest)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow": plan,
		"status":   "success",
	})
}

// handleExecute runs a pre-generated workflow with SSE streaming.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkspaceID == "" || req.GroupID == "" {
		writeError(w, errBadRequest("workspace_id and group_id are required"))
		return
	}

	plan, err := workflow.ParsePlan(req.Workflow)
	if err != nil {
		writeError(w, errBadRequest(err.Error()))
		return
	}

	// Client history may carry legacy "agent" roles; normalize like the
	// chat path does so workers see those entries in context.
	history := make([]protocol.Message, len(req.History))
	for i, m := range req.History {
		m.Role = protocol.NormalizeRole(m.Role)
		history[i] = m
	}

	ctx := r.Context()
	queue := stream.NewQueue()
	writer := stream.NewSSEWriter(w)

	go func() {
		defer queue.Close()

		unlock := s.lockGroup(req.WorkspaceID, req.GroupID)
		defer unlock()

		a, err := s.assemble(req.WorkspaceID, req.GroupID)
		if err != nil {
			queue.Send(stream.Error(err.Error()))
			return
		}

		userInput := req.UserInput
		if userInput == "" {
			// The original request is the first user message in context.
			for _, m := range history {
				if m.Role == protocol.RoleUser {
					userInput = m.Content
					break
				}
			}
		}

		executor := workflow.NewExecutor(
			req.WorkspaceID, req.GroupID, plan, a.members, history, queue, s.groups)
		if err := executor.Execute(ctx, userInput); err != nil {
			// Executor already emitted the error event for plan-level
			// failures; runner errors carried their own.
			return
		}
		queue.Send(stream.Finish(supervisor.StatusFinish))
	}()

	_ = writer.Drain(ctx, queue, supervisor.StatusFinish)
}
