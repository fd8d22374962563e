package server

import (
	"net/http"

	"github.com/coworkai/coworker/pkg/protocol"
	"github.com/coworkai/coworker/pkg/stream"
	"github.com/coworkai/coworker/pkg/supervisor"
)

type chatRequest struct {
	WorkspaceID string             `json:"workspace_id"`
	GroupID     string             `json:"group_id"`
	Message     string             `json:"message,omitempty"`
	History     []protocol.Message `json:"history,omitempty"`
}

func (req *chatRequest) validate() error {
	if req.WorkspaceID == "" || req.GroupID == "" {
		return errBadRequest("workspace_id and group_id are required")
	}
	return nil
}

// turnHistory picks the conversation context for a turn: the client's
// history when supplied, otherwise the persisted log.
func (s *Server) turnHistory(req *chatRequest) ([]protocol.Message, error) {
	if len(req.History) > 0 {
		history := make([]protocol.Message, len(req.History))
		for i, m := range req.History {
			m.Role = protocol.NormalizeRole(m.Role)
			history[i] = m
		}
		return history, nil
	}
	return s.groups.GetMessages(req.WorkspaceID, req.GroupID, 100)
}

// handleChat runs exactly one supervisor step and responds with the
// messages appended this turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	unlock := s.lockGroup(req.WorkspaceID, req.GroupID)
	defer unlock()

	a, err := s.assemble(req.WorkspaceID, req.GroupID)
	if err != nil {
		writeError(w, err)
		return
	}
	history, err := s.turnHistory(&req)
	if err != nil {
		writeError(w, err)
		return
	}
	chat, err := s.buildChat(a, req.WorkspaceID, history, stream.Discard)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Message != "" {
		chat.AppendUserMessage(req.Message)
	}

	shouldContinue, stepErr := chat.Step(r.Context())

	appended := chat.TurnMessages()
	response := ""
	if len(appended) > 0 {
		response = appended[len(appended)-1].Content
	}

	status := supervisor.StatusFinish
	if shouldContinue {
		status = supervisor.StatusContinue
	}

	body := map[string]any{
		"response": response,
		"messages": appended,
		"status":   status,
	}
	for _, m := range appended {
		if m.IsPlan && m.PlanData != nil {
			body["current_plan"] = m.PlanData
			break
		}
	}
	if stepErr != nil {
		body["error"] = stepErr.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

// handleChatStream is the SSE variant: the step runs in a producer
// goroutine while the handler drains the event queue to the client.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
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
		history, err := s.turnHistory(&req)
		if err != nil {
			queue.Send(stream.Error(err.Error()))
			return
		}
		chat, err := s.buildChat(a, req.WorkspaceID, history, queue)
		if err != nil {
			queue.Send(stream.Error(err.Error()))
			return
		}

		if req.Message != "" {
			chat.AppendUserMessage(req.Message)
		}

		shouldContinue, stepErr := chat.Step(ctx)
		if stepErr != nil {
			// The engine already emitted the error event.
			return
		}

		status := supervisor.StatusFinish
		if shouldContinue {
			status = supervisor.StatusContinue
		}
		queue.Send(stream.Finish(status))
	}()

	_ = writer.Drain(ctx, queue, supervisor.StatusFinish)
}
