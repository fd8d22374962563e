// Package store persists group configurations and per-group message logs as
// JSON documents under the workspace directory. Groups live in
// _group_chats.json; each group's log lives in _group_messages_<id>.json.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/coworkai/coworker/pkg/protocol"
)

// GroupConfig is one group's stored document. ChatState carries the
// serialized plan state so turns can resume across restarts.
type GroupConfig struct {
	ID           string   `json:"id" mapstructure:"id"`
	Name         string   `json:"name" mapstructure:"name"`
	SupervisorID string   `json:"supervisor_id" mapstructure:"supervisor_id"`
	Members      []string `json:"members" mapstructure:"members"`

	SupervisorPrompt         string `json:"supervisor_prompt,omitempty" mapstructure:"supervisor_prompt"`
	WorkflowSupervisorPrompt string `json:"workflow_supervisor_prompt,omitempty" mapstructure:"workflow_supervisor_prompt"`

	ChatState map[string]any `json:"chat_state,omitempty" mapstructure:"chat_state"`

	CreatedAt time.Time `json:"created_at,omitempty" mapstructure:"-"`
}

// GroupStore reads and writes the group documents of a data root. Writes
// are whole-document replacements guarded by a process-wide mutex; the
// engine additionally serializes turns per group.
type GroupStore struct {
	root string
	mu   sync.Mutex
}

func NewGroupStore(root string) *GroupStore {
	return &GroupStore{root: root}
}

func (s *GroupStore) groupsPath(workspace string) string {
	return filepath.Join(s.root, workspace, "_group_chats.json")
}

func (s *GroupStore) messagesPath(workspace, groupID string) string {
	return filepath.Join(s.root, workspace, "_group_messages_"+groupID+".json")
}

func (s *GroupStore) loadGroups(workspace string) ([]*GroupConfig, error) {
	data, err := os.ReadFile(s.groupsPath(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read groups: %w", err)
	}
	var groups []*GroupConfig
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("store: parse groups: %w", err)
	}
	return groups, nil
}

func (s *GroupStore) saveGroups(workspace string, groups []*GroupConfig) error {
	dir := filepath.Join(s.root, workspace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create workspace dir: %w", err)
	}
	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.groupsPath(workspace), data)
}

// ListGroups returns all groups in a workspace.
func (s *GroupStore) ListGroups(workspace string) ([]*GroupConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadGroups(workspace)
}

// GetGroup returns one group by id, or nil when absent.
func (s *GroupStore) GetGroup(workspace, groupID string) (*GroupConfig, error) {
	groups, err := s.ListGroups(workspace)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.ID == groupID {
			return g, nil
		}
	}
	return nil, nil
}

// CreateGroup appends a new group document and returns it.
func (s *GroupStore) CreateGroup(workspace, name, supervisorID string, memberIDs []string) (*GroupConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups, err := s.loadGroups(workspace)
	if err != nil {
		return nil, err
	}

	slug := strings.ReplaceAll(strings.ToLower(name), " ", "_")
	group := &GroupConfig{
		ID:           fmt.Sprintf("group_%s_%s", slug, uuid.NewString()[:8]),
		Name:         name,
		SupervisorID: supervisorID,
		Members:      memberIDs,
		CreatedAt:    time.Now(),
	}
	groups = append(groups, group)
	if err := s.saveGroups(workspace, groups); err != nil {
		return nil, err
	}
	return group, nil
}

// UpdateGroup applies a partial document onto a group. The id field is
// never overwritten; chat_state replaces wholesale when present.
func (s *GroupStore) UpdateGroup(workspace, groupID string, updates map[string]any) (*GroupConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups, err := s.loadGroups(workspace)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.ID != groupID {
			continue
		}
		delete(updates, "id")
		if err := mapstructure.Decode(updates, g); err != nil {
			return nil, fmt.Errorf("store: apply group update: %w", err)
		}
		if err := s.saveGroups(workspace, groups); err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("store: group %s not found", groupID)
}

// DeleteGroup removes the group document and its message log.
func (s *GroupStore) DeleteGroup(workspace, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups, err := s.loadGroups(workspace)
	if err != nil {
		return err
	}
	kept := groups[:0]
	for _, g := range groups {
		if g.ID != groupID {
			kept = append(kept, g)
		}
	}
	if err := s.saveGroups(workspace, kept); err != nil {
		return err
	}
	if err := os.Remove(s.messagesPath(workspace, groupID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove message log: %w", err)
	}
	return nil
}

func (s *GroupStore) loadMessages(workspace, groupID string) ([]protocol.Message, error) {
	data, err := os.ReadFile(s.messagesPath(workspace, groupID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read messages: %w", err)
	}
	var messages []protocol.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("store: parse messages: %w", err)
	}
	for i := range messages {
		messages[i].Role = protocol.NormalizeRole(messages[i].Role)
	}
	return messages, nil
}

// AddMessage appends one message to the group's log. Legacy "agent" roles
// are normalized to assistant before persisting.
func (s *GroupStore) AddMessage(workspace, groupID string, msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.loadMessages(workspace, groupID)
	if err != nil {
		return err
	}
	msg.Role = protocol.NormalizeRole(msg.Role)
	msg.ToolCalls = nil
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	messages = append(messages, msg)

	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(s.root, workspace), 0o755); err != nil {
		return err
	}
	return writeFileAtomic(s.messagesPath(workspace, groupID), data)
}

// GetMessages returns the latest limit messages (all when limit <= 0).
func (s *GroupStore) GetMessages(workspace, groupID string, limit int) ([]protocol.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.loadMessages(workspace, groupID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// ClearMessages deletes the group's log file, implicitly resetting any
// downstream resumption.
func (s *GroupStore) ClearMessages(workspace, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.messagesPath(workspace, groupID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: clear messages: %w", err)
	}
	return nil
}

// SaveChatState persists the plan state via whole-document replacement on
// the group config.
func (s *GroupStore) SaveChatState(workspace, groupID string, state map[string]any) error {
	_, err := s.UpdateGroup(workspace, groupID, map[string]any{"chat_state": state})
	return err
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
