// Package agent holds agent configuration, persona snippets, and the
// bounded tool-loop runner that executes one agent turn.
package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Config describes one agent as stored on disk. The system prompt doubles
// as the description shown to peer agents during planning.
type Config struct {
	AgentID      string   `json:"agent_id"`
	Name         string   `json:"name"`
	SystemPrompt string   `json:"system_prompt"`
	ProviderID   string   `json:"provider_id"`
	ModelName    string   `json:"model_name"`
	Tools        []string `json:"tools,omitempty"`
	PersonaMode  string   `json:"persona_mode,omitempty"`

	// Supervisor-only overrides, used when this agent supervises a group.
	SupervisorPrompt         string `json:"supervisor_prompt,omitempty"`
	WorkflowSupervisorPrompt string `json:"workflow_supervisor_prompt,omitempty"`
}

// Store reads and writes agent configs laid out as
// <root>/<workspace>/<agent_id>/config.json.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) configPath(workspace, agentID string) string {
	return filepath.Join(s.root, workspace, agentID, "config.json")
}

// Get loads one agent config.
func (s *Store) Get(workspace, agentID string) (*Config, error) {
	data, err := os.ReadFile(s.configPath(workspace, agentID))
	if err != nil {
		return nil, fmt.Errorf("agent: load %s: %w", agentID, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("agent: parse config for %s: %w", agentID, err)
	}
	if cfg.AgentID == "" {
		cfg.AgentID = agentID
	}
	return &cfg, nil
}

// Save writes one agent config, creating the agent directory if needed.
func (s *Store) Save(workspace string, cfg *Config) error {
	if cfg.AgentID == "" {
		return fmt.Errorf("agent: config without agent_id")
	}
	dir := filepath.Join(s.root, workspace, cfg.AgentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("agent: create dir for %s: %w", cfg.AgentID, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, "config.json"), data)
}

// List returns all agent configs in a workspace, sorted by agent id.
// Directories without a readable config are skipped.
func (s *Store) List(workspace string) ([]*Config, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("agent: list workspace %s: %w", workspace, err)
	}

	var out []*Config
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		cfg, err := s.Get(workspace, e.Name())
		if err != nil {
			continue
		}
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

// writeFileAtomic writes via a temp file and rename so a crashed write never
// leaves a truncated config.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
