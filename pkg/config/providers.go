package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Provider types understood by the gateway.
const (
	ProviderTypeOpenAI           = "openai"
	ProviderTypeOpenAICompatible = "openai_compatible"
	ProviderTypeAnthropic        = "anthropic"
	ProviderTypeGemini           = "gemini"
)

// ProviderConfig describes one configured model endpoint. The document is
// user-editable; the core treats it as the single source of provider truth.
type ProviderConfig struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Models  []string `json:"models"`
	BaseURL string   `json:"base_url,omitempty"`

	// APIKeyEnv names the environment variable carrying the credential.
	// A value that already looks like a literal key is used as-is, so
	// exported documents keep working, but the intent is indirection:
	// the document never has to embed secrets.
	APIKeyEnv string `json:"api_key_env,omitempty"`

	// IsBuiltin marks system-provided entries the UI must not delete.
	IsBuiltin bool `json:"is_builtin,omitempty"`

	// Timeout in seconds for a single generate call. Zero means the
	// gateway default (320 s; long generations are expected).
	Timeout int `json:"timeout,omitempty"`
}

// IsOpenRouter reports whether this provider routes through OpenRouter,
// which requires identifying headers on every request.
func (p *ProviderConfig) IsOpenRouter() bool {
	return strings.Contains(p.BaseURL, "openrouter.ai")
}

// ResolveAPIKey returns the credential for this provider. Literal keys
// (sk-... or long opaque strings) pass through; anything else is treated as
// an environment variable name.
func (p *ProviderConfig) ResolveAPIKey() string {
	ref := p.APIKeyEnv
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "sk-") || len(ref) > 40 {
		return ref
	}
	if v := os.Getenv(ref); v != "" {
		return v
	}
	return ""
}

type providerDocument struct {
	Providers []ProviderConfig `json:"providers"`
}

// ProviderStore serves the provider document and keeps it fresh via
// fsnotify. Reads are lock-free copies; a watch failure degrades to
// load-at-construction.
type ProviderStore struct {
	path string

	mu        sync.RWMutex
	providers map[string]ProviderConfig

	watcher *fsnotify.Watcher
}

// NewProviderStore loads the document at path and starts watching it for
// changes. A missing file yields an empty store (providers can be added
// later; the watch picks the file up on creation of its directory entry).
func NewProviderStore(path string) (*ProviderStore, error) {
	s := &ProviderStore{
		path:      path,
		providers: make(map[string]ProviderConfig),
	}

	if err := s.reload(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("provider store: file watch unavailable", "error", err)
		return s, nil
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		slog.Warn("provider store: cannot watch directory", "dir", filepath.Dir(path), "error", err)
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher
	go s.watch()

	return s, nil
}

func (s *ProviderStore) watch() {
	base := filepath.Base(s.path)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				slog.Warn("provider store: reload failed", "path", s.path, "error", err)
				continue
			}
			slog.Debug("provider store: reloaded", "path", s.path)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("provider store: watch error", "error", err)
		}
	}
}

func (s *ProviderStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var doc providerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse %s: %w", s.path, err)
	}

	providers := make(map[string]ProviderConfig, len(doc.Providers))
	for _, p := range doc.Providers {
		if p.ID == "" {
			slog.Warn("provider store: entry without id skipped")
			continue
		}
		providers[p.ID] = p
	}

	s.mu.Lock()
	s.providers = providers
	s.mu.Unlock()
	return nil
}

// Get returns the provider with the given id.
func (s *ProviderStore) Get(id string) (ProviderConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	return p, ok
}

// List returns a copy of all configured providers.
func (s *ProviderStore) List() []ProviderConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ProviderConfig, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, p)
	}
	return out
}

// First returns an arbitrary provider, used as a fallback when an agent
// references a provider that no longer exists.
func (s *ProviderStore) First() (ProviderConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		return p, true
	}
	return ProviderConfig{}, false
}

// Close stops the file watcher.
func (s *ProviderStore) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
