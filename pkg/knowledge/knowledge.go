// Package knowledge provides the per-agent retrieval index backed by an
// embedded vector store. Each agent with an index gets a
// search_knowledge_base tool bound to its own collection; agents without an
// index simply do not receive the tool.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/coworkai/coworker/pkg/config"
)

const defaultTopK = 5

// Document is one indexed chunk.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Store holds one collection per agent inside an embedded chromem database.
// All vectors live in process memory with gob file persistence; no external
// vector service is required.
type Store struct {
	db        *chromem.DB
	embedding chromem.EmbeddingFunc

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// NewStore opens (or creates) the vector database under dataRoot. Embeddings
// are computed through the first openai-flavored provider in the document;
// without one the store falls back to the ambient OPENAI_API_KEY.
func NewStore(dataRoot string, providers *config.ProviderStore) (*Store, error) {
	path := filepath.Join(dataRoot, "knowledge", "vectors.gob")
	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, fmt.Errorf("knowledge: open vector db: %w", err)
	}
	return &Store{
		db:          db,
		embedding:   embeddingFunc(providers),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func embeddingFunc(providers *config.ProviderStore) chromem.EmbeddingFunc {
	if providers != nil {
		for _, p := range providers.List() {
			if p.Type != config.ProviderTypeOpenAI && p.Type != config.ProviderTypeOpenAICompatible {
				continue
			}
			baseURL := strings.TrimSuffix(p.BaseURL, "/")
			if baseURL == "" {
				baseURL = "https://api.openai.com/v1"
			}
			slog.Debug("knowledge: using provider for embeddings", "provider", p.ID)
			return chromem.NewEmbeddingFuncOpenAICompat(
				baseURL, p.ResolveAPIKey(), string(chromem.EmbeddingModelOpenAI3Small), nil)
		}
	}
	return chromem.NewEmbeddingFuncDefault()
}

func (s *Store) collection(agentID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[agentID]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[agentID]; ok {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection("agent_"+agentID, nil, s.embedding)
	if err != nil {
		return nil, fmt.Errorf("knowledge: collection for %s: %w", agentID, err)
	}
	s.collections[agentID] = col
	return col, nil
}

// HasIndex reports whether the agent has any indexed content. The bound
// tool set for an agent includes search_knowledge_base only when true.
func (s *Store) HasIndex(agentID string) bool {
	col := s.db.GetCollection("agent_"+agentID, s.embedding)
	return col != nil && col.Count() > 0
}

// AddDocuments indexes chunks into the agent's collection.
func (s *Store) AddDocuments(ctx context.Context, agentID string, docs []Document) error {
	col, err := s.collection(agentID)
	if err != nil {
		return err
	}
	converted := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		converted = append(converted, chromem.Document{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
		})
	}
	if err := col.AddDocuments(ctx, converted, runtime.NumCPU()); err != nil {
		return fmt.Errorf("knowledge: index documents for %s: %w", agentID, err)
	}
	return nil
}

// Search runs similarity search against the agent's collection and renders
// the hits as a human-readable snippet block.
func (s *Store) Search(ctx context.Context, agentID, query string) (string, error) {
	col, err := s.collection(agentID)
	if err != nil {
		return "", err
	}

	topK := defaultTopK
	if n := col.Count(); n < topK {
		topK = n
	}
	if topK == 0 {
		return "No knowledge base entries found.", nil
	}

	results, err := col.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return "", fmt.Errorf("knowledge: query for %s: %w", agentID, err)
	}

	var b strings.Builder
	b.WriteString("Relevant knowledge base entries:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "\n[%d] (relevance %.2f)\n%s\n", i+1, r.Similarity, r.Content)
	}
	return b.String(), nil
}
