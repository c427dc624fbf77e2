// Package learned persists parameter values the user supplied once, keyed
// by the surrounding prompt context, so later similar prompts resolve the
// same parameter without asking again. Append-mostly: mappings are written
// once and only ever read back by similarity search.
package learned

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxelhq/scenepilot/internal/embed"
)

// Mapping is one stored context→value association.
type Mapping struct {
	ID        string
	Namespace string
	Workflow  string
	Param     string
	Context   string
	Value     any
	CreatedAt time.Time
}

// Hit is a mapping with its similarity to the query text.
type Hit struct {
	Mapping
	Similarity float64
}

// Filter narrows a search to one workflow/parameter pair. Empty fields
// match everything.
type Filter struct {
	Workflow string
	Param    string
}

// Store is the learned-mapping vector store. Concurrent reads are safe;
// a mapping may be briefly invisible to concurrent readers after Put.
type Store interface {
	Put(ctx context.Context, namespace, workflow, param, contextText string, value any) error
	Search(ctx context.Context, namespace, queryText string, filter Filter, limit int) ([]Hit, error)
}

// MemoryStore keeps mappings in process memory. Used in tests and as the
// degradation target when no database path is configured.
type MemoryStore struct {
	provider embed.Provider

	mu       sync.RWMutex
	mappings []Mapping
	vectors  map[string][]float32
}

// NewMemoryStore builds an empty in-memory store over the provider.
func NewMemoryStore(provider embed.Provider) *MemoryStore {
	return &MemoryStore{provider: provider, vectors: map[string][]float32{}}
}

func (s *MemoryStore) Put(ctx context.Context, namespace, workflow, param, contextText string, value any) error {
	vec, err := s.provider.Embed(ctx, contextText)
	if err != nil {
		return err
	}
	m := Mapping{
		ID:        uuid.NewString(),
		Namespace: namespace,
		Workflow:  workflow,
		Param:     param,
		Context:   contextText,
		Value:     value,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.mappings = append(s.mappings, m)
	s.vectors[m.ID] = vec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, namespace, queryText string, filter Filter, limit int) ([]Hit, error) {
	query, err := s.provider.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []Hit
	for _, m := range s.mappings {
		if m.Namespace != namespace {
			continue
		}
		if filter.Workflow != "" && m.Workflow != filter.Workflow {
			continue
		}
		if filter.Param != "" && m.Param != filter.Param {
			continue
		}
		hits = append(hits, Hit{Mapping: m, Similarity: embed.Cosine(query, s.vectors[m.ID])})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
