// Package intent matches free text against a catalog of tools or
// workflows by embedding similarity, with a lexical fallback when the
// embedding provider is unavailable.
package intent

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/voxelhq/scenepilot/internal/embed"
	"github.com/voxelhq/scenepilot/internal/logging"
)

// Entry is one catalog item. Its embedding is built from description,
// keywords and sample phrases together.
type Entry struct {
	Name        string
	Description string
	Keywords    []string
	Phrases     []string
}

func (e Entry) corpus() string {
	parts := []string{e.Description}
	parts = append(parts, e.Keywords...)
	parts = append(parts, e.Phrases...)
	return strings.Join(parts, ". ")
}

// Match is one ranked prediction.
type Match struct {
	Name  string
	Score float64
}

// Classifier precomputes one embedding per catalog entry and ranks query
// text by cosine similarity. If the provider is not ready at warm time it
// degrades to a lexical keyword-overlap scorer and flags the fact rather
// than failing hard.
type Classifier struct {
	provider embed.Provider
	log      *slog.Logger

	mu       sync.RWMutex
	entries  []Entry
	vectors  map[string][]float32
	fallback bool
}

// NewClassifier builds an unwarmed classifier over the catalog.
func NewClassifier(provider embed.Provider, entries []Entry, log *slog.Logger) *Classifier {
	if log == nil {
		log = logging.Nop()
	}
	return &Classifier{
		provider: provider,
		entries:  entries,
		vectors:  map[string][]float32{},
		log:      log,
	}
}

// Warm precomputes catalog embeddings. On provider failure it switches to
// the lexical fallback and returns nil: degraded accuracy, not an outage.
func (c *Classifier) Warm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider == nil || !c.provider.Ready() {
		c.fallback = true
		c.log.Warn("embedding provider unavailable, using lexical intent matching")
		return nil
	}
	for _, entry := range c.entries {
		vec, err := c.provider.Embed(ctx, entry.corpus())
		if err != nil {
			c.fallback = true
			c.vectors = map[string][]float32{}
			c.log.Warn("catalog embedding failed, using lexical intent matching", "entry", entry.Name, "error", err)
			return nil
		}
		c.vectors[entry.Name] = vec
	}
	c.fallback = false
	return nil
}

// UsingFallback reports whether lexical matching is in effect.
func (c *Classifier) UsingFallback() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fallback
}

// EntryCount reports the catalog size.
func (c *Classifier) EntryCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Predict returns the best match for text, with its similarity score.
func (c *Classifier) Predict(ctx context.Context, text string) (Match, error) {
	top, err := c.PredictTopK(ctx, text, 1)
	if err != nil || len(top) == 0 {
		return Match{}, err
	}
	return top[0], nil
}

// PredictTopK returns up to k matches ranked by score descending.
func (c *Classifier) PredictTopK(ctx context.Context, text string, k int) ([]Match, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.entries) == 0 || k <= 0 {
		return nil, nil
	}

	var matches []Match
	if c.fallback {
		for _, entry := range c.entries {
			matches = append(matches, Match{Name: entry.Name, Score: lexicalScore(entry, text)})
		}
	} else {
		query, err := c.provider.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		for _, entry := range c.entries {
			matches = append(matches, Match{
				Name:  entry.Name,
				Score: embed.Cosine(query, c.vectors[entry.Name]),
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// lexicalScore is token overlap between the query and the entry corpus,
// with fuzzy keyword hits counted at half weight. Scores land in [0,1].
func lexicalScore(entry Entry, text string) float64 {
	queryTokens := strings.Fields(strings.ToLower(text))
	if len(queryTokens) == 0 {
		return 0
	}
	corpus := strings.ToLower(entry.corpus())
	corpusTokens := map[string]struct{}{}
	for _, tok := range strings.Fields(corpus) {
		corpusTokens[strings.Trim(tok, ".,")] = struct{}{}
	}

	var score float64
	for _, tok := range queryTokens {
		if _, ok := corpusTokens[tok]; ok {
			score += 1
			continue
		}
		if len(tok) > 3 && fuzzy.MatchNormalizedFold(tok, corpus) {
			score += 0.5
		}
	}
	return score / float64(len(queryTokens))
}
