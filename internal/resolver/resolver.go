// Package resolver fills workflow parameter values from three sources of
// decreasing certainty: keyword modifiers matched upstream, previously
// learned prompt→value mappings retrieved by similarity, and schema
// defaults. Anything still missing is reported back for the caller to ask
// interactively; the answer is then persisted for next time.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/voxelhq/scenepilot/internal/embed"
	"github.com/voxelhq/scenepilot/internal/learned"
	"github.com/voxelhq/scenepilot/internal/logging"
	"github.com/voxelhq/scenepilot/internal/workflow"
)

// Source labels which tier produced a resolved value.
const (
	SourceModifier = "yaml_modifier"
	SourceLearned  = "learned"
	SourceDefault  = "default"
)

// Namespace partitions the learned store for parameter mappings.
const Namespace = "workflow_params"

// Config carries the tuning thresholds. They were calibrated against one
// embedding model and do not transfer unchanged to another, so they are
// configuration, not constants.
type Config struct {
	// WholePromptLimit is the prompt length under which the whole prompt
	// serves as the learned-lookup context.
	WholePromptLimit int
	// SentenceWindowLimit caps the sentence-window extraction.
	SentenceWindowLimit int
	// MinContextLen is the floor under which sentence extraction gives way
	// to a fixed character window around the hint.
	MinContextLen int
	// HintRelevanceFloor gates the learned tier on hint-vs-prompt
	// similarity.
	HintRelevanceFloor float64
	// LearnedMatchFloor is the store-hit similarity needed to accept a
	// learned value.
	LearnedMatchFloor float64
}

// DefaultConfig returns the shipped thresholds.
func DefaultConfig() Config {
	return Config{
		WholePromptLimit:    500,
		SentenceWindowLimit: 400,
		MinContextLen:       100,
		HintRelevanceFloor:  0.4,
		LearnedMatchFloor:   0.85,
	}
}

// Resolution is the per-call outcome. Unresolved names are a normal
// result, not an error; the caller prompts for them and calls
// StoreResolvedValue with the answer.
type Resolution struct {
	Resolved   map[string]any
	Unresolved []string
	Sources    map[string]string
	// Similarities records the store-hit score for learned resolutions.
	Similarities map[string]float64
}

// Resolver runs the tiered lookup. The embedding provider and store are
// injected; a nil store disables the learned tier.
type Resolver struct {
	provider embed.Provider
	store    learned.Store
	cfg      Config
	log      *slog.Logger
}

// New builds a resolver. Zero-valued cfg fields take their defaults.
func New(provider embed.Provider, store learned.Store, cfg Config, log *slog.Logger) *Resolver {
	def := DefaultConfig()
	if cfg.WholePromptLimit <= 0 {
		cfg.WholePromptLimit = def.WholePromptLimit
	}
	if cfg.SentenceWindowLimit <= 0 {
		cfg.SentenceWindowLimit = def.SentenceWindowLimit
	}
	if cfg.MinContextLen <= 0 {
		cfg.MinContextLen = def.MinContextLen
	}
	if cfg.HintRelevanceFloor <= 0 {
		cfg.HintRelevanceFloor = def.HintRelevanceFloor
	}
	if cfg.LearnedMatchFloor <= 0 {
		cfg.LearnedMatchFloor = def.LearnedMatchFloor
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Resolver{provider: provider, store: store, cfg: cfg, log: log}
}

// Resolve fills each parameter from the first applicable tier. Modifiers
// matched upstream always win, even over a higher-similarity learned
// mapping.
func (r *Resolver) Resolve(ctx context.Context, prompt, workflowName string, params map[string]workflow.ParameterSchema, modifiers map[string]any) (Resolution, error) {
	res := Resolution{
		Resolved:     map[string]any{},
		Sources:      map[string]string{},
		Similarities: map[string]float64{},
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		schema := params[name]

		if v, ok := modifiers[name]; ok {
			res.Resolved[name] = v
			res.Sources[name] = SourceModifier
			continue
		}

		if hit, ok := r.lookupLearned(ctx, prompt, workflowName, name, schema); ok {
			res.Resolved[name] = hit.Value
			res.Sources[name] = SourceLearned
			res.Similarities[name] = hit.Similarity
			continue
		}

		if schema.Default != nil {
			res.Resolved[name] = schema.Default
			res.Sources[name] = SourceDefault
			continue
		}
		res.Unresolved = append(res.Unresolved, name)
	}
	return res, nil
}

// StoreResolvedValue persists an interactively supplied answer so the
// learned tier can resolve it next time. The stored context is the same
// window the lookup would extract.
func (r *Resolver) StoreResolvedValue(ctx context.Context, prompt, workflowName, param string, schema workflow.ParameterSchema, value any) error {
	if r.store == nil {
		return fmt.Errorf("no learned store configured")
	}
	contextText := prompt
	if hint, pos, ok := r.bestHint(ctx, prompt, schema); ok {
		contextText = r.contextWindow(prompt, hint, pos)
	}
	return r.store.Put(ctx, Namespace, workflowName, param, contextText, value)
}

// lookupLearned runs tier 2 for one parameter.
func (r *Resolver) lookupLearned(ctx context.Context, prompt, workflowName, param string, schema workflow.ParameterSchema) (learned.Hit, bool) {
	if r.store == nil || len(schema.SemanticHints) == 0 {
		return learned.Hit{}, false
	}
	hint, pos, ok := r.bestHint(ctx, prompt, schema)
	if !ok {
		return learned.Hit{}, false
	}
	contextText := r.contextWindow(prompt, hint, pos)
	hits, err := r.store.Search(ctx, Namespace, contextText,
		learned.Filter{Workflow: workflowName, Param: param}, 1)
	if err != nil {
		r.log.Warn("learned store search failed", "param", param, "error", err)
		return learned.Hit{}, false
	}
	if len(hits) == 0 || hits[0].Similarity < r.cfg.LearnedMatchFloor {
		return learned.Hit{}, false
	}
	r.log.Debug("parameter resolved from learned mapping",
		"param", param, "similarity", hits[0].Similarity)
	return hits[0], true
}

// bestHint finds the schema hint most relevant to the prompt. An exact
// substring occurrence is relevance 1.0 and carries its position;
// otherwise relevance is embedding similarity between hint and prompt and
// the window centers on the prompt's start.
func (r *Resolver) bestHint(ctx context.Context, prompt string, schema workflow.ParameterSchema) (hint string, pos int, ok bool) {
	lowered := strings.ToLower(prompt)
	best := -1.0
	pos = -1
	for _, h := range schema.SemanticHints {
		if h == "" {
			continue
		}
		if idx := strings.Index(lowered, strings.ToLower(h)); idx >= 0 {
			if best < 1.0 {
				best, hint, pos = 1.0, h, idx
			}
			continue
		}
		if r.provider == nil || !r.provider.Ready() {
			continue
		}
		sim, err := embed.Similarity(ctx, r.provider, h, prompt)
		if err != nil {
			continue
		}
		if sim > best {
			best, hint, pos = sim, h, 0
		}
	}
	if best < r.cfg.HintRelevanceFloor {
		return "", -1, false
	}
	return hint, pos, true
}

// contextWindow extracts the learned-lookup query text around a hint
// occurrence. Short prompts go through whole; longer ones get the
// sentence containing the hint plus its neighbors; degenerate sentence
// splits fall back to a fixed character window.
func (r *Resolver) contextWindow(prompt, hint string, pos int) string {
	if len(prompt) <= r.cfg.WholePromptLimit {
		return prompt
	}
	window, winPos := sentenceWindow(prompt, pos)
	if len(window) > r.cfg.SentenceWindowLimit {
		// Cap around the hint so a long neighboring sentence cannot push
		// the hint itself out of the window.
		window = charWindow(window, winPos, len(hint), r.cfg.SentenceWindowLimit/2)
	}
	if len(window) >= r.cfg.MinContextLen {
		return window
	}
	return charWindow(prompt, pos, len(hint), r.cfg.MinContextLen)
}

// sentenceWindow returns the sentence containing pos plus one sentence on
// each side, and the hint's offset within that window. Sentences split on
// . ! ? and newline.
func sentenceWindow(text string, pos int) (string, int) {
	var sentences []string
	var starts []int
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			sentences = append(sentences, text[start:i+1])
			starts = append(starts, start)
			start = i + 1
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
		starts = append(starts, start)
	}
	target := 0
	for i := range sentences {
		if pos >= starts[i] && pos < starts[i]+len(sentences[i]) {
			target = i
			break
		}
	}
	lo, hi := target-1, target+1
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sentences) {
		hi = len(sentences) - 1
	}
	window := strings.Join(sentences[lo:hi+1], "")
	winPos := pos - starts[lo]
	trimmed := strings.TrimLeft(window, " \t")
	winPos -= len(window) - len(trimmed)
	if winPos < 0 {
		winPos = 0
	}
	return strings.TrimRight(trimmed, " \t"), winPos
}

// charWindow returns a fixed window of radius bytes on each side of the
// hint occurrence, widened to the nearest rune boundaries so multi-byte
// text is never cut mid-rune.
func charWindow(text string, pos, hintLen, radius int) string {
	lo := pos - radius
	if lo < 0 {
		lo = 0
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	hi := pos + hintLen + radius
	if hi > len(text) {
		hi = len(text)
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return strings.TrimSpace(text[lo:hi])
}
