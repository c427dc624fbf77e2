package workflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/voxelhq/scenepilot/internal/embed"
	"github.com/voxelhq/scenepilot/internal/logging"
)

// Level buckets an intent-match similarity score.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
)

// LevelFor buckets a similarity score: HIGH >= 0.90, MEDIUM >= 0.75,
// LOW >= 0.60, else NONE.
func LevelFor(score float64) Level {
	switch {
	case score >= 0.90:
		return LevelHigh
	case score >= 0.75:
		return LevelMedium
	case score >= 0.60:
		return LevelLow
	default:
		return LevelNone
	}
}

func (l Level) String() string {
	switch l {
	case LevelHigh:
		return "HIGH"
	case LevelMedium:
		return "MEDIUM"
	case LevelLow:
		return "LOW"
	default:
		return "NONE"
	}
}

// DefaultSemanticFloor is the description-vs-prompt similarity needed to
// keep an optional step at MEDIUM confidence when no tag matches.
const DefaultSemanticFloor = 0.6

// Adapter filters a workflow's optional steps by how confident the intent
// match was. It runs strictly before condition evaluation so dropped
// steps never advance the simulated context.
type Adapter struct {
	provider      embed.Provider
	semanticFloor float64
	log           *slog.Logger
}

// NewAdapter builds an adapter; floor <= 0 means DefaultSemanticFloor.
func NewAdapter(provider embed.Provider, floor float64, log *slog.Logger) *Adapter {
	if floor <= 0 {
		floor = DefaultSemanticFloor
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Adapter{provider: provider, semanticFloor: floor, log: log}
}

// Filter keeps steps according to level. Non-optional steps and steps
// with DisableAdaptation set always survive. At HIGH everything survives;
// at MEDIUM an optional step survives if its tags intersect the prompt's
// words or its description is semantically close to the prompt; at LOW
// and NONE only the core remains.
func (a *Adapter) Filter(ctx context.Context, steps []ExpandedStep, level Level, prompt string) []ExpandedStep {
	if level == LevelHigh {
		return steps
	}
	var kept []ExpandedStep
	for _, step := range steps {
		if !step.Optional || step.DisableAdaptation {
			kept = append(kept, step)
			continue
		}
		if level == LevelMedium && a.optionalStepRelevant(ctx, step, prompt) {
			kept = append(kept, step)
			continue
		}
		a.log.Debug("optional step dropped by confidence adaptation",
			"tool", step.Call.Tool, "level", level.String())
	}
	return kept
}

func (a *Adapter) optionalStepRelevant(ctx context.Context, step ExpandedStep, prompt string) bool {
	words := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(prompt)) {
		words[strings.Trim(w, ".,!?")] = struct{}{}
	}
	for _, tag := range step.Tags {
		if _, ok := words[strings.ToLower(tag)]; ok {
			return true
		}
	}
	if step.Description == "" || a.provider == nil || !a.provider.Ready() {
		return false
	}
	sim, err := embed.Similarity(ctx, a.provider, step.Description, prompt)
	if err != nil {
		return false
	}
	return sim >= a.semanticFloor
}
