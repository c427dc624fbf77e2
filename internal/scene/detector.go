package scene

import (
	"log/slog"
	"sort"

	"github.com/voxelhq/scenepilot/internal/eval"
	"github.com/voxelhq/scenepilot/internal/logging"
)

// Pattern type names.
const (
	PatternTowerLike  = "tower_like"
	PatternPhoneLike  = "phone_like"
	PatternTableLike  = "table_like"
	PatternPillarLike = "pillar_like"
	PatternWheelLike  = "wheel_like"
	PatternBoxLike    = "box_like"
)

// DefaultConfidenceFloor is the minimum confidence for a pattern to be
// eligible as the best match.
const DefaultConfidenceFloor = 0.5

// DetectedPattern is one geometric archetype inferred from proportions.
type DetectedPattern struct {
	Type              string
	Confidence        float64
	SuggestedWorkflow string
	MatchedRules      []string
}

// Result carries every gated pattern plus the best match above the floor.
type Result struct {
	All  []DetectedPattern
	Best *DetectedPattern
}

// weightedRule is one additive scoring rule. The expression is condition
// micro-language over the proportion scope, so the rule set is data that
// can be introspected and tested without executing code.
type weightedRule struct {
	Name   string
	Expr   string
	Weight float64
}

// patternSpec is a pattern's gate plus its weighted rules. Weights sum to
// 1.0 within each spec.
type patternSpec struct {
	Type     string
	Gate     string
	Rules    []weightedRule
	Workflow string
}

var patternSpecs = []patternSpec{
	{
		Type: PatternTowerLike,
		Gate: "is_tall",
		Rules: []weightedRule{
			{"tall", "is_tall", 0.4},
			{"height-over-3x-width", "height > width * 3", 0.3},
			{"height-over-3x-depth", "height > depth * 3", 0.3},
		},
		Workflow: "tower_workflow",
	},
	{
		Type: PatternPhoneLike,
		Gate: "is_flat",
		Rules: []weightedRule{
			{"flat", "is_flat", 0.4},
			{"portrait-aspect", "aspect_xy > 0.4 and aspect_xy < 0.7", 0.4},
			{"thin", "height < max_dim * 0.1", 0.2},
		},
		Workflow: "phone_workflow",
	},
	{
		Type: PatternTableLike,
		Gate: "is_flat and not is_tall",
		Rules: []weightedRule{
			{"flat", "is_flat", 0.5},
			{"not-tall", "not is_tall", 0.3},
			{"wide", "is_wide", 0.2},
		},
		Workflow: "table_workflow",
	},
	{
		Type: PatternPillarLike,
		Gate: "is_tall",
		Rules: []weightedRule{
			{"tall", "is_tall", 0.5},
			{"square-footprint", "aspect_xy > 0.7 and aspect_xy < 1.3", 0.5},
		},
		Workflow: "pillar_workflow",
	},
	{
		Type: PatternWheelLike,
		Gate: "is_flat",
		Rules: []weightedRule{
			{"flat", "is_flat", 0.4},
			{"round-footprint", "aspect_xy > 0.9 and aspect_xy < 1.1", 0.6},
		},
		Workflow: "wheel_workflow",
	},
	{
		Type: PatternBoxLike,
		Gate: "is_cubic and not is_flat and not is_tall",
		Rules: []weightedRule{
			{"cubic", "is_cubic", 0.5},
			{"not-flat", "not is_flat", 0.25},
			{"not-tall", "not is_tall", 0.25},
		},
	},
}

// Detector scores the pattern table against a scene snapshot.
type Detector struct {
	floor float64
	log   *slog.Logger
}

// NewDetector builds a detector; floor <= 0 means the default 0.5.
func NewDetector(floor float64, log *slog.Logger) *Detector {
	if floor <= 0 {
		floor = DefaultConfidenceFloor
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Detector{floor: floor, log: log}
}

// Detect evaluates every pattern spec. A pattern appears in Result.All
// only when its gate holds; Best is the highest-confidence pattern at or
// above the floor. Degraded snapshots match nothing.
func (d *Detector) Detect(c Context) Result {
	if c.Degraded || c.Proportions.MaxDim == 0 {
		return Result{}
	}
	scope := proportionScope(c)

	var all []DetectedPattern
	for _, spec := range patternSpecs {
		gated, err := eval.EvaluateCond(spec.Gate, scope)
		if err != nil {
			d.log.Error("pattern gate failed to evaluate", "pattern", spec.Type, "error", err)
			continue
		}
		if !gated {
			continue
		}
		p := DetectedPattern{Type: spec.Type, SuggestedWorkflow: spec.Workflow}
		for _, rule := range spec.Rules {
			hit, err := eval.EvaluateCond(rule.Expr, scope)
			if err != nil {
				d.log.Error("pattern rule failed to evaluate", "pattern", spec.Type, "rule", rule.Name, "error", err)
				continue
			}
			if hit {
				p.Confidence += rule.Weight
				p.MatchedRules = append(p.MatchedRules, rule.Name)
			}
		}
		all = append(all, p)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Confidence > all[j].Confidence })
	res := Result{All: all}
	if len(all) > 0 && all[0].Confidence >= d.floor {
		best := all[0]
		res.Best = &best
	}
	return res
}

func proportionScope(c Context) eval.MapScope {
	scope := eval.MapScope{}
	for k, v := range c.ExprContext() {
		scope[k] = v
	}
	scope["is_flat"] = c.Proportions.IsFlat
	scope["is_tall"] = c.Proportions.IsTall
	scope["is_wide"] = c.Proportions.IsWide
	scope["is_cubic"] = c.Proportions.IsCubic
	return scope
}
