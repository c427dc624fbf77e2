// Package router orchestrates the full interception pipeline: scene
// analysis, pattern detection, override, correction, workflow expansion,
// confidence adaptation and the error firewall, returning the ordered
// call list the outer dispatch layer should execute.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxelhq/scenepilot/internal/correct"
	"github.com/voxelhq/scenepilot/internal/eval"
	"github.com/voxelhq/scenepilot/internal/firewall"
	"github.com/voxelhq/scenepilot/internal/intent"
	"github.com/voxelhq/scenepilot/internal/logging"
	"github.com/voxelhq/scenepilot/internal/override"
	"github.com/voxelhq/scenepilot/internal/resolver"
	"github.com/voxelhq/scenepilot/internal/scene"
	"github.com/voxelhq/scenepilot/internal/toolcall"
	"github.com/voxelhq/scenepilot/internal/workflow"
)

// Stats are per-supervisor counters, exposed for introspection.
type Stats struct {
	Processed  int
	Overridden int
	Corrected  int
	Expanded   int
	AutoFixed  int
	Modified   int
	Blocked    int
	Warned     int
	Degraded   int
}

// Outcome is what processing hands back to the caller: the ordered call
// list to execute, whether any requested call was refused, and the
// human-readable record of refusals and applied corrections. A call is
// never dropped without a corresponding message.
type Outcome struct {
	Calls       []toolcall.ToolCall `json:"calls"`
	Blocked     bool                `json:"blocked,omitempty"`
	Messages    []string            `json:"messages,omitempty"`
	Corrections []string            `json:"corrections,omitempty"`
}

// session is the small per-supervisor mutable record: the active goal and
// the workflow it matched, if any.
type session struct {
	goal            string
	pendingWorkflow string
	confidence      float64
}

// Supervisor wires the pipeline stages together. Each instance owns its
// session state and stats; the embedding provider and learned store behind
// the injected components may be shared across supervisors.
type Supervisor struct {
	analyzer  *scene.Analyzer
	detector  *scene.Detector
	corrector *correct.Engine
	overrides *override.Engine
	firewall  *firewall.Engine
	registry  *workflow.Registry
	expander  *workflow.Expander
	adapter   *workflow.Adapter
	resolver  *resolver.Resolver
	intents   *intent.Classifier
	log       *slog.Logger

	mu      sync.Mutex
	session session
	stats   Stats
}

// Deps carries the constructed pipeline components.
type Deps struct {
	Analyzer  *scene.Analyzer
	Detector  *scene.Detector
	Corrector *correct.Engine
	Overrides *override.Engine
	Firewall  *firewall.Engine
	Registry  *workflow.Registry
	Expander  *workflow.Expander
	Adapter   *workflow.Adapter
	Resolver  *resolver.Resolver
	Intents   *intent.Classifier
	Log       *slog.Logger
}

// NewSupervisor builds a supervisor over the given components.
func NewSupervisor(d Deps) *Supervisor {
	log := d.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Supervisor{
		analyzer:  d.Analyzer,
		detector:  d.Detector,
		corrector: d.Corrector,
		overrides: d.Overrides,
		firewall:  d.Firewall,
		registry:  d.Registry,
		expander:  d.Expander,
		adapter:   d.Adapter,
		resolver:  d.Resolver,
		intents:   d.Intents,
		log:       log,
	}
}

// Process runs one tool call through the whole pipeline and returns the
// outcome: the ordered list the outer layer should execute in its place,
// plus the refusal messages and corrections the caller must see.
func (s *Supervisor) Process(ctx context.Context, tool string, params map[string]any, prompt string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processLocked(ctx, tool, params, prompt)
}

func (s *Supervisor) processLocked(ctx context.Context, tool string, params map[string]any, prompt string) (Outcome, error) {
	s.stats.Processed++
	s.log.Info("intercepted tool call", "tool", tool, "prompt_len", len(prompt))
	var out Outcome

	snapshot := s.analyzer.Analyze(ctx, "")
	if snapshot.Degraded {
		s.stats.Degraded++
	}
	patterns := s.detector.Detect(snapshot)

	// Overrides short-circuit the rest of the pipeline.
	if dec := s.overrides.Check(tool, params, patterns.Best); dec.ShouldOverride {
		s.stats.Overridden++
		s.log.Info("call overridden", "rule", dec.RuleName, "reason", dec.Reason)
		out.Calls = dec.Replacements
		if dec.Reason != "" {
			out.Messages = append(out.Messages, dec.Reason)
		}
		s.afterEmit(out.Calls)
		return out, nil
	}

	corr := s.corrector.Correct(tool, params, snapshot.Mode, snapshot.HasSelection())
	if len(corr.Applied) > 0 {
		s.stats.Corrected++
		out.Corrections = append(out.Corrections, corr.Applied...)
	}

	// The simulation starts from the real snapshot and is advanced by the
	// correction pre-steps, so expansion conditions and firewall checks see
	// their effect instead of re-demanding the same fixes.
	sim := simFrom(snapshot)
	calls := make([]toolcall.ToolCall, 0, len(corr.PreSteps)+4)
	for _, pre := range corr.PreSteps {
		sim.Advance(pre)
		calls = append(calls, pre)
	}

	candidates, err := s.expandLocked(ctx, corr.Corrected, prompt, snapshot, &sim)
	if err != nil {
		return Outcome{}, err
	}

	anyApproved := false
	for _, call := range candidates {
		approved, ok := s.applyFirewall(call, snapshot, &sim, &out)
		if !ok {
			continue
		}
		anyApproved = true
		for _, c := range approved {
			sim.Advance(c)
			calls = append(calls, c)
		}
	}
	if !anyApproved {
		// Prerequisite steps make no sense without the call they serve.
		calls = nil
	}
	out.Calls = calls
	s.afterEmit(calls)
	return out, nil
}

// expandLocked turns the corrected call into its workflow step sequence
// when a workflow is applicable, otherwise into itself. A pending workflow
// set by SetGoal is consumed by the first expansion it drives.
func (s *Supervisor) expandLocked(ctx context.Context, call toolcall.ToolCall, prompt string, snapshot scene.Context, sim *eval.SimContext) ([]toolcall.ToolCall, error) {
	wfName := s.session.pendingWorkflow
	fromGoal := wfName != ""
	if wfName == "" {
		wfName = s.registry.FindByKeywords(prompt)
	}
	def := s.registry.Get(wfName)
	if def == nil {
		return []toolcall.ToolCall{call}, nil
	}

	invoking := prompt
	if invoking == "" {
		invoking = s.session.goal
	}
	modifiers := workflow.MatchedModifiers(def, invoking)
	explicit := map[string]any{}
	if s.resolver != nil {
		res, err := s.resolver.Resolve(ctx, invoking, def.Name, def.Parameters, modifiers)
		if err != nil {
			return nil, fmt.Errorf("resolve parameters for %s: %w", def.Name, err)
		}
		for name, v := range res.Resolved {
			explicit[name] = v
		}
		if len(res.Unresolved) > 0 {
			// Not an error: the definition's own defaults still apply, and
			// the caller can supply answers and re-invoke.
			s.log.Info("parameters unresolved", "workflow", def.Name, "params", res.Unresolved)
		}
	}

	steps, err := s.expander.Expand(def, invoking, snapshot.ExprContext(), explicit)
	if err != nil {
		return nil, err
	}

	if s.adapter != nil && fromGoal {
		steps = s.adapter.Filter(ctx, steps, workflow.LevelFor(s.session.confidence), invoking)
	}

	steps, err = s.expander.ApplyConditions(steps, *sim)
	if err != nil {
		return nil, err
	}

	s.stats.Expanded++
	if fromGoal {
		s.session.pendingWorkflow = ""
	}
	s.log.Info("call expanded into workflow", "workflow", def.Name, "steps", len(steps))

	calls := make([]toolcall.ToolCall, len(steps))
	for i, st := range steps {
		calls[i] = st.Call
	}
	return calls, nil
}

// applyFirewall validates one candidate against the firewall, using the
// simulated state so pre-steps already emitted are not demanded twice.
// Verdict messages are recorded on the outcome for the caller.
func (s *Supervisor) applyFirewall(call toolcall.ToolCall, snapshot scene.Context, sim *eval.SimContext, out *Outcome) ([]toolcall.ToolCall, bool) {
	verdict := s.firewall.Validate(call, effectiveContext(snapshot, *sim))
	switch verdict.Action {
	case firewall.Block:
		s.stats.Blocked++
		out.Blocked = true
		out.Messages = append(out.Messages, verdict.Message)
		s.log.Warn("call blocked", "tool", call.Tool, "message", verdict.Message)
		return nil, false
	case firewall.AutoFix:
		s.stats.AutoFixed++
		out.Corrections = append(out.Corrections, verdict.Message)
		return append(verdict.PreSteps, call), true
	case firewall.Modify:
		s.stats.Modified++
		out.Messages = append(out.Messages, verdict.Message)
		if verdict.ModifiedCall != nil {
			return []toolcall.ToolCall{*verdict.ModifiedCall}, true
		}
		return []toolcall.ToolCall{call}, true
	case firewall.Warn:
		s.stats.Warned++
		out.Messages = append(out.Messages, verdict.Message)
		s.log.Warn("call allowed with warning", "tool", call.Tool, "message", verdict.Message)
		return []toolcall.ToolCall{call}, true
	default:
		return []toolcall.ToolCall{call}, true
	}
}

// afterEmit invalidates the scene cache when calls leave the pipeline;
// the outer layer is about to mutate the scene.
func (s *Supervisor) afterEmit(calls []toolcall.ToolCall) {
	if len(calls) > 0 {
		s.analyzer.InvalidateCache()
	}
}

// ProcessBatch runs several calls through the pipeline in order,
// concatenating their outcomes. A blocked call contributes nothing to the
// call list and does not stop the batch; its refusal message is kept.
func (s *Supervisor) ProcessBatch(ctx context.Context, calls []toolcall.ToolCall, prompt string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out Outcome
	for _, call := range calls {
		res, err := s.processLocked(ctx, call.Tool, call.Params, prompt)
		if err != nil {
			return Outcome{}, err
		}
		out.Calls = append(out.Calls, res.Calls...)
		out.Blocked = out.Blocked || res.Blocked
		out.Messages = append(out.Messages, res.Messages...)
		out.Corrections = append(out.Corrections, res.Corrections...)
	}
	return out, nil
}

// SetGoal records the caller's stated goal, matches it to a workflow by
// trigger keyword or intent similarity, and arms that workflow for the
// next Process call. Returns the matched workflow name, or empty.
func (s *Supervisor) SetGoal(ctx context.Context, goal string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = session{goal: goal}
	if name := s.registry.FindByKeywords(goal); name != "" {
		s.session.pendingWorkflow = name
		s.session.confidence = 1.0
		s.log.Info("goal matched workflow by keyword", "workflow", name)
		return name, nil
	}
	if s.intents == nil {
		return "", nil
	}
	match, err := s.intents.Predict(ctx, goal)
	if err != nil {
		return "", fmt.Errorf("classify goal: %w", err)
	}
	if workflow.LevelFor(match.Score) == workflow.LevelNone {
		s.log.Info("goal matched no workflow", "best", match.Name, "score", match.Score)
		return "", nil
	}
	s.session.pendingWorkflow = match.Name
	s.session.confidence = match.Score
	s.log.Info("goal matched workflow by intent", "workflow", match.Name, "score", match.Score)
	return match.Name, nil
}

// CurrentGoal returns the goal recorded by the last SetGoal.
func (s *Supervisor) CurrentGoal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.goal
}

// ClearGoal drops the active goal and any armed workflow.
func (s *Supervisor) ClearGoal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session{}
}

// PendingWorkflow reports the workflow armed by the last SetGoal, if it
// has not yet been consumed.
func (s *Supervisor) PendingWorkflow() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.pendingWorkflow
}

// Stats returns a copy of the counters.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ComponentStatus reports per-component health for introspection.
func (s *Supervisor) ComponentStatus() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]any{
		"workflows":      len(s.registry.Names()),
		"override_rules": s.overrides.RuleCount(),
		"firewall_rules": s.firewall.RuleCount(),
	}
	if age, ok := s.analyzer.CacheAge(); ok {
		status["scene_cache_age"] = age.String()
	} else {
		status["scene_cache_age"] = "empty"
	}
	if s.intents != nil {
		status["intent_entries"] = s.intents.EntryCount()
		status["intent_fallback"] = s.intents.UsingFallback()
	}
	return status
}

// StoreResolvedValue persists an interactively supplied parameter answer
// through the resolver's learned store.
func (s *Supervisor) StoreResolvedValue(ctx context.Context, prompt, workflowName, param string, value any) error {
	if s.resolver == nil {
		return fmt.Errorf("no resolver configured")
	}
	def := s.registry.Get(workflowName)
	if def == nil {
		return fmt.Errorf("unknown workflow %q", workflowName)
	}
	schema, ok := def.Parameters[param]
	if !ok {
		return fmt.Errorf("workflow %q has no parameter %q", workflowName, param)
	}
	return s.resolver.StoreResolvedValue(ctx, prompt, workflowName, param, schema, value)
}

// WorkflowEntries builds the intent-classifier catalog from a registry.
func WorkflowEntries(r *workflow.Registry) []intent.Entry {
	var entries []intent.Entry
	for _, def := range r.All() {
		entries = append(entries, intent.Entry{
			Name:        def.Name,
			Description: def.Description,
			Keywords:    def.TriggerKeywords,
		})
	}
	return entries
}

func simFrom(c scene.Context) eval.SimContext {
	return eval.SimContext{
		Mode:          c.Mode,
		HasSelection:  c.HasSelection(),
		ObjectCount:   c.ObjectCount,
		SelectedVerts: c.Selection.Verts,
		SelectedEdges: c.Selection.Edges,
		SelectedFaces: c.Selection.Faces,
		ActiveObject:  c.ActiveObject,
	}
}

// effectiveContext projects the simulated mode and selection back onto the
// snapshot so firewall predicates judge the state the call will actually
// run in, not the state before the emitted pre-steps.
func effectiveContext(snapshot scene.Context, sim eval.SimContext) scene.Context {
	c := snapshot
	c.Mode = sim.Mode
	if sim.HasSelection && !c.HasSelection() {
		c.Selection.Verts = 1
	}
	if !sim.HasSelection {
		c.Selection = scene.SelectionCounts{}
	}
	return c
}
