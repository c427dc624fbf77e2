package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelhq/scenepilot/internal/bridge"
	"github.com/voxelhq/scenepilot/internal/correct"
	"github.com/voxelhq/scenepilot/internal/embed"
	"github.com/voxelhq/scenepilot/internal/firewall"
	"github.com/voxelhq/scenepilot/internal/intent"
	"github.com/voxelhq/scenepilot/internal/learned"
	"github.com/voxelhq/scenepilot/internal/override"
	"github.com/voxelhq/scenepilot/internal/resolver"
	"github.com/voxelhq/scenepilot/internal/scene"
	"github.com/voxelhq/scenepilot/internal/toolcall"
	"github.com/voxelhq/scenepilot/internal/workflow"
)

type fakeClient struct {
	result map[string]any
	err    error
	calls  int
}

func (f *fakeClient) Send(_ context.Context, _ bridge.Command, _ map[string]any) (map[string]any, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func sceneWith(dims []any, mode string, selectedVerts int) map[string]any {
	return map[string]any{
		"mode":             mode,
		"active_object":    "Cube",
		"object_count":     2,
		"dimensions":       dims,
		"selection_counts": map[string]any{"verts": selectedVerts},
	}
}

func newTestSupervisor(t *testing.T, client bridge.Client) *Supervisor {
	t.Helper()
	provider := embed.HashProvider{}
	registry := workflow.NewRegistry("", nil)
	intents := intent.NewClassifier(provider, WorkflowEntries(registry), nil)
	require.NoError(t, intents.Warm(context.Background()))
	return NewSupervisor(Deps{
		Analyzer:  scene.NewAnalyzer(client, 0, nil),
		Detector:  scene.NewDetector(0, nil),
		Corrector: correct.NewEngine(nil, nil),
		Overrides: override.NewEngine(nil),
		Firewall:  firewall.NewEngine(nil),
		Registry:  registry,
		Expander:  workflow.NewExpander(nil),
		Adapter:   workflow.NewAdapter(provider, 0, nil),
		Resolver:  resolver.New(provider, learned.NewMemoryStore(provider), resolver.Config{}, nil),
		Intents:   intents,
	})
}

func toolNames(calls []toolcall.ToolCall) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Tool
	}
	return out
}

func TestProcessPassesThroughCleanCall(t *testing.T) {
	client := &fakeClient{result: sceneWith([]any{2.0, 2.0, 2.0}, toolcall.ModeEdit, 8)}
	s := newTestSupervisor(t, client)

	res, err := s.Process(context.Background(), "mesh_bevel",
		map[string]any{"width": 0.1}, "bevel it a bit")
	require.NoError(t, err)

	assert.Equal(t, []string{"mesh_bevel"}, toolNames(res.Calls))
	assert.Equal(t, 0.1, res.Calls[0].Params["width"])
	assert.False(t, res.Blocked)
	assert.Empty(t, res.Corrections)
	assert.Equal(t, 1, s.Stats().Processed)
	assert.Equal(t, 0, s.Stats().Corrected)
}

func TestProcessCorrectsModeAndSelectionOnce(t *testing.T) {
	client := &fakeClient{result: sceneWith([]any{2.0, 2.0, 2.0}, toolcall.ModeObject, 0)}
	s := newTestSupervisor(t, client)

	res, err := s.Process(context.Background(), "mesh_bevel",
		map[string]any{"width": 0.1}, "bevel the edges")
	require.NoError(t, err)

	// Correction supplies the prerequisites; the firewall must not demand
	// the same mode switch a second time.
	assert.Equal(t, []string{
		toolcall.ToolSetMode, toolcall.ToolMeshSelect, "mesh_bevel",
	}, toolNames(res.Calls))
	assert.Equal(t, toolcall.ModeEdit, res.Calls[0].Params["mode"])
	// Each applied correction is named for the caller.
	require.Len(t, res.Corrections, 2)
	assert.Contains(t, res.Corrections[0], "switched mode")
	assert.Equal(t, 1, s.Stats().Corrected)
	assert.Equal(t, 0, s.Stats().AutoFixed)
}

func TestProcessOverrideShortCircuits(t *testing.T) {
	// 1 x 1 x 5 is tower-like; mesh_subdivide triggers the taper override.
	client := &fakeClient{result: sceneWith([]any{1.0, 1.0, 5.0}, toolcall.ModeEdit, 8)}
	s := newTestSupervisor(t, client)

	res, err := s.Process(context.Background(), "mesh_subdivide",
		map[string]any{"cuts": 2}, "subdivide the mesh")
	require.NoError(t, err)

	assert.Equal(t, []string{"mesh_subdivide", "mesh_select_loop", "mesh_transform"},
		toolNames(res.Calls))
	// The replacement inherits the caller's cut count, and the override
	// reason travels with the outcome.
	assert.Equal(t, 2, res.Calls[0].Params["cuts"])
	assert.NotEmpty(t, res.Messages)
	assert.Equal(t, 1, s.Stats().Overridden)
}

func TestProcessBlocksDeleteInEmptyScene(t *testing.T) {
	client := &fakeClient{err: errors.New("boundary down")}
	s := newTestSupervisor(t, client)

	res, err := s.Process(context.Background(), "mesh_delete",
		map[string]any{"type": "VERT"}, "delete it")
	require.NoError(t, err)

	// The refusal carries a reason the caller can see; nothing is dropped
	// silently.
	assert.Empty(t, res.Calls)
	assert.True(t, res.Blocked)
	require.NotEmpty(t, res.Messages)
	assert.Contains(t, res.Messages[0], "refusing delete")
	assert.Equal(t, 1, s.Stats().Blocked)
	assert.Equal(t, 1, s.Stats().Degraded)
}

func TestProcessClampsBevelWidthToGeometry(t *testing.T) {
	client := &fakeClient{result: sceneWith([]any{0.2, 2.0, 2.0}, toolcall.ModeEdit, 8)}
	s := newTestSupervisor(t, client)

	res, err := s.Process(context.Background(), "mesh_bevel",
		map[string]any{"width": 5.0}, "bevel hard")
	require.NoError(t, err)

	require.Equal(t, []string{"mesh_bevel"}, toolNames(res.Calls))
	assert.Equal(t, 0.1, res.Calls[0].Params["width"])
	assert.NotEmpty(t, res.Messages)
	assert.Equal(t, 1, s.Stats().Modified)
}

func TestSetGoalArmsWorkflowAndProcessExpands(t *testing.T) {
	client := &fakeClient{result: sceneWith([]any{2.0, 2.0, 2.0}, toolcall.ModeObject, 0)}
	s := newTestSupervisor(t, client)

	name, err := s.SetGoal(context.Background(), "build me a tall tower")
	require.NoError(t, err)
	assert.Equal(t, "tower_workflow", name)
	assert.Equal(t, "tower_workflow", s.PendingWorkflow())

	res, err := s.Process(context.Background(), "modeling_extrude_up", nil,
		"build me a tall tower")
	require.NoError(t, err)

	names := toolNames(res.Calls)
	assert.Equal(t, toolcall.ToolSetMode, names[0])
	assert.Contains(t, names, "mesh_subdivide")
	assert.Contains(t, names, "mesh_transform")
	assert.Equal(t, 1, s.Stats().Expanded)

	// The pending workflow is consumed by the expansion.
	assert.Equal(t, "", s.PendingWorkflow())
}

func TestSetGoalWithoutMatchLeavesNoPendingWorkflow(t *testing.T) {
	client := &fakeClient{result: sceneWith([]any{2.0, 2.0, 2.0}, toolcall.ModeObject, 0)}
	s := newTestSupervisor(t, client)

	name, err := s.SetGoal(context.Background(), "qwerty zxcvb")
	require.NoError(t, err)
	assert.Equal(t, "", name)
	assert.Equal(t, "", s.PendingWorkflow())
}

func TestClearGoalDisarmsWorkflow(t *testing.T) {
	client := &fakeClient{result: sceneWith([]any{2.0, 2.0, 2.0}, toolcall.ModeObject, 0)}
	s := newTestSupervisor(t, client)

	_, err := s.SetGoal(context.Background(), "build a tower")
	require.NoError(t, err)
	assert.Equal(t, "build a tower", s.CurrentGoal())

	s.ClearGoal()
	assert.Equal(t, "", s.CurrentGoal())
	assert.Equal(t, "", s.PendingWorkflow())
}

func TestProcessExpandsByPromptKeywords(t *testing.T) {
	client := &fakeClient{result: sceneWith([]any{1.0, 2.0, 0.3}, toolcall.ModeObject, 0)}
	s := newTestSupervisor(t, client)

	res, err := s.Process(context.Background(), "mesh_inset", nil,
		"turn this into a smartphone")
	require.NoError(t, err)

	names := toolNames(res.Calls)
	assert.Contains(t, names, "mesh_bevel")
	assert.Contains(t, names, "mesh_select_face")
	assert.Equal(t, 1, s.Stats().Expanded)
}

func TestProcessBatchConcatenates(t *testing.T) {
	client := &fakeClient{result: sceneWith([]any{2.0, 2.0, 2.0}, toolcall.ModeEdit, 8)}
	s := newTestSupervisor(t, client)

	res, err := s.ProcessBatch(context.Background(), []toolcall.ToolCall{
		toolcall.New("mesh_bevel", map[string]any{"width": 0.1}),
		toolcall.New("mesh_subdivide", map[string]any{"cuts": 2}),
	}, "tidy up the edges")
	require.NoError(t, err)

	assert.Equal(t, []string{"mesh_bevel", "mesh_subdivide"}, toolNames(res.Calls))
	assert.False(t, res.Blocked)
	assert.Equal(t, 2, s.Stats().Processed)
}

func TestComponentStatus(t *testing.T) {
	client := &fakeClient{result: sceneWith([]any{2.0, 2.0, 2.0}, toolcall.ModeEdit, 8)}
	s := newTestSupervisor(t, client)

	status := s.ComponentStatus()
	assert.Equal(t, 5, status["workflows"])
	assert.Equal(t, "empty", status["scene_cache_age"])
	assert.Equal(t, 5, status["intent_entries"])
	assert.Equal(t, false, status["intent_fallback"])
}

func TestProcessInvalidatesSceneCacheAfterEmit(t *testing.T) {
	client := &fakeClient{result: sceneWith([]any{2.0, 2.0, 2.0}, toolcall.ModeEdit, 8)}
	s := newTestSupervisor(t, client)

	_, err := s.Process(context.Background(), "mesh_bevel",
		map[string]any{"width": 0.1}, "bevel it")
	require.NoError(t, err)
	_, err = s.Process(context.Background(), "mesh_bevel",
		map[string]any{"width": 0.1}, "bevel it")
	require.NoError(t, err)

	// Without invalidation the second call would be served from cache.
	assert.Equal(t, 2, client.calls)
}

func TestStoreResolvedValueValidatesWorkflowAndParam(t *testing.T) {
	client := &fakeClient{result: sceneWith([]any{2.0, 2.0, 2.0}, toolcall.ModeEdit, 8)}
	s := newTestSupervisor(t, client)
	ctx := context.Background()

	require.Error(t, s.StoreResolvedValue(ctx, "p", "no_such_workflow", "taper", 0.5))
	require.Error(t, s.StoreResolvedValue(ctx, "p", "tower_workflow", "no_such_param", 0.5))
	require.NoError(t, s.StoreResolvedValue(ctx, "make the tower taper sharply", "tower_workflow", "taper", 0.5))
}
