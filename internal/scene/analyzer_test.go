package scene

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelhq/scenepilot/internal/bridge"
)

type fakeClient struct {
	result map[string]any
	err    error
	calls  int
}

func (f *fakeClient) Send(_ context.Context, cmd bridge.Command, _ map[string]any) (map[string]any, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func sceneResult() map[string]any {
	return map[string]any{
		"mode":          "EDIT",
		"active_object": "Phone",
		"object_count":  float64(2),
		"dimensions":    []any{0.4, 0.8, 0.05},
		"selection_counts": map[string]any{
			"verts": float64(8), "edges": float64(12), "faces": float64(6),
		},
		"selected_objects": []any{"Phone"},
		"materials":        []any{"Screen", "Body"},
	}
}

func TestAnalyzeDecodesSnapshot(t *testing.T) {
	fc := &fakeClient{result: sceneResult()}
	a := NewAnalyzer(fc, time.Second, nil)

	c := a.Analyze(context.Background(), "")
	assert.Equal(t, "EDIT", c.Mode)
	assert.Equal(t, "Phone", c.ActiveObject)
	assert.Equal(t, 2, c.ObjectCount)
	assert.Equal(t, [3]float64{0.4, 0.8, 0.05}, c.Dimensions)
	assert.True(t, c.Proportions.IsFlat)
	assert.True(t, c.HasSelection())
	assert.False(t, c.Degraded)
}

func TestAnalyzeCachesWithinTTL(t *testing.T) {
	fc := &fakeClient{result: sceneResult()}
	a := NewAnalyzer(fc, time.Minute, nil)

	a.Analyze(context.Background(), "")
	a.Analyze(context.Background(), "")
	assert.Equal(t, 1, fc.calls)

	age, ok := a.CacheAge()
	require.True(t, ok)
	assert.Less(t, age, time.Minute)
}

func TestAnalyzeNamedObjectBypassesCache(t *testing.T) {
	fc := &fakeClient{result: sceneResult()}
	a := NewAnalyzer(fc, time.Minute, nil)

	a.Analyze(context.Background(), "")
	a.Analyze(context.Background(), "Phone")
	assert.Equal(t, 2, fc.calls)

	// The per-object query neither reads nor displaces the whole-scene
	// snapshot.
	a.Analyze(context.Background(), "")
	assert.Equal(t, 2, fc.calls)
	a.Analyze(context.Background(), "Phone")
	assert.Equal(t, 3, fc.calls)
}

func TestInvalidateCacheForcesRefetch(t *testing.T) {
	fc := &fakeClient{result: sceneResult()}
	a := NewAnalyzer(fc, time.Minute, nil)

	a.Analyze(context.Background(), "")
	a.InvalidateCache()
	a.Analyze(context.Background(), "")
	assert.Equal(t, 2, fc.calls)
}

func TestRPCFailureDegradesToEmpty(t *testing.T) {
	fc := &fakeClient{err: &bridge.RPCError{Command: bridge.CmdSceneGetContext, Msg: "down"}}
	a := NewAnalyzer(fc, time.Second, nil)

	c := a.Analyze(context.Background(), "")
	assert.True(t, c.Degraded)
	assert.Equal(t, "OBJECT", c.Mode)

	// Failures are not cached; the next call retries the boundary.
	a.Analyze(context.Background(), "")
	assert.Equal(t, 2, fc.calls)
}
