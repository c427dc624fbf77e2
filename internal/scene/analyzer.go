package scene

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/voxelhq/scenepilot/internal/bridge"
	"github.com/voxelhq/scenepilot/internal/logging"
)

// DefaultCacheTTL is how long a snapshot stays fresh. Scene state changes
// whenever the outer layer executes a call, so this is deliberately short;
// the router also invalidates explicitly after emitting mutating calls.
const DefaultCacheTTL = time.Second

// Analyzer queries the application boundary and caches the snapshot.
type Analyzer struct {
	client bridge.Client
	ttl    time.Duration
	log    *slog.Logger

	group singleflight.Group

	mu        sync.Mutex
	cached    *Context
	fetchedAt time.Time
}

// NewAnalyzer builds an analyzer over the boundary client. A zero ttl
// means DefaultCacheTTL; a nil logger discards.
func NewAnalyzer(client bridge.Client, ttl time.Duration, log *slog.Logger) *Analyzer {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Analyzer{client: client, ttl: ttl, log: log}
}

// Analyze returns the current scene snapshot, serving the whole-scene
// query from cache while it is fresh. Queries for a named object bypass
// the cache; only the whole-scene snapshot is stored. On RPC failure it
// returns Empty() rather than propagating: downstream stages treat the
// degraded snapshot as no information. Concurrent callers for the same
// object share one in-flight query.
func (a *Analyzer) Analyze(ctx context.Context, objectName string) Context {
	if objectName == "" {
		a.mu.Lock()
		if a.cached != nil && time.Since(a.fetchedAt) < a.ttl {
			c := *a.cached
			a.mu.Unlock()
			return c
		}
		a.mu.Unlock()
	}

	v, _, _ := a.group.Do("scene:"+objectName, func() (any, error) {
		return a.fetch(ctx, objectName), nil
	})
	return v.(Context)
}

func (a *Analyzer) fetch(ctx context.Context, objectName string) Context {
	params := map[string]any{}
	if objectName != "" {
		params["object"] = objectName
	}
	result, err := a.client.Send(ctx, bridge.CmdSceneGetContext, params)
	if err != nil {
		a.log.Warn("scene query failed, degrading to empty context", "error", err)
		return Empty()
	}
	snapshot := decodeContext(result)

	if objectName == "" {
		a.mu.Lock()
		a.cached = &snapshot
		a.fetchedAt = time.Now()
		a.mu.Unlock()
	}
	return snapshot
}

// InvalidateCache forces a fresh query on the next Analyze call. The
// router calls this after any mutating call is handed to the outer layer.
func (a *Analyzer) InvalidateCache() {
	a.mu.Lock()
	a.cached = nil
	a.mu.Unlock()
}

// CacheAge reports how old the cached snapshot is, and whether one exists.
func (a *Analyzer) CacheAge() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cached == nil {
		return 0, false
	}
	return time.Since(a.fetchedAt), true
}

// decodeContext maps the boundary's scene.get_context result onto a
// snapshot. Missing fields keep zero values; dimensions drive the derived
// proportion profile.
func decodeContext(m map[string]any) Context {
	c := Context{
		Mode:         str(m["mode"]),
		ActiveObject: str(m["active_object"]),
		ObjectCount:  num(m["object_count"]),
		Timestamp:    time.Now(),
	}
	if c.Mode == "" {
		c.Mode = "OBJECT"
	}
	c.SelectedObjects = strs(m["selected_objects"])
	c.Materials = strs(m["materials"])
	c.Modifiers = strs(m["modifiers"])
	if counts, ok := m["selection_counts"].(map[string]any); ok {
		c.Selection = SelectionCounts{
			Verts: num(counts["verts"]),
			Edges: num(counts["edges"]),
			Faces: num(counts["faces"]),
		}
	}
	if dims, ok := m["dimensions"].([]any); ok && len(dims) == 3 {
		for i, d := range dims {
			if f, ok := toFloat(d); ok {
				c.Dimensions[i] = f
			}
		}
	}
	c.Proportions = DeriveProportions(c.Dimensions[0], c.Dimensions[1], c.Dimensions[2])
	return c
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strs(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func num(v any) int {
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return int(f)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
