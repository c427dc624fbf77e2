// Package scene queries the application boundary for current state and
// derives the proportion profile and geometric patterns the router's
// correction and override stages key off.
package scene

import "time"

// Axis names for Proportions.DominantAxis.
const (
	AxisX = "x"
	AxisY = "y"
	AxisZ = "z"
)

// SelectionCounts is the vert/edge/face selection breakdown in edit mode.
type SelectionCounts struct {
	Verts int
	Edges int
	Faces int
}

// Context is a point-in-time snapshot of application state. It is never
// mutated after construction; the analyzer replaces it wholesale.
type Context struct {
	Mode            string
	ActiveObject    string
	SelectedObjects []string
	Selection       SelectionCounts
	ObjectCount     int
	Dimensions      [3]float64
	Proportions     Proportions
	Materials       []string
	Modifiers       []string
	Timestamp       time.Time
	// Degraded marks a snapshot fabricated after an RPC failure. Callers
	// treat it as "no information", not "nothing exists".
	Degraded bool
}

// Empty is the degraded snapshot returned when the boundary is
// unreachable: object mode, no selection, zero dimensions.
func Empty() Context {
	return Context{Mode: "OBJECT", Timestamp: time.Now(), Degraded: true}
}

// HasSelection reports whether any component or object is selected.
func (c Context) HasSelection() bool {
	return c.Selection.Verts > 0 || c.Selection.Edges > 0 || c.Selection.Faces > 0 ||
		len(c.SelectedObjects) > 0
}

// Proportions is a pure derivation of object dimensions. Recomputed from
// scratch on every snapshot, never patched.
type Proportions struct {
	AspectXY     float64
	AspectXZ     float64
	AspectYZ     float64
	MinDim       float64
	MaxDim       float64
	IsFlat       bool
	IsTall       bool
	IsWide       bool
	IsCubic      bool
	DominantAxis string
}

// DeriveProportions computes the profile for dimensions (x, y, z).
// Zero divisors fall back to an aspect of 1.0.
func DeriveProportions(x, y, z float64) Proportions {
	ratio := func(a, b float64) float64 {
		if b == 0 {
			return 1.0
		}
		return a / b
	}
	p := Proportions{
		AspectXY: ratio(x, y),
		AspectXZ: ratio(x, z),
		AspectYZ: ratio(y, z),
		MinDim:   min3(x, y, z),
		MaxDim:   max3(x, y, z),
	}
	p.IsFlat = z < minOf(x, y)*0.5
	p.IsTall = z > maxOf(x, y)*2.0
	p.IsWide = x > y*1.5 || y > x*1.5
	p.IsCubic = 0.7 < p.AspectXY && p.AspectXY < 1.3 && 0.7 < p.AspectXZ && p.AspectXZ < 1.3

	switch {
	case z >= maxOf(x, y):
		p.DominantAxis = AxisZ
	case x >= y:
		p.DominantAxis = AxisX
	default:
		p.DominantAxis = AxisY
	}
	return p
}

// ExprContext exposes the snapshot's numeric fields under the identifier
// names the expression evaluator resolves.
func (c Context) ExprContext() map[string]float64 {
	x, y, z := c.Dimensions[0], c.Dimensions[1], c.Dimensions[2]
	return map[string]float64{
		"width":     x,
		"depth":     y,
		"height":    z,
		"min_dim":   c.Proportions.MinDim,
		"max_dim":   c.Proportions.MaxDim,
		"aspect_xy": c.Proportions.AspectXY,
		"aspect_xz": c.Proportions.AspectXZ,
		"aspect_yz": c.Proportions.AspectYZ,
	}
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min3(a, b, c float64) float64 { return minOf(minOf(a, b), c) }
func max3(a, b, c float64) float64 { return maxOf(maxOf(a, b), c) }
