package eval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateExprArithmetic(t *testing.T) {
	ctx := map[string]float64{"width": 2, "height": 8, "depth": 0.5}

	cases := []struct {
		expr string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"width * height", 16},
		{"height / width - depth", 3.5},
		{"-width + 5", 3},
		{"min(width, height, depth)", 0.5},
		{"max(width, height)", 8},
		{"abs(0 - width)", 2},
		{"round(2.4)", 2},
		{"floor(2.9)", 2},
		{"ceil(2.1)", 3},
		{"sqrt(width * width)", 2},
	}
	for _, tc := range cases {
		got, err := EvaluateExpr(tc.expr, ctx)
		require.NoError(t, err, tc.expr)
		assert.InDelta(t, tc.want, got, 1e-9, tc.expr)
	}
}

func TestEvaluateExprErrors(t *testing.T) {
	ctx := map[string]float64{"width": 2}

	bad := []string{
		"width + nope",
		"1 / 0",
		"width / (width - 2)",
		"(1 + 2",
		"min()",
		"frobnicate(1)",
		"sqrt(-1)",
		"1 + ",
	}
	for _, expr := range bad {
		_, err := EvaluateExpr(expr, ctx)
		require.Error(t, err, expr)
		var evalError *EvaluationError
		assert.True(t, errors.As(err, &evalError), expr)
	}
}

func TestAutoBevelResolvesFromMinDim(t *testing.T) {
	ctx := map[string]float64{"min_dim": 0.08, "max_dim": 1, "depth": 1, "height": 1}

	got, err := ResolveAuto("AUTO_BEVEL", ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.004, got, 1e-9)
}

func TestAutoConstantInsideExpression(t *testing.T) {
	ctx := map[string]float64{"min_dim": 0.08, "depth": 2}

	got, err := EvaluateExpr("$AUTO_BEVEL * 2", ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.008, got, 1e-9)

	got, err = EvaluateExpr("$AUTO_SCREEN_DEPTH_NEG", ctx)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, got, 1e-9)
}

func TestAutoConstantWithTinyDimension(t *testing.T) {
	// min_dim * 0.05 = 4e-05; the substituted literal must stay in plain
	// decimal form or the lexer rejects it.
	ctx := map[string]float64{"min_dim": 0.0008}

	got, err := EvaluateExpr("$AUTO_BEVEL", ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.00004, got, 1e-12)

	got, err = EvaluateExpr("$AUTO_BEVEL * 10", ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.0004, got, 1e-12)
}

func TestUnknownAutoConstant(t *testing.T) {
	_, err := EvaluateExpr("$AUTO_NOT_A_THING", map[string]float64{})
	require.Error(t, err)
}

func TestAutoConstantFormulasEvaluate(t *testing.T) {
	ctx := map[string]float64{
		"width": 1, "height": 2, "depth": 3, "min_dim": 1, "max_dim": 3,
	}
	for _, name := range AutoConstantNames() {
		_, err := ResolveAuto(name, ctx)
		require.NoError(t, err, name)
	}
}
