package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_BooleanExpressions(t *testing.T) {
	evaluator := New(nil)

	env := map[string]any{
		"sentiment": "positive",
		"score":     0.92,
		"attempts":  3,
		"flagged":   false,
	}

	tests := []struct {
		expression string
		expected   bool
	}{
		{`sentiment == "positive"`, true},
		{`sentiment == "negative"`, false},
		{`score > 0.9`, true},
		{`score > 0.9 && attempts < 5`, true},
		{`flagged || attempts > 10`, false},
		{`!flagged`, true},
		{`attempts in [1, 2, 3]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			assert.Equal(t, tt.expected, evaluator.Evaluate(tt.expression, env))
		})
	}
}

func TestEvaluate_EmptyExpressionIsTrue(t *testing.T) {
	evaluator := New(nil)

	assert.True(t, evaluator.Evaluate("", nil))
	assert.True(t, evaluator.Evaluate("   ", map[string]any{}))
}

func TestEvaluate_MalformedExpressionIsFalse(t *testing.T) {
	evaluator := New(nil)

	assert.False(t, evaluator.Evaluate("sentiment ==", map[string]any{"sentiment": "x"}))
	assert.False(t, evaluator.Evaluate("((", nil))
}

func TestEvaluate_MissingFieldIsFalse(t *testing.T) {
	evaluator := New(nil)

	// nothing_here is undefined at runtime; the comparison fails and the
	// lenient evaluator recovers it as false.
	assert.False(t, evaluator.Evaluate(`nothing_here == "x"`, map[string]any{}))
}

func TestCompile_RejectsNonBoolean(t *testing.T) {
	evaluator := New(nil)

	_, err := evaluator.Compile(`1 + 2`)
	assert.Error(t, err)

	_, err = evaluator.Compile(`score > 0.5`)
	require.NoError(t, err)
}

func TestEvaluateStrict_PropagatesErrors(t *testing.T) {
	evaluator := New(nil)

	_, err := evaluator.EvaluateStrict("((", nil)
	assert.Error(t, err)

	result, err := evaluator.EvaluateStrict(`value > 1`, map[string]any{"value": 2})
	require.NoError(t, err)
	assert.True(t, result)
}
