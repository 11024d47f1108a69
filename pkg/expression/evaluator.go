// Package expression evaluates boolean routing conditions against an
// execution context. Expressions are compiled to an AST and type-checked to
// produce a boolean before anything runs; the evaluator never executes an
// expression as host code.
package expression

import (
	"log/slog"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator compiles and runs condition expressions.
type Evaluator struct {
	logger *slog.Logger
}

// New creates an evaluator. A nil logger disables evaluation-failure logging.
func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Evaluator{logger: logger.With("module", "expression")}
}

// Compile parses and type-checks the expression. Anything that does not
// produce a boolean is rejected here, before evaluation.
func (e *Evaluator) Compile(source string) (*vm.Program, error) {
	return expr.Compile(source, expr.AsBool(), expr.AllowUndefinedVariables())
}

// EvaluateStrict compiles and runs the expression against env, propagating
// any compile or runtime error. An empty expression is vacuously true,
// matching an unconditioned edge.
func (e *Evaluator) EvaluateStrict(source string, env map[string]any) (bool, error) {
	if strings.TrimSpace(source) == "" {
		return true, nil
	}

	if env == nil {
		env = map[string]any{}
	}

	program, err := e.Compile(source)
	if err != nil {
		return false, err
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	value, ok := result.(bool)
	if !ok {
		return false, nil
	}

	return value, nil
}

// Evaluate runs the expression against env and recovers every failure as
// false: a malformed condition or a missing field degrades that one route
// instead of aborting the whole run.
func (e *Evaluator) Evaluate(source string, env map[string]any) bool {
	result, err := e.EvaluateStrict(source, env)
	if err != nil {
		e.logger.Debug("condition evaluation failed, treating as false",
			"expression", source, "error", err)

		return false
	}

	return result
}
