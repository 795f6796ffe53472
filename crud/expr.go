package crud

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/google/cel-go/cel"

	"github.com/jacentio/recrud/internal/keys"
	"github.com/jacentio/recrud/service"
	"github.com/jacentio/recrud/store"
)

// CompileKeyExpr compiles an expr-lang expression into a key extractor. The
// record's fields are the expression's variables; undefined fields are nil.
// A nil or empty result, or an evaluation error, leaves the identity
// unresolved.
func CompileKeyExpr(src string) (store.KeyExtractor, error) {
	program, err := expr.Compile(src,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: keyExpr: %w", ErrInvalidExpression, err)
	}

	return func(data map[string]any) string {
		env := make(map[string]any, len(data))
		for k, v := range data {
			env[k] = v
		}
		out, err := expr.Run(program, env)
		if err != nil || out == nil {
			return ""
		}
		return keys.Format(out)
	}, nil
}

// CompileSuccessExpr compiles a CEL expression into a success predicate. The
// expression sees status (int), success (bool) and response (dyn) and must
// yield a bool. Evaluation errors count as failure.
func CompileSuccessExpr(src string) (func(service.Result) bool, error) {
	env, err := cel.NewEnv(
		cel.Variable("status", cel.IntType),
		cel.Variable("success", cel.BoolType),
		cel.Variable("response", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: successExpr: %w", ErrInvalidExpression, err)
	}
	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: successExpr: %w", ErrInvalidExpression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: successExpr must be boolean, got %s", ErrInvalidExpression, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: successExpr: %w", ErrInvalidExpression, err)
	}

	return func(res service.Result) bool {
		out, _, err := program.Eval(map[string]any{
			"status":   int64(res.StatusCode),
			"success":  res.Success,
			"response": res.ResponseData,
		})
		if err != nil {
			return false
		}
		ok, _ := out.Value().(bool)
		return ok
	}, nil
}
