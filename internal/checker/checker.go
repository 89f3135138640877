// Package checker grades a sandbox execution outcome against a task's
// expected contract.
package checker

import (
	"fmt"
	"strings"

	"github.com/Ip-59/teachai/internal/domain"
	"github.com/Ip-59/teachai/internal/sandbox"
)

// Check compares an execution outcome against the task's expected contract
// and yields a verdict. It is a total function: any input produces a
// ValidationResult, never an error.
//
// Variable mode (task.CheckVariable set) uses deep value equality over the
// final bindings; output mode uses exact text equality after edge trimming.
// A non-empty execution error always fails the submission regardless of
// output match.
func Check(exec *sandbox.ExecResult, task *domain.Task) domain.ValidationResult {
	result := domain.ValidationResult{
		ActualOutput: strings.TrimSpace(exec.Stdout),
	}

	if exec.Error != "" {
		result.ErrorMessage = exec.Error
		return result
	}

	if task.GradesByVariable() {
		actual, ok := exec.Bindings[task.CheckVariable]
		result.ActualVariable = actual
		if !ok {
			result.ErrorMessage = fmt.Sprintf("variable %q is not defined after execution", task.CheckVariable)
			return result
		}
		result.IsCorrect = deepEqual(actual, task.ExpectedVariableValue)
		return result
	}

	result.IsCorrect = result.ActualOutput == strings.TrimSpace(task.ExpectedOutput)
	return result
}

// deepEqual compares JSON-shaped values: numbers across int/float
// representations, strings, booleans, order-sensitive sequences, and
// order-insensitive mappings with the same key set.
func deepEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if na, aok := toFloat(a); aok {
		nb, bok := toFloat(b)
		return bok && na == nb
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bval, ok := bv[k]
			if !ok || !deepEqual(v, bval) {
				return false
			}
		}
		return true
	}

	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
