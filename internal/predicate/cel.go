package predicate

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// celVariable is the name the tested scalar is bound to.
const celVariable = "value"

var celEnvironment = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable(celVariable, cel.DynType))
})

func (e *Evaluator) program(operand any) (cel.Program, error) {
	expression, err := textOperand(OpCEL, operand)
	if err != nil {
		return nil, err
	}

	if cached, ok := e.programs.Load(expression); ok {
		return cached.(cel.Program), nil
	}

	env, err := celEnvironment()
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: invalid cel expression %q: %v", ErrInvalidCheck, expression, issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cel expression %q: %v", ErrInvalidCheck, expression, err)
	}

	e.programs.Store(expression, program)
	return program, nil
}

func (e *Evaluator) evaluateCEL(check Check, actual any) (bool, error) {
	program, err := e.program(check.Operands[0])
	if err != nil {
		return false, err
	}

	out, _, err := program.Eval(map[string]any{celVariable: actual})
	if err != nil {
		return false, fmt.Errorf("%w: cel expression %v: %v", ErrInvalidInput, check.Operands[0], err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: cel expression %v must return bool, got %T", ErrInvalidInput, check.Operands[0], out.Value())
	}
	return result, nil
}
