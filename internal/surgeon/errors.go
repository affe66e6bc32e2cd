package surgeon

import (
	"errors"
	"fmt"

	"github.com/jacoelho/surgeon/internal/query"
	"github.com/jacoelho/surgeon/internal/value"
)

var (
	// ErrSurgeon is the kind of every error raised by the interpreter itself.
	ErrSurgeon = errors.New("surgeon error")

	ErrSubroutineNotFound        = fmt.Errorf("%w: subroutine does not exist", ErrSurgeon)
	ErrUnexpectedParameterLength = fmt.Errorf("%w: unexpected parameter length", ErrSurgeon)
	ErrInvalidAdoptParameter     = fmt.Errorf("%w: adopt parameter must be named branches", ErrSurgeon)
	ErrNilSubject                = fmt.Errorf("%w: query subject is nil", ErrSurgeon)

	// ErrInvalidData matches every *InvalidDataError.
	ErrInvalidData = fmt.Errorf("%w: invalid data", ErrSurgeon)

	ErrInvalidConfig = errors.New("invalid configuration")
)

// InvalidDataError reports a subroutine that found no data. Input is the
// result the subroutine was given.
type InvalidDataError struct {
	Instruction query.Instruction
	Input       value.Result
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("%s: %q produced no value for input %s", ErrInvalidData, e.Instruction.String(), value.Describe(e.Input))
}

func (e *InvalidDataError) Unwrap() error {
	return ErrInvalidData
}
