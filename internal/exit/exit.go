package exit

import (
	"fmt"
	"io"
	"os"
)

// Process exit codes.
const (
	CodeSuccess     = 0
	CodeFailure     = 1
	CodeInvalidData = 2
	CodeStructural  = 3
)

// Result holds the output destination and exit code for program termination.
type Result struct {
	Output   io.Writer
	ExitCode int
	Message  string
}

// Print writes the result message to the configured output destination.
func (r *Result) Print() {
	fmt.Fprint(r.Output, r.Message)
}

// Success creates a result that prints to stdout and exits with CodeSuccess.
func Success(message string) *Result {
	return &Result{
		Output:   os.Stdout,
		ExitCode: CodeSuccess,
		Message:  message,
	}
}

// Error creates a result that prints to stderr and exits with CodeFailure.
func Error(message string) *Result {
	return Failure(CodeFailure, message)
}

// Errorf creates an error exit result with formatted message.
func Errorf(format string, a ...any) *Result {
	return Error(fmt.Sprintf(format, a...))
}

// Failure creates a result that prints to stderr with the given exit code.
func Failure(code int, message string) *Result {
	return &Result{
		Output:   os.Stderr,
		ExitCode: code,
		Message:  message,
	}
}
