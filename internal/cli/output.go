package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario failures, skipped units under --strict
	ExitCommandError = 2 // Invalid flags, unreadable profiles, missing catalogue
)

// ExitError carries the exit code a command should terminate with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not
// an ExitError map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Error codes reported in the JSON envelope of a failed command.
const (
	CodeScenarioFailed = "E_SCENARIO_FAILED"
	CodeUnitsSkipped   = "E_UNITS_SKIPPED"
)

// OutputFormatter renders command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data as a JSON envelope, or calls text to render it.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	return f.write(CLIResponse{Status: "ok", Data: data}, data, text)
}

// Failure writes data with an error status. The data is still rendered
// so partial results (failed scenarios, skipped units) stay visible.
func (f *OutputFormatter) Failure(code, message string, data any, text func(w io.Writer)) error {
	resp := CLIResponse{
		Status: "error",
		Data:   data,
		Error:  &CLIError{Code: code, Message: message},
	}
	return f.write(resp, data, text)
}

func (f *OutputFormatter) write(resp CLIResponse, data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	if text != nil {
		text(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}
