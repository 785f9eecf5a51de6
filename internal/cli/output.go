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
	ExitFailure      = 1 // Scenario failed, replay diverged, run stopped with an error
	ExitCommandError = 2 // Command error (invalid paths, bad configuration, unreadable input)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure for errors that are not an
// ExitError.
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

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose/diagnostic output, defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E201", ...
	Message string `json:"message"`           // human-readable message
	Line    int    `json:"line,omitempty"`    // configuration line, when known
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether output is machine-readable.
func (f *OutputFormatter) JSON() bool { return f.Format == "json" }

// Success outputs data in the configured format. In text mode text is
// printed instead; an empty text prints data with %v.
func (f *OutputFormatter) Success(data any, text string) error {
	if f.JSON() {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	if text == "" {
		text = fmt.Sprintln(data)
	}
	_, err := io.WriteString(f.Writer, text)
	return err
}

// Error outputs one or more errors in the configured format. The first
// error is the headline; all of them are listed.
func (f *OutputFormatter) Error(errs ...CLIError) error {
	if len(errs) == 0 {
		return nil
	}
	if f.JSON() {
		resp := CLIResponse{Status: "error", Error: &errs[0]}
		if len(errs) > 1 {
			resp.Data = errs
		}
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	for _, e := range errs {
		if e.Line > 0 {
			fmt.Fprintf(f.Writer, "Error [%s] line %d: %s\n", e.Code, e.Line, e.Message)
		} else {
			fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
		}
		if f.Verbose && e.Details != nil {
			fmt.Fprintf(f.Writer, "  Details: %v\n", e.Details)
		}
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled. It always
// goes to ErrWriter when set so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the writer for diagnostic output.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
