package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ist-dresden/composum-platform-sub002/internal/condition"
	"github.com/ist-dresden/composum-platform-sub002/internal/config"
	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/query"
	"github.com/ist-dresden/composum-platform-sub002/internal/release"
	"github.com/ist-dresden/composum-platform-sub002/internal/typesys"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Differences found (reconcile reported deleted or changed versionables)
	ExitCommandError = 2 // Command error (bad arguments, unreadable config, backend failure)
)

// Error codes in the JSON envelope.
const (
	ErrCodeGeneric  = "E001"
	ErrCodeConfig   = "E002" // Configuration or type registry unusable
	ErrCodeStore    = "E003" // Database cannot be opened
	ErrCodeUsage    = "E004" // Malformed query or condition
	ErrCodeBackend  = "E005" // Query failed in the store
	ErrCodeNotFound = "E006" // Node or release missing
	ErrCodeInput    = "E007" // Unreadable input file
)

// ExitError carries the exit code a failed command ends the process with.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
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

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode classifies err for the JSON envelope.
func ErrorCode(err error) string {
	var cfgErr *config.ConfigError
	var compileErr *typesys.CompileError
	var unknownType *typesys.UnknownTypeError
	var validation *release.ValidationError
	var parseErr *condition.ParseError
	var buildErr *condition.BuildError
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &compileErr):
		return ErrCodeConfig
	case query.IsUsageError(err), errors.As(err, &unknownType), errors.As(err, &validation),
		errors.As(err, &parseErr), errors.As(err, &buildErr):
		return ErrCodeUsage
	case query.IsBackendError(err):
		return ErrCodeBackend
	case errors.Is(err, content.ErrNotFound), errors.Is(err, release.ErrNoSuchRelease):
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}

// OutputFormatter writes command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Verbose and diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of the envelope.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// TextRenderer is implemented by results with a dedicated text form.
type TextRenderer interface {
	RenderText(w io.Writer) error
}

// Success writes data. In text mode a TextRenderer renders itself, other
// values are printed with fmt.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	if r, ok := data.(TextRenderer); ok {
		return r.RenderText(f.Writer)
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err through the formatter and returns it as an ExitError
// with the given code.
func (f *OutputFormatter) Fail(code int, message string, err error) error {
	return f.FailCode(ErrorCode(err), code, message, err)
}

// FailCode is Fail with an explicit envelope error code.
func (f *OutputFormatter) FailCode(errCode string, code int, message string, err error) error {
	_ = f.Error(errCode, fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(code, message, err)
}

// VerboseLog writes to ErrWriter only in verbose mode, keeping JSON output
// on Writer intact.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
