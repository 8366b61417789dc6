package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/backoffice/internal/page"
	"github.com/roach88/backoffice/internal/record"
	"github.com/roach88/backoffice/internal/view"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation ran and failed (action failed, not signed in, ...)
	ExitCommandError = 2 // Command error (bad flags, unreadable config, unknown page, ...)
)

// Error codes carried in JSON error payloads.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeConfig       = "E002" // Config file or environment invalid
	ErrCodeCatalogue    = "E003" // Page definitions failed to load
	ErrCodeUnauthorized = "E004" // No verified session
	ErrCodeNotFound     = "E005" // Page, action or record not found
	ErrCodeInvalidInput = "E006" // Filter terms or action params rejected
	ErrCodeFetchFailed  = "E007" // Backend request failed
	ErrCodeActionFailed = "E008" // Row action failed or was refused
	ErrCodePartial      = "E009" // Compound action failed after a mutation
	ErrCodeWriteFailed  = "E010" // Local file or state write error
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
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
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
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
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
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
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether output is machine-readable.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Stream outputs one result of a long-running command: a compact JSON
// line in JSON mode, the value's text form otherwise.
func (f *OutputFormatter) Stream(data any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
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

// Fail reports an error and returns the ExitError the command should
// return, so callers can write "return f.Fail(...)".
func (f *OutputFormatter) Fail(exit int, code, message string, err error) error {
	var details any
	if err != nil {
		details = err.Error()
	}
	if outErr := f.Error(code, message, details); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, fmt.Sprintf("[%s] %s", code, message), err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// maxCellWidth bounds one table cell in text output.
const maxCellWidth = 32

// writeTable prints rows under the page's column labels.
func writeTable(w io.Writer, cols []page.Column, rows []record.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	labels := make([]string, len(cols))
	for i, c := range cols {
		labels[i] = c.Label
	}
	fmt.Fprintln(tw, strings.Join(labels, "\t"))

	for _, r := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = cellText(r, c.Field)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// writePager prints "Page 2 of 5 (48 records)" and the link bar.
func writePager(w io.Writer, st view.PageState) {
	fmt.Fprintf(w, "Page %d of %d (%d records)", st.Current, st.TotalPages(), st.Total)
	links := view.PageLinks(st.Current, st.TotalPages())
	if len(links) > 1 {
		fmt.Fprintf(w, "  %s", linkBar(links))
	}
	fmt.Fprintln(w)
}

func linkBar(links []view.PageLink) string {
	parts := make([]string, len(links))
	for i, l := range links {
		switch {
		case l.Ellipsis:
			parts[i] = "..."
		case l.Current:
			parts[i] = fmt.Sprintf("[%d]", l.Page)
		default:
			parts[i] = fmt.Sprint(l.Page)
		}
	}
	return strings.Join(parts, " ")
}

func cellText(r record.Record, field string) string {
	s, ok := r.Text(field)
	if !ok || s == "" {
		return "-"
	}
	s = strings.Join(strings.Fields(s), " ")
	if runes := []rune(s); len(runes) > maxCellWidth {
		return string(runes[:maxCellWidth-3]) + "..."
	}
	return s
}
