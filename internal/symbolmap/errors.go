package symbolmap

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotApplicable is returned for files that need no resolution. The
	// input file is returned unchanged alongside it.
	ErrNotApplicable = errors.New("symbolmap: not applicable")
	// ErrToolMissing means the resolution tool is not installed.
	ErrToolMissing = errors.New("symbolmap: resolution tool not found")
	// ErrToolFailed is wrapped by *ToolError.
	ErrToolFailed = errors.New("symbolmap: resolution tool failed")
)

// ToolError describes a failed tool run.
type ToolError struct {
	Invocation Invocation
	ExitCode   int    // -1 when the process did not exit normally
	Output     string // combined stdout and stderr, trimmed
	Err        error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%v: %s exited with %d", ErrToolFailed, e.Invocation, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

func (e *ToolError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrToolFailed, e.Err}
	}
	return []error{ErrToolFailed}
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
