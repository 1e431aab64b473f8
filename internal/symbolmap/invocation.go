package symbolmap

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// DefaultTool is the symbol-map resolution tool looked up on PATH.
const DefaultTool = "dsymutil"

// Invocation is one run of the resolution tool.
type Invocation struct {
	Tool   string // resolved executable path
	MapDir string // directory holding <UUID>.bcsymbolmap files
	Bundle string // input bundle
	Output string // output bundle
}

// Args returns the tool arguments, without the executable.
func (i Invocation) Args() []string {
	return []string{"-symbol-map", i.MapDir, i.Bundle, "-o", i.Output}
}

func (i Invocation) String() string {
	return i.Tool + " " + strings.Join(i.Args(), " ")
}

// Runner starts the resolution tool.
type Runner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, inv Invocation) error
}

// ExecRunner runs the tool as a child process.
type ExecRunner struct{}

func (ExecRunner) LookPath(file string) (string, error) { return exec.LookPath(file) }

// Run executes inv and returns a *ToolError on a non-zero exit.
func (ExecRunner) Run(ctx context.Context, inv Invocation) error {
	cmd := exec.CommandContext(ctx, inv.Tool, inv.Args()...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ToolError{Invocation: inv, ExitCode: code, Output: out.String(), Err: err}
	}
	return nil
}
