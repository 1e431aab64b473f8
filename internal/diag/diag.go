// Package diag records entries skipped during a discovery walk and decides,
// through Mode, whether a skip aborts the walk.
package diag

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
)

// ErrSkipped is wrapped by *Error when a skip escalates under ModeStrict.
var ErrSkipped = errors.New("diag: entry skipped")

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagPermission DiagKind = "permission"
	DiagMissing    DiagKind = "missing"
	DiagIO         DiagKind = "io"
	DiagArchive    DiagKind = "archive"
	DiagSymlink    DiagKind = "symlink"
)

// Diag records an entry that could not be read during a walk.
type Diag struct {
	Path string   `json:"path"`
	Kind DiagKind `json:"kind"`
	Msg  string   `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Kind, d.Path, d.Msg)
}

// KindOf maps an I/O error onto a DiagKind.
func KindOf(err error) DiagKind {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return DiagPermission
	case errors.Is(err, fs.ErrNotExist):
		return DiagMissing
	default:
		return DiagIO
	}
}

// Diags accumulates diagnostics. Safe for concurrent use.
type Diags struct {
	mu    sync.Mutex
	items []Diag
}

func (d *Diags) Add(path string, kind DiagKind, msg string) {
	d.mu.Lock()
	d.items = append(d.items, Diag{Path: path, Kind: kind, Msg: msg})
	d.mu.Unlock()
}

func (d *Diags) Items() []Diag {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Diag(nil), d.items...)
}

func (d *Diags) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Mode controls whether skipped entries abort a walk.
type Mode int

const (
	ModeBestEffort Mode = iota // record and continue (default)
	ModeStrict                 // first skipped entry aborts
)

func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "best-effort"
}

// Error is returned when a skip escalates under ModeStrict.
type Error struct {
	Diag Diag
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Diag.Kind, e.Diag.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Diag.Kind, e.Diag.Path, e.Diag.Msg)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSkipped, e.Err}
	}
	return []error{ErrSkipped}
}

// Record adds a diagnostic for path and, under ModeStrict, returns an *Error
// describing it. Under ModeBestEffort it always returns nil.
func (m Mode) Record(d *Diags, path string, kind DiagKind, err error) error {
	d.Add(path, kind, err.Error())
	if m != ModeStrict {
		return nil
	}
	return &Error{Diag: Diag{Path: path, Kind: kind, Msg: err.Error()}, Err: err}
}
