// Package selection narrows a discovered set of debug files by identifier.
package selection

import (
	"errors"
	"fmt"
	"strings"

	"difutil/internal/debugid"
	"difutil/internal/dif"
)

// ErrMissingIDs is wrapped by *MissingIDsError.
var ErrMissingIDs = errors.New("selection: missing required identifiers")

// MissingIDsError lists the requested identifiers no usable file carried.
type MissingIDsError struct {
	IDs []debugid.ID
}

func (e *MissingIDsError) Error() string {
	parts := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		parts[i] = id.String()
	}
	return fmt.Sprintf("%v: %s", ErrMissingIDs, strings.Join(parts, ", "))
}

func (e *MissingIDsError) Unwrap() error { return ErrMissingIDs }

// Constraint is an optional set of requested identifiers.
type Constraint struct {
	IDs        []debugid.ID
	RequireAll bool
}

// Selection is the outcome of Select.
type Selection struct {
	Selected   []*dif.File
	Unusable   []*dif.File  // reported, never selected
	Unmatched  []debugid.ID // requested ids no usable file carries, in request order
	Duplicates []*dif.File  // archive copies of an already selected file
}

// Select picks the usable files that match c. With no requested ids every
// usable file is selected. Input order is preserved.
//
// When c.RequireAll is set and some requested id was not found, the
// selection is returned together with a *MissingIDsError.
func Select(files []*dif.File, c Constraint) (*Selection, error) {
	sel := &Selection{}
	want := make(map[debugid.ID]bool, len(c.IDs))
	for _, id := range c.IDs {
		want[id] = false
	}

	var seen []*dif.File
	for _, f := range files {
		if !f.IsUsable() {
			sel.Unusable = append(sel.Unusable, f)
			continue
		}
		if len(want) > 0 && !matchAny(f, want) {
			continue
		}
		if isArchiveCopy(f) && sameIDs(seen, f) {
			sel.Duplicates = append(sel.Duplicates, f)
			continue
		}
		seen = append(seen, f)
		sel.Selected = append(sel.Selected, f)
	}

	// An original found after its archive copy still wins.
	sel.Selected, sel.Duplicates = preferOriginals(sel.Selected, sel.Duplicates)

	var unmatched []debugid.ID
	for _, id := range c.IDs {
		if !want[id] {
			unmatched = debugid.AppendUnique(unmatched, id)
		}
	}
	sel.Unmatched = unmatched

	if c.RequireAll && len(unmatched) > 0 {
		return sel, &MissingIDsError{IDs: unmatched}
	}
	return sel, nil
}

// IDs returns the union of the selected files' identifiers in selection order.
func (s *Selection) IDs() []debugid.ID {
	var out []debugid.ID
	for _, f := range s.Selected {
		for _, id := range f.IDs() {
			out = debugid.AppendUnique(out, id)
		}
	}
	return out
}

func matchAny(f *dif.File, want map[debugid.ID]bool) bool {
	hit := false
	for _, have := range f.IDs() {
		for _, id := range []debugid.ID{have, have.Canonical()} {
			if _, ok := want[id]; ok {
				want[id] = true
				hit = true
			}
		}
	}
	return hit
}

// isArchiveCopy reports whether f was extracted from an archive.
func isArchiveCopy(f *dif.File) bool {
	return f.Archive() != ""
}

func sameIDs(seen []*dif.File, f *dif.File) bool {
	for _, s := range seen {
		if s.Kind() == f.Kind() && equalIDs(s.IDs(), f.IDs()) {
			return true
		}
	}
	return false
}

func equalIDs(a, b []debugid.ID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[debugid.ID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// preferOriginals swaps a selected archive copy for a later on-disk file
// with the same identifiers.
func preferOriginals(selected, dups []*dif.File) ([]*dif.File, []*dif.File) {
	out := selected[:0:0]
	for i, f := range selected {
		if isArchiveCopy(f) && hasOriginalAfter(selected[i+1:], f) {
			dups = append(dups, f)
			continue
		}
		out = append(out, f)
	}
	return out, dups
}

func hasOriginalAfter(rest []*dif.File, f *dif.File) bool {
	for _, o := range rest {
		if !isArchiveCopy(o) && o.Kind() == f.Kind() && equalIDs(o.IDs(), f.IDs()) {
			return true
		}
	}
	return false
}
