// Package output renders debug file summaries and hand-off manifests as
// plain text or indented JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"difutil/internal/debugid"
	"difutil/internal/diag"
	"difutil/internal/dif"
	"difutil/internal/selection"
)

// Summary is the rendered view of one debug file.
type Summary struct {
	Path     string       `json:"path"`
	Type     dif.Kind     `json:"type,omitempty"`
	Usable   bool         `json:"is_usable"`
	Problem  string       `json:"problem,omitempty"`
	IDs      []debugid.ID `json:"ids"`
	Arches   []string     `json:"arches,omitempty"`
	CodeID   string       `json:"code_id,omitempty"`
	Objects  []string     `json:"objects,omitempty"`
	Features dif.Features `json:"features"`
	Checksum string       `json:"checksum,omitempty"`
}

// Summarize captures f for rendering.
func Summarize(f *dif.File) Summary {
	ids := f.IDs()
	if ids == nil {
		ids = []debugid.ID{}
	}
	return Summary{
		Path:     f.Path(),
		Type:     f.Kind(),
		Usable:   f.IsUsable(),
		Problem:  f.Problem(),
		IDs:      ids,
		Arches:   nonEmpty(f.Arches()),
		CodeID:   f.CodeID(),
		Objects:  f.Objects(),
		Features: f.Features(),
		Checksum: f.Checksum(),
	}
}

func summarizeAll(files []*dif.File) []Summary {
	out := make([]Summary, 0, len(files))
	for _, f := range files {
		out = append(out, Summarize(f))
	}
	return out
}

// Manifest is what an uploader consumes: the selected files and their ids,
// plus everything left out and why.
type Manifest struct {
	Files      []Summary    `json:"files"`
	IDs        []debugid.ID `json:"ids"`
	Unmatched  []debugid.ID `json:"unmatched,omitempty"`
	Duplicates []string     `json:"duplicates,omitempty"`
	Unusable   []Summary    `json:"unusable,omitempty"`
	Skipped    []diag.Diag  `json:"skipped,omitempty"`
}

// NewManifest builds a manifest from a selection. files replaces
// sel.Selected when non-nil (e.g. after symbol-map resolution).
func NewManifest(sel *selection.Selection, files []*dif.File, skipped []diag.Diag) Manifest {
	if files == nil {
		files = sel.Selected
	}
	m := Manifest{
		Files:     summarizeAll(files),
		IDs:       sel.IDs(),
		Unmatched: sel.Unmatched,
		Skipped:   skipped,
	}
	if m.IDs == nil {
		m.IDs = []debugid.ID{}
	}
	for _, d := range sel.Duplicates {
		m.Duplicates = append(m.Duplicates, d.Path())
	}
	if len(sel.Unusable) > 0 {
		m.Unusable = summarizeAll(sel.Unusable)
	}
	return m
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode: %w", err)
	}
	return nil
}

// WriteJSONFile writes v as indented JSON to path, creating parent directories.
func WriteJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("output: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteJSON(f, v); err != nil {
		return fmt.Errorf("output: %s: %w", path, err)
	}
	return f.Close()
}

// WriteIDs writes one identifier per line.
func WriteIDs(w io.Writer, ids []debugid.ID) error {
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary writes a human-readable report for one file.
func WriteSummary(w io.Writer, s Summary) error {
	ew := &errWriter{w: w}
	ew.printf("Debug Info File Check\n")
	ew.printf("  Path: %s\n", s.Path)
	if s.Type != "" {
		ew.printf("  Type: %s\n", s.Type)
	} else {
		ew.printf("  Type: unknown\n")
	}
	if len(s.IDs) > 0 {
		ew.printf("  Contained debug identifiers:\n")
		for i, id := range s.IDs {
			if i < len(s.Arches) && s.Arches[i] != "" {
				ew.printf("    > %s (%s)\n", id, s.Arches[i])
			} else {
				ew.printf("    > %s\n", id)
			}
		}
	}
	if s.CodeID != "" {
		ew.printf("  Code identifier: %s\n", s.CodeID)
	}
	if feats := featureNames(s.Features); len(feats) > 0 {
		ew.printf("  Contained debug information:\n    > %s\n", strings.Join(feats, ", "))
	}
	if s.Usable {
		ew.printf("  Usable: yes\n")
	} else {
		ew.printf("  Usable: no (%s)\n", s.Problem)
	}
	return ew.err
}

// WriteManifest writes a line-oriented manifest: one selected file per line,
// followed by unmatched ids, duplicates, unusable files and skipped entries.
func WriteManifest(w io.Writer, m Manifest) error {
	ew := &errWriter{w: w}
	for _, s := range m.Files {
		ids := make([]string, len(s.IDs))
		for i, id := range s.IDs {
			ids[i] = id.String()
		}
		ew.printf("%s\t%s\t%s\n", s.Type, strings.Join(ids, ","), s.Path)
	}
	for _, id := range m.Unmatched {
		ew.printf("unmatched\t%s\n", id)
	}
	for _, p := range m.Duplicates {
		ew.printf("duplicate\t%s\n", p)
	}
	for _, s := range m.Unusable {
		ew.printf("unusable\t%s\t%s\n", s.Path, s.Problem)
	}
	for _, d := range m.Skipped {
		ew.printf("skipped\t%s\t%s: %s\n", d.Path, d.Kind, d.Msg)
	}
	return ew.err
}

func featureNames(f dif.Features) []string {
	var out []string
	if f.HasSymbols {
		out = append(out, "symtab")
	}
	if f.HasDebugInfo {
		out = append(out, "debug")
	}
	if f.HasUnwindInfo {
		out = append(out, "unwind")
	}
	if f.HasSources {
		out = append(out, "sources")
	}
	if f.HasLineInfo {
		out = append(out, "lines")
	}
	if f.HasHiddenSymbols {
		out = append(out, "hidden symbols")
	}
	return out
}

func nonEmpty(arches []string) []string {
	for _, a := range arches {
		if a != "" {
			return arches
		}
	}
	return nil
}

// errWriter remembers the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
