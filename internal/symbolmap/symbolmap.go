// Package symbolmap resolves hidden symbols in dSYM bundles using BCSymbolMap
// files and an external tool. The original bundle is never modified; a
// resolved copy is written to a work directory.
package symbolmap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"difutil/internal/debugid"
	"difutil/internal/dif"
)

const (
	mapExt    = ".bcsymbolmap"
	mapHeader = "BCSymbolMap Version:"
)

// FindMaps indexes the BCSymbolMap files in dir by the UUID in their name.
// Files with a non-UUID name or without the map header are ignored.
func FindMaps(dir string) (map[debugid.ID]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("symbolmap: read %s: %w", dir, err)
	}
	maps := make(map[debugid.ID]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), mapExt) {
			continue
		}
		id, err := debugid.Parse(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil || id.IsOpaque() {
			continue
		}
		path := filepath.Join(dir, name)
		if ok, err := hasMapHeader(path); err != nil || !ok {
			continue
		}
		maps[id] = path
	}
	return maps, nil
}

func hasMapHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	return strings.HasPrefix(line, mapHeader), nil
}

// Resolver pairs bundles with their symbol maps and runs the tool.
type Resolver struct {
	Tool    string // executable name or path; DefaultTool when empty
	Runner  Runner // ExecRunner when nil
	WorkDir string // parent of resolved copies; a temp dir when empty
	Logger  zerolog.Logger

	tmp string
}

func (r *Resolver) runner() Runner {
	if r.Runner == nil {
		return ExecRunner{}
	}
	return r.Runner
}

// Applicable reports whether f is a bundle with hidden symbols.
func Applicable(f *dif.File) bool {
	return f.IsUsable() && f.Kind() == dif.KindDSYM && f.Features().HasHiddenSymbols
}

// Resolve writes a copy of f with hidden symbols resolved using the maps in
// mapDir and returns it opened. Files that need no resolution are returned
// unchanged with ErrNotApplicable. A missing tool or a failed run is an
// error; no partial result is returned.
func (r *Resolver) Resolve(ctx context.Context, f *dif.File, mapDir string) (*dif.File, error) {
	maps, err := FindMaps(mapDir)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, f, mapDir, maps)
}

func (r *Resolver) resolve(ctx context.Context, f *dif.File, mapDir string, maps map[debugid.ID]string) (*dif.File, error) {
	if !Applicable(f) {
		return f, ErrNotApplicable
	}
	if !hasMap(f, maps) {
		r.Logger.Debug().Str("path", f.Path()).Msg("no symbol map for bundle")
		return f, fmt.Errorf("%w: no symbol map for %s", ErrNotApplicable, f.Path())
	}

	tool := r.Tool
	if tool == "" {
		tool = DefaultTool
	}
	exe, err := r.runner().LookPath(tool)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolMissing, tool, err)
	}

	dir, err := r.outputDir()
	if err != nil {
		return nil, err
	}
	inv := Invocation{
		Tool:   exe,
		MapDir: mapDir,
		Bundle: f.Source(),
		Output: filepath.Join(dir, filepath.Base(f.Source())),
	}
	r.Logger.Info().Str("path", f.Path()).Str("cmd", inv.String()).Msg("resolving hidden symbols")
	if err := r.runner().Run(ctx, inv); err != nil {
		var terr *ToolError
		if errors.As(err, &terr) {
			return nil, err
		}
		return nil, &ToolError{Invocation: inv, ExitCode: -1, Err: err}
	}

	kind := f.Kind()
	out, err := dif.OpenWith(inv.Output, dif.OpenOptions{Hint: &kind, DisplayPath: f.Path()})
	if err != nil {
		return nil, fmt.Errorf("symbolmap: open resolved %s: %w", inv.Output, err)
	}
	return out, nil
}

// ResolveAll resolves every applicable file and passes the others through.
// The result is index-aligned with files.
func (r *Resolver) ResolveAll(ctx context.Context, files []*dif.File, mapDir string) ([]*dif.File, error) {
	maps, err := FindMaps(mapDir)
	if err != nil {
		return nil, err
	}
	out := make([]*dif.File, len(files))
	resolved := 0
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rf, err := r.resolve(ctx, f, mapDir, maps)
		switch {
		case errors.Is(err, ErrNotApplicable):
			out[i] = f
		case err != nil:
			return nil, err
		default:
			out[i] = rf
			resolved++
		}
	}
	r.Logger.Info().Int("resolved", resolved).Int("maps", len(maps)).Msg("symbol maps applied")
	return out, nil
}

// Close removes the temp work directory if the resolver created one.
func (r *Resolver) Close() error {
	if r.tmp == "" {
		return nil
	}
	dir := r.tmp
	r.tmp = ""
	return os.RemoveAll(dir)
}

func (r *Resolver) outputDir() (string, error) {
	parent := r.WorkDir
	if parent == "" {
		if r.tmp == "" {
			tmp, err := os.MkdirTemp("", "difutil-symbolmap-*")
			if err != nil {
				return "", fmt.Errorf("symbolmap: work dir: %w", err)
			}
			r.tmp = tmp
		}
		parent = r.tmp
	}
	dir, err := os.MkdirTemp(parent, "resolved-*")
	if err != nil {
		return "", fmt.Errorf("symbolmap: work dir: %w", err)
	}
	return dir, nil
}

func hasMap(f *dif.File, maps map[debugid.ID]string) bool {
	for _, id := range f.IDs() {
		if _, ok := maps[id]; ok {
			return true
		}
	}
	return false
}
