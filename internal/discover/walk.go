package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"difutil/internal/diag"
	"difutil/internal/dif"
)

// Candidate is one recognized debug file found during a walk.
type Candidate struct {
	Path    string   // location on disk
	Display string   // user-facing path; archive members read "outer.zip!member"
	Kind    dif.Kind // detected kind
	Archive string   // display path of the enclosing archive, if any
}

type dedupKey struct {
	kind dif.Kind
	path string
}

// Walker enumerates candidates under a set of roots. A Walker is used for a
// single pass; Close removes any archive content it extracted.
type Walker struct {
	opts  Options
	log   zerolog.Logger
	ws    *workspace
	diags diag.Diags
	seen  map[dedupKey]bool
}

// NewWalker creates a walker for opts.
func NewWalker(opts Options) *Walker {
	return &Walker{
		opts: opts,
		log:  opts.Logger,
		ws:   newWorkspace(opts.TempDir, opts.Logger),
		seen: make(map[dedupKey]bool),
	}
}

// Skipped returns the diagnostics recorded so far.
func (w *Walker) Skipped() []diag.Diag { return w.diags.Items() }

// Close removes extracted archive content.
func (w *Walker) Close() error { return w.ws.Close() }

// Candidates walks roots in order and yields each recognized, deduplicated
// candidate as it is found. Iteration stops after the first yielded error.
// A root that does not exist is always an error; other unreadable entries
// are recorded and escalated only under diag.ModeStrict.
func (w *Walker) Candidates(ctx context.Context, roots []string) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		for _, root := range roots {
			if _, err := os.Stat(root); err != nil {
				yield(Candidate{}, fmt.Errorf("discover: root %s: %w", root, err))
				return
			}
		}
		if w.opts.DerivedData {
			if dd, ok := w.derivedData(); ok {
				roots = append(roots[:len(roots):len(roots)], dd)
			}
		}

		for _, root := range roots {
			err := w.walk(ctx, resolveRoot(root), underRoot(root), "", yield)
			if errors.Is(err, errStop) {
				return
			}
			if err != nil {
				yield(Candidate{}, err)
				return
			}
		}
	}
}

// errStop unwinds the walk when the consumer stops iterating.
var errStop = errors.New("discover: stopped")

// labeler maps an on-disk path under a walk root to its display path.
type labeler func(root, path string) string

// walk visits root. label names each entry and archive is the display path
// of the enclosing archive.
func (w *Walker) walk(ctx context.Context, root string, label labeler, archive string, yield func(Candidate, error) bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		shown := label(root, path)
		if err != nil {
			if rerr := w.opts.Policy.Record(&w.diags, shown, diag.KindOf(err), err); rerr != nil {
				return rerr
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if dif.IsBundle(path) {
				if !w.offer(Candidate{Path: path, Display: shown, Kind: dif.KindDSYM, Archive: archive}, yield) {
					return errStop
				}
				return fs.SkipDir
			}
			return nil
		}
		return w.visitFile(ctx, path, shown, archive, d, yield)
	})
}

func (w *Walker) visitFile(ctx context.Context, path, shown, archive string, d fs.DirEntry, yield func(Candidate, error) bool) error {
	if d.Type()&fs.ModeSymlink != 0 {
		if _, err := os.Stat(path); err != nil {
			return w.opts.Policy.Record(&w.diags, shown, diag.DiagSymlink, err)
		}
	} else if !d.Type().IsRegular() {
		return nil
	}

	if w.opts.SearchArchives {
		zipped, err := isZip(path)
		if err != nil {
			return w.opts.Policy.Record(&w.diags, shown, diag.KindOf(err), err)
		}
		if zipped {
			return w.expand(ctx, path, shown, yield)
		}
	}

	k, err := dif.Detect(path)
	switch {
	case errors.Is(err, dif.ErrNotRecognized):
		return nil
	case err != nil:
		return w.opts.Policy.Record(&w.diags, shown, diag.KindOf(err), err)
	}
	if !w.offer(Candidate{Path: path, Display: shown, Kind: k, Archive: archive}, yield) {
		return errStop
	}
	return nil
}

func (w *Walker) expand(ctx context.Context, path, shown string, yield func(Candidate, error) bool) error {
	dir, err := w.ws.extract(path)
	if err != nil {
		return w.opts.Policy.Record(&w.diags, shown, diag.DiagArchive, err)
	}
	w.log.Debug().Str("archive", shown).Str("dir", dir).Msg("expanded archive")
	return w.walk(ctx, dir, inArchive(shown), shown, yield)
}

// offer applies the kind filter and dedup, then yields c. It reports false
// when the consumer stopped iterating.
func (w *Walker) offer(c Candidate, yield func(Candidate, error) bool) bool {
	if !dif.KindList(w.opts.Kinds).Contains(c.Kind) {
		return true
	}
	resolved, err := filepath.EvalSymlinks(c.Path)
	if err != nil {
		resolved = c.Path
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}
	key := dedupKey{kind: c.Kind, path: resolved}
	if w.seen[key] {
		w.log.Debug().Str("path", c.Display).Msg("duplicate path")
		return true
	}
	w.seen[key] = true
	return yield(c, nil)
}

func (w *Walker) derivedData() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		w.diags.Add("DerivedData", diag.DiagMissing, err.Error())
		return "", false
	}
	dd := filepath.Join(home, "Library", "Developer", "Xcode", "DerivedData")
	if info, err := os.Stat(dd); err != nil || !info.IsDir() {
		w.diags.Add(dd, diag.DiagMissing, "derived data directory not found")
		return "", false
	}
	return dd, true
}

// resolveRoot follows a symlinked root so WalkDir descends into it.
func resolveRoot(root string) string {
	info, err := os.Lstat(root)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return root
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return root
	}
	return resolved
}

// underRoot labels entries relative to the root the user named.
func underRoot(named string) labeler {
	return func(root, path string) string {
		if root == named {
			return path
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return path
		}
		return filepath.Join(named, rel)
	}
}

// inArchive labels archive members as "outer.zip!member/path".
func inArchive(archive string) labeler {
	return func(root, path string) string {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return archive
		}
		return archive + archiveSep + filepath.ToSlash(rel)
	}
}
