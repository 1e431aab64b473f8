// Package discover finds debug information files under a set of roots,
// optionally looking inside zip archives, and opens them in parallel.
package discover

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"difutil/internal/diag"
	"difutil/internal/dif"
)

// ErrNoUsable is returned by Result.CheckUsable when nothing usable was found.
var ErrNoUsable = errors.New("discover: no usable debug information files found")

// Options tunes a discovery pass. The zero value walks the roots without
// looking into archives, skips unreadable entries and uses one worker per CPU.
type Options struct {
	SearchArchives bool       // expand zip archives and walk their members
	DerivedData    bool       // also walk ~/Library/Developer/Xcode/DerivedData
	Kinds          []dif.Kind // only keep these kinds; empty keeps all
	Policy         diag.Mode  // whether a skipped entry aborts the pass
	Workers        int        // parse concurrency; <= 0 means runtime.NumCPU()
	TempDir        string     // parent of the archive workspace; "" means os.TempDir()
	Logger         zerolog.Logger
	Cache          *dif.Cache
}

// Result is the outcome of one discovery pass.
type Result struct {
	Files   []*dif.File // deduplicated, in traversal order
	Skipped []diag.Diag

	closer func() error
}

// Usable returns the files that carry at least one identifier.
func (r *Result) Usable() []*dif.File {
	var out []*dif.File
	for _, f := range r.Files {
		if f.IsUsable() {
			out = append(out, f)
		}
	}
	return out
}

// CheckUsable returns an error wrapping ErrNoUsable when no file is usable.
func (r *Result) CheckUsable() error {
	if len(r.Usable()) == 0 {
		return fmt.Errorf("%w (%d candidates, %d skipped)", ErrNoUsable, len(r.Files), len(r.Skipped))
	}
	return nil
}

// Close removes content extracted from archives. Files whose Source lies in
// the workspace are unreadable afterwards.
func (r *Result) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	closer := r.closer
	r.closer = nil
	return closer()
}

// slot receives one parse result; slots keep traversal order while workers
// finish out of order.
type slot struct {
	file *dif.File
}

// Discover walks roots and opens every candidate on a bounded worker pool.
// The returned Result must be closed. On error the archive workspace has
// already been removed.
func Discover(ctx context.Context, roots []string, opts Options) (res *Result, err error) {
	log := opts.Logger
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	w := NewWalker(opts)
	defer func() {
		if err != nil {
			if cerr := w.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("failed to clean up archive workspace")
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var slots []*slot
	for c, werr := range w.Candidates(gctx, roots) {
		if werr != nil {
			// A worker failure cancels gctx; report it rather than the
			// cancellation the walker saw.
			if gerr := g.Wait(); gerr != nil {
				return nil, gerr
			}
			return nil, werr
		}
		s := &slot{}
		slots = append(slots, s)
		g.Go(func() error {
			f, err := open(c, opts.Cache)
			if err != nil {
				return opts.Policy.Record(&w.diags, c.Display, diag.KindOf(err), err)
			}
			log.Debug().
				Str("path", f.Path()).
				Str("kind", string(f.Kind())).
				Bool("usable", f.IsUsable()).
				Str("problem", f.Problem()).
				Msg("opened candidate")
			s.file = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res = &Result{Skipped: w.Skipped(), closer: w.Close}
	for _, s := range slots {
		if s.file != nil {
			res.Files = append(res.Files, s.file)
		}
	}
	log.Info().
		Int("files", len(res.Files)).
		Int("usable", len(res.Usable())).
		Int("skipped", len(res.Skipped)).
		Msg("discovery finished")
	return res, nil
}

func open(c Candidate, cache *dif.Cache) (*dif.File, error) {
	kind := c.Kind
	return dif.OpenWith(c.Path, dif.OpenOptions{
		Hint:        &kind,
		Cache:       cache,
		DisplayPath: c.Display,
		Archive:     c.Archive,
	})
}
