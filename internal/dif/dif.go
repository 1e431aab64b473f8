// Package dif opens debug information files (dSYM bundles and Mach-O objects,
// ELF objects, Proguard mappings, Breakpad symbols), classifies them and
// extracts their canonical identifiers.
//
// Open never fails because a file is not a usable debug file: such files are
// returned with IsUsable() == false and a Problem() describing why. Only real
// I/O failures (missing path, permission denied) are returned as errors.
package dif

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"difutil/internal/debugid"
)

// Features mirrors the capability flags a symbol server reports per image.
type Features struct {
	HasDebugInfo     bool `json:"has_debug_info"`
	HasSymbols       bool `json:"has_symbols"`
	HasUnwindInfo    bool `json:"has_unwind_info"`
	HasSources       bool `json:"has_sources"`
	HasHiddenSymbols bool `json:"has_hidden_symbols"`
	HasLineInfo      bool `json:"has_line_info"`
}

func (f *Features) merge(o Features) {
	f.HasDebugInfo = f.HasDebugInfo || o.HasDebugInfo
	f.HasSymbols = f.HasSymbols || o.HasSymbols
	f.HasUnwindInfo = f.HasUnwindInfo || o.HasUnwindInfo
	f.HasSources = f.HasSources || o.HasSources
	f.HasHiddenSymbols = f.HasHiddenSymbols || o.HasHiddenSymbols
	f.HasLineInfo = f.HasLineInfo || o.HasLineInfo
}

// payload carries the fields only one variant needs. The set of
// implementations is closed: bundlePayload, elfPayload, proguardPayload,
// breakpadPayload.
type payload interface {
	kind() Kind
}

type bundlePayload struct{}

type elfPayload struct {
	buildID []byte
}

type proguardPayload struct {
	declared bool
	classes  int
}

type breakpadPayload struct {
	os     string
	arch   string
	name   string
	codeID string
}

func (bundlePayload) kind() Kind   { return KindDSYM }
func (elfPayload) kind() Kind      { return KindELF }
func (proguardPayload) kind() Kind { return KindProguard }
func (breakpadPayload) kind() Kind { return KindBreakpad }

// result is the path-independent outcome of extraction; it is what the
// parse cache stores.
type result struct {
	ids      []debugid.ID
	arches   []string
	features Features
	problem  string
	payload  payload
}

func (r *result) addID(id debugid.ID, arch string) {
	for _, have := range r.ids {
		if have == id {
			return
		}
	}
	r.ids = append(r.ids, id)
	r.arches = append(r.arches, arch)
}

// File is one debug information file.
type File struct {
	kind     Kind
	path     string
	source   string
	archive  string
	checksum string
	objects  []string
	result
}

// OpenOptions tunes Open.
type OpenOptions struct {
	// Hint skips detection and treats the file as this kind.
	Hint *Kind
	// Cache reuses extraction results for identical content.
	Cache *Cache
	// DisplayPath overrides Path(), e.g. "app.zip!lib/libfoo.so".
	DisplayPath string
	// Archive is the display path of the enclosing archive for files
	// extracted from one.
	Archive string
}

// Open opens the debug information file at path. A nil hint auto-detects.
func Open(path string, hint *Kind) (*File, error) {
	return OpenWith(path, OpenOptions{Hint: hint})
}

// OpenWith is Open with options.
func OpenWith(path string, opts OpenOptions) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("dif: open: %w", err)
	}

	f := &File{path: path, source: path, archive: opts.Archive}
	if opts.DisplayPath != "" {
		f.path = opts.DisplayPath
	}

	if opts.Hint != nil {
		f.kind = *opts.Hint
		ok, err := matches(f.kind, path, info)
		if err != nil {
			return nil, err
		}
		if !ok {
			found := "unrecognized data"
			if k, err := Detect(path); err == nil {
				found = string(k)
			}
			f.problem = fmt.Sprintf("type mismatch: expected %s, found %s", f.kind, found)
			return f, nil
		}
	} else {
		k, err := Detect(path)
		if errors.Is(err, ErrNotRecognized) {
			f.problem = "unrecognized file format"
			return f, nil
		}
		if err != nil {
			return nil, err
		}
		f.kind = k
	}

	if err := f.load(opts.Cache); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) load(cache *Cache) error {
	sum, objects, err := checksum(f.kind, f.source)
	if err != nil {
		return err
	}
	f.checksum = sum
	for _, obj := range objects {
		f.objects = append(f.objects, filepath.Base(obj))
	}

	if r, ok := cache.get(f.kind, sum); ok {
		f.result = r
		return nil
	}
	r, err := extract(f.kind, f.source)
	if err != nil {
		return err
	}
	if len(r.ids) == 0 && r.problem == "" {
		r.problem = "no identifiers found"
	}
	if r.problem != "" {
		r.ids, r.arches = nil, nil
	}
	cache.add(f.kind, sum, r)
	f.result = r
	return nil
}

// extract dispatches to the variant's extractor. Parse failures are reported
// through result.problem; only I/O failures are returned.
func extract(k Kind, path string) (result, error) {
	switch k {
	case KindDSYM:
		return extractMachO(path)
	case KindELF:
		return extractELF(path)
	case KindProguard:
		return extractProguard(path)
	case KindBreakpad:
		return extractBreakpad(path)
	}
	return result{problem: fmt.Sprintf("unsupported type %q", k)}, nil
}

// isIOError reports errors that mean the file could not be read at all.
func isIOError(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

// Kind returns the variant. Empty for unrecognized files opened without a hint.
func (f *File) Kind() Kind { return f.kind }

// Path returns the display path.
func (f *File) Path() string { return f.path }

// Source returns the on-disk location. It differs from Path for archive
// members and for files found under a symlinked search root.
func (f *File) Source() string { return f.source }

// Archive returns the display path of the archive the file was extracted
// from, or "" for files found on disk.
func (f *File) Archive() string { return f.archive }

// IsUsable reports whether the file was recognized, parsed and has at least one identifier.
func (f *File) IsUsable() bool { return f.problem == "" && len(f.ids) > 0 }

// Problem describes why the file is not usable; empty when it is.
func (f *File) Problem() string { return f.problem }

// IDs returns the identifiers in discovery order; empty when not usable.
func (f *File) IDs() []debugid.ID {
	if !f.IsUsable() {
		return nil
	}
	return append([]debugid.ID(nil), f.ids...)
}

// Arches returns the architecture of each identifier, index-aligned with IDs.
func (f *File) Arches() []string {
	if !f.IsUsable() {
		return nil
	}
	return append([]string(nil), f.arches...)
}

// HasID reports whether id is one of the file's identifiers. Declared
// opaque ids also match their parsed form.
func (f *File) HasID(id debugid.ID) bool {
	for _, have := range f.IDs() {
		if have == id || have.Canonical() == id {
			return true
		}
	}
	return false
}

// Features returns the capability flags.
func (f *File) Features() Features { return f.features }

// Checksum returns the hex xxh3-128 content fingerprint.
func (f *File) Checksum() string { return f.checksum }

// CodeID returns the code identifier when the format carries one.
func (f *File) CodeID() string {
	switch p := f.payload.(type) {
	case elfPayload:
		return fmt.Sprintf("%x", p.buildID)
	case breakpadPayload:
		return p.codeID
	}
	return ""
}

// Objects returns the object file names inside a dSYM bundle.
func (f *File) Objects() []string {
	return append([]string(nil), f.objects...)
}

// DeclaredID reports whether a Proguard mapping's id came from its header.
func (f *File) DeclaredID() bool {
	p, ok := f.payload.(proguardPayload)
	return ok && p.declared
}

func (f *File) String() string {
	if f.IsUsable() {
		return fmt.Sprintf("%s (%s, %d ids)", f.path, f.kind, len(f.ids))
	}
	return fmt.Sprintf("%s (%s, unusable: %s)", f.path, f.kind, f.problem)
}
