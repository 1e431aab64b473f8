package discover

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var zipMagic = []byte("PK\x03\x04")

// archiveSep joins an archive's display path with a member name.
const archiveSep = "!"

// workspace holds extracted archive content for one discovery run.
type workspace struct {
	parent string
	log    zerolog.Logger

	mu  sync.Mutex
	dir string
	n   int
}

func newWorkspace(parent string, log zerolog.Logger) *workspace {
	return &workspace{parent: parent, log: log}
}

// extract unpacks the zip at path into a fresh directory and returns it.
func (w *workspace) extract(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("discover: open zip: %w", err)
	}
	defer zr.Close()

	dest, err := w.newDir()
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !filepath.IsLocal(f.Name) {
			w.log.Warn().Str("archive", path).Str("member", f.Name).Msg("skipping member outside archive root")
			continue
		}
		if err := extractMember(f, filepath.Join(dest, filepath.FromSlash(f.Name))); err != nil {
			return "", fmt.Errorf("discover: extract %s%s%s: %w", path, archiveSep, f.Name, err)
		}
	}
	return dest, nil
}

func extractMember(f *zip.File, out string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	tmp, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return err
	}
	return tmp.Close()
}

func (w *workspace) newDir() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dir == "" {
		dir, err := os.MkdirTemp(w.parent, "difutil-*")
		if err != nil {
			return "", fmt.Errorf("discover: workspace: %w", err)
		}
		w.dir = dir
	}
	w.n++
	dest := filepath.Join(w.dir, fmt.Sprintf("%04d", w.n))
	if err := os.Mkdir(dest, 0o755); err != nil {
		return "", fmt.Errorf("discover: workspace: %w", err)
	}
	return dest, nil
}

// Close removes all extracted content. Safe to call more than once.
func (w *workspace) Close() error {
	w.mu.Lock()
	dir := w.dir
	w.dir = ""
	w.mu.Unlock()
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("discover: remove workspace: %w", err)
	}
	return nil
}

func isZip(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var head [4]byte
	n, err := io.ReadFull(f, head[:])
	if err != nil && n < len(head) {
		return false, nil
	}
	return bytes.Equal(head[:], zipMagic), nil
}
