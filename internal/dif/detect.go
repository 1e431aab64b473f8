package dif

import (
	"bufio"
	"bytes"
	"debug/macho"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ErrNotRecognized is returned by Detect when no variant matches.
var ErrNotRecognized = errors.New("dif: not a recognized debug information file")

// headSize is how much of a file detection looks at.
const headSize = 4096

var (
	elfMagic      = []byte("\x7fELF")
	breakpadMagic = []byte("MODULE ")

	// a.b.C -> x.y:
	proguardClassLine = regexp.MustCompile(`^[^\s#][^\s]* -> [^\s]+:$`)
	proguardHeader    = regexp.MustCompile(`^#\s*(compiler|compiler_version|min_api|pg_map_id|pg_map_hash)\s*:`)
)

// bundleDWARFDir is where a dSYM bundle keeps its object files.
var bundleDWARFDir = filepath.Join("Contents", "Resources", "DWARF")

// Detect determines the variant of the file or directory at path. It returns
// ErrNotRecognized when nothing matches and the underlying error for I/O
// failures.
func Detect(path string) (Kind, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("dif: detect: %w", err)
	}
	if info.IsDir() {
		if IsBundle(path) {
			return KindDSYM, nil
		}
		return "", ErrNotRecognized
	}
	head, err := readHead(path)
	if err != nil {
		return "", err
	}
	if k, ok := DetectBytes(head); ok {
		return k, nil
	}
	return "", ErrNotRecognized
}

// DetectBytes classifies the leading bytes of a file. Structural markers are
// checked in a fixed priority order; the first match wins.
func DetectBytes(head []byte) (Kind, bool) {
	for _, k := range Kinds() {
		if matchBytes(k, head) {
			return k, true
		}
	}
	return "", false
}

func matchBytes(k Kind, head []byte) bool {
	switch k {
	case KindDSYM:
		return isMachO(head)
	case KindELF:
		return bytes.HasPrefix(head, elfMagic)
	case KindBreakpad:
		return bytes.HasPrefix(head, breakpadMagic)
	case KindProguard:
		return isProguard(head)
	}
	return false
}

// matches reports whether the file at path carries k's structural marker.
// Used when the caller supplies an explicit kind and auto-detection is skipped.
func matches(k Kind, path string, info os.FileInfo) (bool, error) {
	if info.IsDir() {
		return k == KindDSYM && IsBundle(path), nil
	}
	head, err := readHead(path)
	if err != nil {
		return false, err
	}
	return matchBytes(k, head), nil
}

// IsBundle reports whether dir has the dSYM bundle layout.
func IsBundle(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, bundleDWARFDir))
	return err == nil && info.IsDir()
}

// bundleObjects lists the object files inside a dSYM bundle, sorted by name.
func bundleObjects(bundle string) ([]string, error) {
	dir := filepath.Join(bundle, bundleDWARFDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dif: read bundle: %w", err)
	}
	var objects []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		objects = append(objects, filepath.Join(dir, e.Name()))
	}
	sort.Strings(objects)
	return objects, nil
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dif: %w", err)
	}
	defer f.Close()

	buf := make([]byte, headSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("dif: read %s: %w", path, err)
	}
	return buf[:n], nil
}

func isMachO(head []byte) bool {
	if len(head) < 8 {
		return false
	}
	le := binary.LittleEndian.Uint32(head)
	be := binary.BigEndian.Uint32(head)
	for _, m := range []uint32{macho.Magic32, macho.Magic64} {
		if le == m || be == m {
			return true
		}
	}
	// Java class files share the universal magic; their version field reads
	// as a large arch count.
	if be == macho.MagicFat {
		n := binary.BigEndian.Uint32(head[4:])
		return n > 0 && n < 20
	}
	return false
}

func isProguard(head []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(head))
	sc.Buffer(make([]byte, 0, headSize), headSize)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if proguardHeader.MatchString(line) {
				return true
			}
			continue
		}
		return proguardClassLine.MatchString(line)
	}
	return false
}
