package dif

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"
)

// checksum fingerprints a file's content with xxh3-128. For a bundle it
// also returns the object files, which are hashed in name order, each
// framed by its name and length.
func checksum(k Kind, path string) (string, []string, error) {
	h := xxh3.New()
	if k == KindDSYM {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			objects, err := bundleObjects(path)
			if err != nil && isIOError(err) {
				return "", nil, err
			}
			for _, obj := range objects {
				if err := hashObject(h, obj); err != nil {
					return "", nil, err
				}
			}
			return digest(h), objects, nil
		}
	}
	if err := hashFile(h, path); err != nil {
		return "", nil, err
	}
	return digest(h), nil, nil
}

func digest(h *xxh3.Hasher) string {
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:])
}

// hashObject writes name, NUL, the 8-byte length and then the content, so
// renaming or re-splitting objects changes the digest.
func hashObject(h *xxh3.Hasher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("dif: %w", err)
	}
	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(info.Size()))
	_, _ = io.WriteString(h, filepath.Base(path))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(size[:])
	return hashFile(h, path)
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("dif: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("dif: hash %s: %w", path, err)
	}
	return nil
}
