package objfile

import (
	"debug/macho"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	ErrNotMachO = errors.New("objfile: not a Mach-O file")
	ErrNoSlices = errors.New("objfile: no parsable Mach-O slices")
)

const (
	lcUUID = 0x1b

	// Symbol names obscured by bitcode compilation.
	hiddenSymbolPrefix = "__hidden#"
)

// Slice describes one architecture of a (possibly universal) Mach-O file.
type Slice struct {
	Arch          string
	UUID          []byte // 16 bytes, nil if the slice has no LC_UUID
	HasDebugInfo  bool
	HasSymbols    bool
	HasUnwindInfo bool
	HasHidden     bool
}

// OpenMachO reads all slices of the Mach-O file at path.
func OpenMachO(path string) ([]Slice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("objfile: open: %w", err)
	}
	defer f.Close()
	return ReadMachO(f)
}

// ReadMachO reads all slices of a thin or universal Mach-O file.
func ReadMachO(r io.ReaderAt) ([]Slice, error) {
	var magic [4]byte
	if _, err := r.ReadAt(magic[:], 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMachO, err)
	}

	if binary.BigEndian.Uint32(magic[:]) == macho.MagicFat {
		ff, err := macho.NewFatFile(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotMachO, err)
		}
		defer ff.Close()
		slices := make([]Slice, 0, len(ff.Arches))
		for _, a := range ff.Arches {
			slices = append(slices, readSlice(a.File))
		}
		if len(slices) == 0 {
			return nil, ErrNoSlices
		}
		return slices, nil
	}

	mf, err := macho.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMachO, err)
	}
	defer mf.Close()
	return []Slice{readSlice(mf)}, nil
}

func readSlice(f *macho.File) Slice {
	s := Slice{
		Arch:          cpuName(f.Cpu),
		UUID:          loadUUID(f),
		HasDebugInfo:  f.Section("__debug_info") != nil,
		HasUnwindInfo: f.Section("__eh_frame") != nil || f.Section("__unwind_info") != nil || f.Section("__debug_frame") != nil,
	}
	if f.Symtab != nil {
		s.HasSymbols = len(f.Symtab.Syms) > 0
		for _, sym := range f.Symtab.Syms {
			if strings.HasPrefix(sym.Name, hiddenSymbolPrefix) {
				s.HasHidden = true
				break
			}
		}
	}
	return s
}

func loadUUID(f *macho.File) []byte {
	for _, l := range f.Loads {
		lb, ok := l.(macho.LoadBytes)
		if !ok {
			continue
		}
		st := NewStream(lb.Raw(), f.ByteOrder)
		cmd, err := st.ReadUint32()
		if err != nil || cmd != lcUUID {
			continue
		}
		if _, err := st.ReadUint32(); err != nil { // cmdsize
			continue
		}
		id, err := st.ReadBytes(16)
		if err != nil {
			continue
		}
		return append([]byte(nil), id...)
	}
	return nil
}

func cpuName(c macho.Cpu) string {
	switch c {
	case macho.Cpu386:
		return "x86"
	case macho.CpuAmd64:
		return "x86_64"
	case macho.CpuArm:
		return "arm"
	case macho.CpuArm64:
		return "arm64"
	case macho.CpuPpc:
		return "ppc"
	case macho.CpuPpc64:
		return "ppc64"
	default:
		return strings.ToLower(strings.TrimPrefix(c.String(), "Cpu"))
	}
}
