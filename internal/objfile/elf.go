// Package objfile opens native object files (ELF, Mach-O) and reads the
// structures needed to identify their debug information.
package objfile

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	ErrNotELF      = errors.New("objfile: not an ELF file")
	ErrNoBuildID   = errors.New("objfile: no NT_GNU_BUILD_ID note")
	ErrCorruptNote = errors.New("objfile: corrupt note")
)

const ntGNUBuildID = 3

// ELF wraps a debug/elf.File.
type ELF struct {
	ELF    *elf.File
	closer io.Closer
}

// OpenELF opens path as an ELF file.
func OpenELF(path string) (*ELF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("objfile: open: %w", err)
	}
	ef, err := NewELF(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	ef.closer = f
	return ef, nil
}

// NewELF parses an ELF file from r. The caller keeps ownership of r.
func NewELF(r io.ReaderAt) (*ELF, error) {
	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}
	return &ELF{ELF: ef}, nil
}

// Close releases resources.
func (f *ELF) Close() error {
	err := f.ELF.Close()
	if f.closer != nil {
		if cerr := f.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Note is one entry of an ELF note section or segment.
type Note struct {
	Name string
	Type uint32
	Desc []byte
}

// ParseNotes decodes a sequence of ELF notes.
//
// Layout per note: namesz(4) descsz(4) type(4) name(namesz, 4-aligned) desc(descsz, 4-aligned).
func ParseNotes(data []byte, bo binary.ByteOrder) ([]Note, error) {
	s := NewStream(data, bo)
	var notes []Note
	for s.Remaining() >= 12 {
		namesz, _ := s.ReadUint32()
		descsz, _ := s.ReadUint32()
		typ, _ := s.ReadUint32()
		name, err := s.ReadBytes(int(namesz))
		if err != nil {
			return notes, fmt.Errorf("%w: name at 0x%x", ErrCorruptNote, s.Position())
		}
		s.Align(4)
		desc, err := s.ReadBytes(int(descsz))
		if err != nil {
			return notes, fmt.Errorf("%w: desc at 0x%x", ErrCorruptNote, s.Position())
		}
		s.Align(4)
		notes = append(notes, Note{
			Name: strings.TrimRight(string(name), "\x00"),
			Type: typ,
			Desc: desc,
		})
	}
	return notes, nil
}

// BuildID returns the raw NT_GNU_BUILD_ID descriptor. Note sections are
// searched first, then PT_NOTE segments for files stripped of section headers.
func (f *ELF) BuildID() ([]byte, error) {
	for _, s := range f.ELF.Sections {
		if s.Type != elf.SHT_NOTE {
			continue
		}
		data, err := s.Data()
		if err != nil {
			continue
		}
		if id := findBuildID(data, f.ELF.ByteOrder); id != nil {
			return id, nil
		}
	}
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_NOTE {
			continue
		}
		data, err := io.ReadAll(p.Open())
		if err != nil {
			continue
		}
		if id := findBuildID(data, f.ELF.ByteOrder); id != nil {
			return id, nil
		}
	}
	return nil, ErrNoBuildID
}

func findBuildID(data []byte, bo binary.ByteOrder) []byte {
	notes, _ := ParseNotes(data, bo)
	for _, n := range notes {
		if n.Type == ntGNUBuildID && n.Name == "GNU" && len(n.Desc) > 0 {
			return n.Desc
		}
	}
	return nil
}

// HasSection reports whether any of the named sections is present.
func (f *ELF) HasSection(names ...string) bool {
	for _, name := range names {
		if f.ELF.Section(name) != nil {
			return true
		}
	}
	return false
}

// HasSymbols reports whether the file carries a non-empty symbol table.
func (f *ELF) HasSymbols() bool {
	for _, s := range f.ELF.Sections {
		if (s.Type == elf.SHT_SYMTAB || s.Type == elf.SHT_DYNSYM) && s.Size > 0 {
			return true
		}
	}
	return false
}

// Arch returns the architecture name used in debug file reports.
func (f *ELF) Arch() string {
	switch f.ELF.Machine {
	case elf.EM_X86_64:
		return "x86_64"
	case elf.EM_386:
		return "x86"
	case elf.EM_AARCH64:
		return "arm64"
	case elf.EM_ARM:
		return "arm"
	case elf.EM_PPC64:
		return "ppc64"
	case elf.EM_PPC:
		return "ppc"
	case elf.EM_MIPS:
		return "mips"
	case elf.EM_RISCV:
		return "riscv64"
	default:
		return strings.ToLower(strings.TrimPrefix(f.ELF.Machine.String(), "EM_"))
	}
}
