// Package testutil builds small synthetic debug files for tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"debug/elf"
	"debug/macho"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/uuid"
)

// FixtureUUID is the identifier carried by most fixtures.
const FixtureUUID = "3d1a0b2c-4e5f-6071-8293-a4b5c6d7f00d"

// UUIDBytes returns the 16 raw bytes of a UUID string.
func UUIDBytes(s string) []byte {
	u := uuid.MustParse(s)
	return u[:]
}

// GUIDBytes returns the bytes an ELF build id must carry so that it
// normalizes to the UUID s (first three fields little-endian).
func GUIDBytes(s string) []byte {
	b := UUIDBytes(s)
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]
	return b
}

// ELFOptions configures ELF.
type ELFOptions struct {
	Machine   elf.Machine // default EM_X86_64
	BuildID   []byte      // omitted when nil
	DebugInfo bool
}

// ELF returns a minimal little-endian ELF64 shared object.
func ELF(o ELFOptions) []byte {
	machine := o.Machine
	if machine == 0 {
		machine = elf.EM_X86_64
	}

	type section struct {
		name string
		typ  elf.SectionType
		data []byte
	}
	var secs []section
	if o.BuildID != nil {
		secs = append(secs, section{".note.gnu.build-id", elf.SHT_NOTE, gnuNote(3, o.BuildID)})
	}
	if o.DebugInfo {
		secs = append(secs, section{".debug_info", elf.SHT_PROGBITS, []byte{0, 0, 0, 0}})
		secs = append(secs, section{".eh_frame", elf.SHT_PROGBITS, []byte{0, 0, 0, 0}})
	}

	shstr := []byte{0}
	names := make([]uint32, 0, len(secs)+1)
	for _, s := range secs {
		names = append(names, uint32(len(shstr)))
		shstr = append(shstr, s.name...)
		shstr = append(shstr, 0)
	}
	names = append(names, uint32(len(shstr)))
	shstr = append(shstr, ".shstrtab\x00"...)
	secs = append(secs, section{".shstrtab", elf.SHT_STRTAB, shstr})

	le := binary.LittleEndian
	var buf bytes.Buffer
	buf.Write(make([]byte, 64))
	offsets := make([]uint64, len(secs))
	for i, s := range secs {
		pad(&buf, 8)
		offsets[i] = uint64(buf.Len())
		buf.Write(s.data)
	}
	pad(&buf, 8)
	shoff := uint64(buf.Len())

	buf.Write(make([]byte, 64)) // SHN_UNDEF
	for i, s := range secs {
		var sh [64]byte
		le.PutUint32(sh[0:], names[i])
		le.PutUint32(sh[4:], uint32(s.typ))
		le.PutUint64(sh[24:], offsets[i])
		le.PutUint64(sh[32:], uint64(len(s.data)))
		le.PutUint64(sh[48:], 1)
		buf.Write(sh[:])
	}

	out := buf.Bytes()
	copy(out, []byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS64), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)})
	le.PutUint16(out[16:], uint16(elf.ET_DYN))
	le.PutUint16(out[18:], uint16(machine))
	le.PutUint32(out[20:], uint32(elf.EV_CURRENT))
	le.PutUint64(out[40:], shoff)
	le.PutUint16(out[52:], 64)
	le.PutUint16(out[54:], 56)
	le.PutUint16(out[58:], 64)
	le.PutUint16(out[60:], uint16(len(secs)+1))
	le.PutUint16(out[62:], uint16(len(secs)))
	return out
}

func gnuNote(typ uint32, desc []byte) []byte {
	le := binary.LittleEndian
	var buf bytes.Buffer
	var hdr [12]byte
	le.PutUint32(hdr[0:], 4)
	le.PutUint32(hdr[4:], uint32(len(desc)))
	le.PutUint32(hdr[8:], typ)
	buf.Write(hdr[:])
	buf.WriteString("GNU\x00")
	buf.Write(desc)
	pad(&buf, 4)
	return buf.Bytes()
}

// MachOOptions configures MachO.
type MachOOptions struct {
	Cpu       macho.Cpu // default CpuArm64
	SubCpu    uint32
	UUID      []byte // omitted when nil
	DebugInfo bool
	Hidden    bool // adds a __hidden# symbol
}

// MachO returns a minimal little-endian 64-bit MH_DSYM file.
func MachO(o MachOOptions) []byte {
	cpu := o.Cpu
	if cpu == 0 {
		cpu = macho.CpuArm64
	}
	le := binary.LittleEndian

	var cmds bytes.Buffer
	ncmds := 0
	if o.UUID != nil {
		var c [24]byte
		le.PutUint32(c[0:], 0x1b)
		le.PutUint32(c[4:], 24)
		copy(c[8:], o.UUID)
		cmds.Write(c[:])
		ncmds++
	}
	if o.DebugInfo {
		var seg [72 + 80]byte
		le.PutUint32(seg[0:], uint32(macho.LoadCmdSegment64))
		le.PutUint32(seg[4:], uint32(len(seg)))
		copy(seg[8:24], "__DWARF")
		le.PutUint32(seg[64:], 1) // nsects
		sect := seg[72:]
		copy(sect[0:16], "__debug_info")
		copy(sect[16:32], "__DWARF")
		cmds.Write(seg[:])
		ncmds++
	}

	var syms, strtab []byte
	if o.Hidden {
		strtab = []byte("\x00__hidden#0_\x00_main\x00")
		for _, strx := range []uint32{1, 13} {
			var n [16]byte
			le.PutUint32(n[0:], strx)
			n[4] = 0x0f
			syms = append(syms, n[:]...)
		}
	}
	symtabOff := 0
	if syms != nil {
		symtabOff = cmds.Len()
		cmds.Write(make([]byte, 24))
		ncmds++
	}

	hdrSize := 32
	raw := cmds.Bytes()
	if syms != nil {
		symoff := uint32(hdrSize + len(raw))
		c := raw[symtabOff:]
		le.PutUint32(c[0:], uint32(macho.LoadCmdSymtab))
		le.PutUint32(c[4:], 24)
		le.PutUint32(c[8:], symoff)
		le.PutUint32(c[12:], uint32(len(syms)/16))
		le.PutUint32(c[16:], symoff+uint32(len(syms)))
		le.PutUint32(c[20:], uint32(len(strtab)))
	}

	var out bytes.Buffer
	var hdr [32]byte
	le.PutUint32(hdr[0:], macho.Magic64)
	le.PutUint32(hdr[4:], uint32(cpu))
	le.PutUint32(hdr[8:], o.SubCpu)
	le.PutUint32(hdr[12:], 0xa) // MH_DSYM
	le.PutUint32(hdr[16:], uint32(ncmds))
	le.PutUint32(hdr[20:], uint32(len(raw)))
	out.Write(hdr[:])
	out.Write(raw)
	out.Write(syms)
	out.Write(strtab)
	return out.Bytes()
}

// Fat returns a universal binary holding one slice per option set.
func Fat(slices ...MachOOptions) []byte {
	be := binary.BigEndian
	datas := make([][]byte, len(slices))
	for i, s := range slices {
		datas[i] = MachO(s)
	}

	var out bytes.Buffer
	var hdr [8]byte
	be.PutUint32(hdr[0:], macho.MagicFat)
	be.PutUint32(hdr[4:], uint32(len(slices)))
	out.Write(hdr[:])

	off := 8 + 20*len(slices)
	off = (off + 15) &^ 15
	offsets := make([]int, len(slices))
	for i, d := range datas {
		offsets[i] = off
		off += len(d)
		off = (off + 15) &^ 15
	}
	for i, s := range slices {
		cpu := s.Cpu
		if cpu == 0 {
			cpu = macho.CpuArm64
		}
		var fa [20]byte
		be.PutUint32(fa[0:], uint32(cpu))
		be.PutUint32(fa[4:], s.SubCpu)
		be.PutUint32(fa[8:], uint32(offsets[i]))
		be.PutUint32(fa[12:], uint32(len(datas[i])))
		be.PutUint32(fa[16:], 4)
		out.Write(fa[:])
	}
	for i, d := range datas {
		out.Write(make([]byte, offsets[i]-out.Len()))
		out.Write(d)
	}
	return out.Bytes()
}

// Breakpad returns a Breakpad symbol file for debugID.
func Breakpad(arch, debugID, name string) []byte {
	return []byte(fmt.Sprintf("MODULE Linux %s %s %s\n"+
		"INFO CODE_ID 2C0B1A3D5F4E7160\n"+
		"FILE 0 /src/main.c\n"+
		"FUNC 1000 20 0 main\n"+
		"1000 20 12 0\n"+
		"STACK CFI INIT 1000 20 .cfa: $rsp 8 +\n", arch, debugID, name))
}

// Proguard is a small R8 mapping without a declared map id.
const Proguard = `# compiler: R8
# compiler_version: 8.2.42
com.example.MainActivity -> a.a:
    java.lang.String title -> a
    1:4:void onCreate(android.os.Bundle):12:15 -> onCreate
com.example.Util -> a.b:
    int count -> a
`

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// WriteDSYM writes a dSYM bundle dir/name.dSYM holding the given objects
// and returns the bundle path.
func WriteDSYM(t testing.TB, dir, name string, objects ...[]byte) string {
	t.Helper()
	bundle := filepath.Join(dir, name+".dSYM")
	dwarf := filepath.Join(bundle, "Contents", "Resources", "DWARF")
	if err := os.MkdirAll(dwarf, 0o755); err != nil {
		t.Fatal(err)
	}
	for i, obj := range objects {
		fn := name
		if i > 0 {
			fn = fmt.Sprintf("%s_%d", name, i)
		}
		WriteFile(t, filepath.Join(dwarf, fn), obj)
	}
	return bundle
}

// WriteZip writes a zip archive holding files (name -> content) in name order.
func WriteZip(t testing.TB, path string, files map[string][]byte) string {
	t.Helper()
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, n := range names {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(files[n]); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return WriteFile(t, path, buf.Bytes())
}

func pad(buf *bytes.Buffer, n int) {
	for buf.Len()%n != 0 {
		buf.WriteByte(0)
	}
}
