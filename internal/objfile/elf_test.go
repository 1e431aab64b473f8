package objfile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"difutil/internal/testutil"
)

func TestOpenELFBuildID(t *testing.T) {
	want := testutil.GUIDBytes(testutil.FixtureUUID)
	path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "libfoo.so"),
		testutil.ELF(testutil.ELFOptions{BuildID: want, DebugInfo: true}))

	ef, err := OpenELF(path)
	require.NoError(t, err)
	defer ef.Close()

	id, err := ef.BuildID()
	require.NoError(t, err)
	assert.Equal(t, want, id)
	assert.True(t, ef.HasSection(".debug_info"))
	assert.True(t, ef.HasSection(".zdebug_info", ".eh_frame"))
	assert.False(t, ef.HasSection(".debug_line"))
	assert.False(t, ef.HasSymbols())
	assert.Equal(t, "x86_64", ef.Arch())
}

func TestOpenELFNoBuildID(t *testing.T) {
	ef, err := NewELF(bytes.NewReader(testutil.ELF(testutil.ELFOptions{Machine: elf.EM_AARCH64})))
	require.NoError(t, err)
	defer ef.Close()

	_, err = ef.BuildID()
	assert.ErrorIs(t, err, ErrNoBuildID)
	assert.Equal(t, "arm64", ef.Arch())
}

func TestOpenELFRejectsNonELF(t *testing.T) {
	path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "notelf"), []byte("not an ELF file at all"))
	_, err := OpenELF(path)
	assert.ErrorIs(t, err, ErrNotELF)
}

func TestOpenELFMissing(t *testing.T) {
	_, err := OpenELF(filepath.Join(t.TempDir(), "absent.so"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseNotes(t *testing.T) {
	le := binary.LittleEndian
	var buf bytes.Buffer
	note := func(name string, typ uint32, desc []byte) {
		var hdr [12]byte
		le.PutUint32(hdr[0:], uint32(len(name)+1))
		le.PutUint32(hdr[4:], uint32(len(desc)))
		le.PutUint32(hdr[8:], typ)
		buf.Write(hdr[:])
		buf.WriteString(name)
		buf.WriteByte(0)
		for buf.Len()%4 != 0 {
			buf.WriteByte(0)
		}
		buf.Write(desc)
		for buf.Len()%4 != 0 {
			buf.WriteByte(0)
		}
	}
	note("Go", 4, []byte("abc"))
	note("GNU", ntGNUBuildID, []byte{1, 2, 3, 4, 5})

	notes, err := ParseNotes(buf.Bytes(), le)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Go", notes[0].Name)
	assert.Equal(t, []byte("abc"), notes[0].Desc)
	assert.Equal(t, "GNU", notes[1].Name)
	assert.Equal(t, uint32(ntGNUBuildID), notes[1].Type)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, notes[1].Desc)
}

func TestParseNotesTruncated(t *testing.T) {
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:], 4)
	binary.LittleEndian.PutUint32(hdr[4:], 20)
	binary.LittleEndian.PutUint32(hdr[8:], ntGNUBuildID)
	data := append(hdr[:], "GNU\x00\x01\x02"...)

	_, err := ParseNotes(data, binary.LittleEndian)
	assert.ErrorIs(t, err, ErrCorruptNote)
}
