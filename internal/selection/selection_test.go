package selection

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"difutil/internal/debugid"
	"difutil/internal/dif"
	"difutil/internal/discover"
	"difutil/internal/testutil"
)

const (
	bundleUUID = testutil.FixtureUUID
	elfUUID    = "0f0e0d0c-0b0a-0908-0706-050403020100"
	absentUUID = "99999999-8888-7777-6666-555555555555"
)

func openFile(t *testing.T, path, display string) *dif.File {
	t.Helper()
	f, err := dif.OpenWith(path, dif.OpenOptions{DisplayPath: display})
	require.NoError(t, err)
	return f
}

// openMember opens path as if it had been extracted from archive.
func openMember(t *testing.T, path, archive string) *dif.File {
	t.Helper()
	f, err := dif.OpenWith(path, dif.OpenOptions{
		DisplayPath: archive + "!" + filepath.Base(path),
		Archive:     archive,
	})
	require.NoError(t, err)
	return f
}

type fixture struct {
	bundle, elf, unusable *dif.File
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	bundle := testutil.WriteDSYM(t, dir, "App",
		testutil.MachO(testutil.MachOOptions{UUID: testutil.UUIDBytes(bundleUUID)}))
	elfPath := testutil.WriteFile(t, filepath.Join(dir, "libfoo.so"),
		testutil.ELF(testutil.ELFOptions{BuildID: testutil.GUIDBytes(elfUUID)}))
	bad := testutil.WriteFile(t, filepath.Join(dir, "nobuildid.so"), testutil.ELF(testutil.ELFOptions{}))
	return fixture{
		bundle:   openFile(t, bundle, ""),
		elf:      openFile(t, elfPath, ""),
		unusable: openFile(t, bad, ""),
	}
}

func TestSelectAllUsable(t *testing.T) {
	fx := newFixture(t)
	sel, err := Select([]*dif.File{fx.bundle, fx.unusable, fx.elf}, Constraint{})
	require.NoError(t, err)
	assert.Equal(t, []*dif.File{fx.bundle, fx.elf}, sel.Selected)
	assert.Equal(t, []*dif.File{fx.unusable}, sel.Unusable)
	assert.Empty(t, sel.Unmatched)
	assert.Equal(t, []debugid.ID{debugid.MustParse(bundleUUID), debugid.MustParse(elfUUID)}, sel.IDs())
}

func TestSelectRequireAllMatched(t *testing.T) {
	fx := newFixture(t)
	sel, err := Select([]*dif.File{fx.bundle, fx.elf}, Constraint{
		IDs:        []debugid.ID{debugid.MustParse("3D1A0B2C4E5F60718293A4B5C6D7F00D")},
		RequireAll: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []*dif.File{fx.bundle}, sel.Selected)
	assert.Empty(t, sel.Unmatched)
}

func TestSelectRequireAllMissing(t *testing.T) {
	fx := newFixture(t)
	absent := debugid.MustParse(absentUUID)
	c := Constraint{IDs: []debugid.ID{debugid.MustParse(elfUUID), absent}, RequireAll: true}

	sel, err := Select([]*dif.File{fx.bundle, fx.elf}, c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingIDs)

	var missing *MissingIDsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []debugid.ID{absent}, missing.IDs)
	assert.Contains(t, err.Error(), absentUUID)
	assert.Equal(t, []debugid.ID{absent}, sel.Unmatched)
}

func TestSelectUnmatchedIgnored(t *testing.T) {
	fx := newFixture(t)
	absent := debugid.MustParse(absentUUID)

	sel, err := Select([]*dif.File{fx.bundle, fx.elf}, Constraint{IDs: []debugid.ID{absent}})
	require.NoError(t, err)
	assert.Empty(t, sel.Selected)
	assert.Equal(t, []debugid.ID{absent}, sel.Unmatched)
}

func TestSelectUnusableNeverMatches(t *testing.T) {
	fx := newFixture(t)
	_, err := Select([]*dif.File{fx.unusable}, Constraint{
		IDs:        []debugid.ID{debugid.MustParse(elfUUID)},
		RequireAll: true,
	})
	assert.ErrorIs(t, err, ErrMissingIDs)
}

func TestSelectArchiveDuplicates(t *testing.T) {
	fx := newFixture(t)
	copyPath := testutil.WriteFile(t, filepath.Join(t.TempDir(), "libfoo.so"),
		testutil.ELF(testutil.ELFOptions{BuildID: testutil.GUIDBytes(elfUUID)}))
	archived := openMember(t, copyPath, "symbols.zip")

	sel, err := Select([]*dif.File{fx.elf, archived}, Constraint{})
	require.NoError(t, err)
	assert.Equal(t, []*dif.File{fx.elf}, sel.Selected)
	assert.Equal(t, []*dif.File{archived}, sel.Duplicates)

	// The original wins even when the archive copy comes first.
	sel, err = Select([]*dif.File{archived, fx.bundle, fx.elf}, Constraint{})
	require.NoError(t, err)
	assert.Equal(t, []*dif.File{fx.bundle, fx.elf}, sel.Selected)
	assert.Equal(t, []*dif.File{archived}, sel.Duplicates)
}

func TestSelectKeepsDistinctArchiveMembers(t *testing.T) {
	fx := newFixture(t)
	other := testutil.WriteFile(t, filepath.Join(t.TempDir(), "libbar.so"),
		testutil.ELF(testutil.ELFOptions{BuildID: testutil.GUIDBytes(absentUUID)}))
	archived := openMember(t, other, "symbols.zip")

	sel, err := Select([]*dif.File{fx.elf, archived}, Constraint{})
	require.NoError(t, err)
	assert.Equal(t, []*dif.File{fx.elf, archived}, sel.Selected)
	assert.Empty(t, sel.Duplicates)
}

func TestSelectSymlinkedRootIsNotArchiveCopy(t *testing.T) {
	dir := t.TempDir()
	elf := testutil.ELF(testutil.ELFOptions{BuildID: testutil.GUIDBytes(elfUUID)})
	testutil.WriteFile(t, filepath.Join(dir, "real", "libfoo.so"), elf)
	testutil.WriteFile(t, filepath.Join(dir, "other", "libfoo.so"), elf)
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(filepath.Join(dir, "real"), link))

	res, err := discover.Discover(context.Background(),
		[]string{link, filepath.Join(dir, "other")}, discover.Options{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer res.Close()
	require.Len(t, res.Files, 2)
	assert.NotEqual(t, res.Files[0].Path(), res.Files[0].Source())

	sel, err := Select(res.Files, Constraint{})
	require.NoError(t, err)
	assert.Equal(t, res.Files, sel.Selected)
	assert.Empty(t, sel.Duplicates)
}

func TestSelectDeclaredProguardID(t *testing.T) {
	path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "mapping.txt"),
		[]byte("# pg_map_id: ABCDEF0123456789ABCDEF0123456789\n"+testutil.Proguard))
	mapping := openFile(t, path, "")
	requested := debugid.MustParse("abcdef01-2345-6789-abcd-ef0123456789")

	sel, err := Select([]*dif.File{mapping}, Constraint{IDs: []debugid.ID{requested}, RequireAll: true})
	require.NoError(t, err)
	assert.Equal(t, []*dif.File{mapping}, sel.Selected)
	assert.Empty(t, sel.Unmatched)
}
