package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"difutil/internal/testutil"
)

const elfUUID = "0f0e0d0c-0b0a-0908-0706-050403020100"

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) result {
	t.Helper()
	t.Setenv("DIFUTIL_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeSym(t *testing.T, dir string) string {
	t.Helper()
	return testutil.WriteFile(t, filepath.Join(dir, "libfoo.sym"),
		testutil.Breakpad("x86_64", "3D1A0B2C4E5F60718293A4B5C6D7F00D0", "libfoo.so"))
}

func TestIDCommand(t *testing.T) {
	path := writeSym(t, t.TempDir())

	r := runCLI(t, "id", path)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, testutil.FixtureUUID+"\n", r.stdout)

	r = runCLI(t, "uuid", "--json", path)
	require.Equal(t, 0, r.code, r.stderr)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &ids))
	assert.Equal(t, []string{testutil.FixtureUUID}, ids)
}

func TestIDCommandUnusable(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, filepath.Join(dir, "libfoo.so"), testutil.ELF(testutil.ELFOptions{}))

	r := runCLI(t, "id", path)
	assert.Equal(t, 1, r.code)
	assert.Empty(t, r.stdout)
	assert.Contains(t, r.stderr, "error: debug info file is not usable: missing identifier section\n")

	r = runCLI(t, "id", "--type", "proguard", writeSym(t, dir))
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "type mismatch: expected proguard, found breakpad")
}

func TestIDCommandErrors(t *testing.T) {
	r := runCLI(t, "id", filepath.Join(t.TempDir(), "absent"))
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "error: dif: open:")

	r = runCLI(t, "id", "--type", "pdb", "x")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "unknown type")

	r = runCLI(t, "id")
	assert.Equal(t, 1, r.code)
}

func TestCheckCommand(t *testing.T) {
	path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "libfoo.so"),
		testutil.ELF(testutil.ELFOptions{BuildID: testutil.GUIDBytes(elfUUID), DebugInfo: true}))

	r := runCLI(t, "check", path)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "  Type: elf\n")
	assert.Contains(t, r.stdout, elfUUID+" (x86_64)")
	assert.Contains(t, r.stdout, "Usable: yes")

	r = runCLI(t, "check", "--json", path)
	require.Equal(t, 0, r.code, r.stderr)
	var s map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &s))
	assert.Equal(t, true, s["is_usable"])

	bad := testutil.WriteFile(t, filepath.Join(t.TempDir(), "mapping.txt"), []byte("# compiler: R8\n"))
	r = runCLI(t, "check", bad)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stdout, "Usable: no (no class mappings)")
}

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteDSYM(t, dir, "App",
		testutil.MachO(testutil.MachOOptions{UUID: testutil.UUIDBytes(testutil.FixtureUUID)}))
	testutil.WriteFile(t, filepath.Join(dir, "lib", "libfoo.so"),
		testutil.ELF(testutil.ELFOptions{BuildID: testutil.GUIDBytes(elfUUID)}))
	testutil.WriteFile(t, filepath.Join(dir, "README.md"), []byte("hello\n"))
	return dir
}

func TestFindCommand(t *testing.T) {
	dir := writeTree(t)

	r := runCLI(t, "find", dir)
	require.Equal(t, 0, r.code, r.stderr)
	lines := strings.Split(strings.TrimSpace(r.stdout), "\n")
	assert.Equal(t, []string{
		"dsym\t" + testutil.FixtureUUID + "\t" + filepath.Join(dir, "App.dSYM"),
		"elf\t" + elfUUID + "\t" + filepath.Join(dir, "lib", "libfoo.so"),
	}, lines)
}

func TestFindCommandSelection(t *testing.T) {
	dir := writeTree(t)
	absent := "99999999-8888-7777-6666-555555555555"

	r := runCLI(t, "find", dir, "--id", strings.ToUpper(testutil.FixtureUUID), "--require-all")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "dsym\t"+testutil.FixtureUUID+"\t"+filepath.Join(dir, "App.dSYM")+"\n", r.stdout)

	r = runCLI(t, "find", dir, "--id", absent, "--require-all")
	assert.Equal(t, 1, r.code)
	assert.Empty(t, r.stdout)
	assert.Contains(t, r.stderr, "missing required identifiers: "+absent)
	assert.Contains(t, r.stderr, "missing_ids")

	r = runCLI(t, "find", dir, "--id", absent)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "unmatched\t"+absent+"\n", r.stdout)
}

func TestFindCommandNoUsable(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "README.md"), []byte("hello\n"))

	r := runCLI(t, "find", dir)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "no usable debug information files found")
	assert.Contains(t, r.stderr, "no_usable")

	r = runCLI(t, "find", filepath.Join(dir, "absent"))
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "discovery_failed")
}

func TestFindCommandIDsWithNothingUsable(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "nobuildid.so"), testutil.ELF(testutil.ELFOptions{}))
	absent := "99999999-8888-7777-6666-555555555555"

	r := runCLI(t, "find", dir, "--id", absent, "--require-all")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "missing required identifiers: "+absent)
	assert.Contains(t, r.stderr, "missing_ids")
	assert.NotContains(t, r.stderr, "no_usable")

	r = runCLI(t, "find", dir, "--id", absent)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "unmatched\t"+absent+"\n"+
		"unusable\t"+filepath.Join(dir, "nobuildid.so")+"\tmissing identifier section\n", r.stdout)
}

func TestFindCommandJSONAndArchives(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteZip(t, filepath.Join(dir, "symbols.zip"), map[string][]byte{
		"libfoo.so": testutil.ELF(testutil.ELFOptions{BuildID: testutil.GUIDBytes(elfUUID)}),
	})
	out := filepath.Join(t.TempDir(), "manifest.json")

	r := runCLI(t, "find", dir, "--json", "--out", out)
	require.Equal(t, 0, r.code, r.stderr)

	var m struct {
		Files []struct {
			Path string   `json:"path"`
			IDs  []string `json:"ids"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &m))
	require.Len(t, m.Files, 1)
	assert.Equal(t, filepath.Join(dir, "symbols.zip")+"!libfoo.so", m.Files[0].Path)
	assert.Equal(t, []string{elfUUID}, m.Files[0].IDs)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, r.stdout, string(written))

	r = runCLI(t, "find", dir, "--no-zips")
	assert.Equal(t, 1, r.code)
}

func TestFindCommandTypeFilter(t *testing.T) {
	dir := writeTree(t)
	r := runCLI(t, "find", dir, "--type", "elf")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "elf\t"+elfUUID+"\t"+filepath.Join(dir, "lib", "libfoo.so")+"\n", r.stdout)
}

func TestFindCommandSymbolMapToolMissing(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDSYM(t, dir, "App",
		testutil.MachO(testutil.MachOOptions{UUID: testutil.UUIDBytes(testutil.FixtureUUID), Hidden: true}))
	maps := t.TempDir()
	testutil.WriteFile(t, filepath.Join(maps, testutil.FixtureUUID+".bcsymbolmap"), []byte("BCSymbolMap Version: 2.0\n"))
	t.Setenv("DIFUTIL_DSYMUTIL", "difutil-test-no-such-tool")

	r := runCLI(t, "find", dir, "--symbol-maps", maps)
	assert.Equal(t, 1, r.code)
	assert.Empty(t, r.stdout)
	assert.Contains(t, r.stderr, "resolution tool not found")
}

func TestUploadDSYMCommand(t *testing.T) {
	dir := writeTree(t)

	r := runCLI(t, "upload-dsym", dir, "--uuid", testutil.FixtureUUID, "--require-all", "--no-reprocessing")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "dsym\t"+testutil.FixtureUUID+"\t"+filepath.Join(dir, "App.dSYM")+"\n", r.stdout)
	assert.Contains(t, r.stderr, "deprecated")

	r = runCLI(t, "upload-dsym", dir, "--uuid", "not-a-uuid")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, `invalid --uuid "not-a-uuid"`)

	r = runCLI(t, "upload-dsym", dir, "--uuid", elfUUID, "--require-all")
	assert.Equal(t, 1, r.code, "elf files are not considered")
}

func TestVersionCommand(t *testing.T) {
	r := runCLI(t, "version")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "difutil version dev")
}

func TestLogFlags(t *testing.T) {
	r := runCLI(t, "--log-level", "loud", "version")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "log.level")

	path := writeSym(t, t.TempDir())
	r = runCLI(t, "--log-level", "debug", "--log-format", "json", "check", path)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stderr, `"message":"checked file"`)
}

func TestConfigFileFlag(t *testing.T) {
	cfgPath := testutil.WriteFile(t, filepath.Join(t.TempDir(), "config.yaml"), []byte("discovery:\n  search_archives: false\n"))
	dir := t.TempDir()
	testutil.WriteZip(t, filepath.Join(dir, "symbols.zip"), map[string][]byte{
		"libfoo.so": testutil.ELF(testutil.ELFOptions{BuildID: testutil.GUIDBytes(elfUUID)}),
	})

	r := runCLI(t, "--config", cfgPath, "find", dir)
	assert.Equal(t, 1, r.code, "archives disabled by config")
}
