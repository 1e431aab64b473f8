package diag

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, DiagPermission, KindOf(fmt.Errorf("open: %w", fs.ErrPermission)))
	assert.Equal(t, DiagMissing, KindOf(&fs.PathError{Op: "stat", Path: "x", Err: fs.ErrNotExist}))
	assert.Equal(t, DiagIO, KindOf(errors.New("short read")))
}

func TestRecordBestEffort(t *testing.T) {
	var d Diags
	err := ModeBestEffort.Record(&d, "/a", DiagIO, errors.New("boom"))
	assert.NoError(t, err)
	require.Equal(t, 1, d.Len())
	assert.Equal(t, "[io] /a: boom", d.Items()[0].String())
}

func TestRecordStrict(t *testing.T) {
	var d Diags
	cause := fmt.Errorf("open: %w", fs.ErrPermission)
	err := ModeStrict.Record(&d, "/secret", DiagPermission, cause)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSkipped)
	assert.ErrorIs(t, err, fs.ErrPermission)

	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "/secret", de.Diag.Path)
	assert.Equal(t, 1, d.Len())
}

func TestDiagsConcurrent(t *testing.T) {
	var d Diags
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.Add(fmt.Sprintf("/p%d", i), DiagIO, "read failed")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 32, d.Len())
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "strict", ModeStrict.String())
	assert.Equal(t, "best-effort", ModeBestEffort.String())
}
