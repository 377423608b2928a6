package recfile

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/btree-query-bench/containers/dbms/pager"
	"github.com/btree-query-bench/containers/dbms/slotted"
	"github.com/btree-query-bench/containers/index"
)

func open(t *testing.T, path string) *RecFile {
	t.Helper()
	f, err := Open(path, 8, 4, zap.NewNop().Sugar())
	require.NoError(t, err)
	return f
}

func value(k int64) []byte { return []byte(fmt.Sprintf("value-%04d", k)) }

func TestInsertGetDelete(t *testing.T) {
	f := open(t, filepath.Join(t.TempDir(), "r.db"))
	defer f.Close()

	for k := int64(0); k < 500; k++ {
		require.NoError(t, f.Insert(k, value(k)))
	}
	require.NoError(t, f.Check())

	v, err := f.Get(123)
	require.NoError(t, err)
	assert.Equal(t, value(123), v)

	require.NoError(t, f.Insert(123, []byte("updated")))
	v, err = f.Get(123)
	require.NoError(t, err)
	assert.Equal(t, []byte("updated"), v)

	require.NoError(t, f.Delete(7))
	require.NoError(t, f.Delete(7))
	_, err = f.Get(7)
	require.ErrorIs(t, err, index.ErrNotFound)

	st := f.Stats()
	assert.Equal(t, 499, st.Keys)
	assert.Greater(t, st.Pages, uint64(3))
}

func TestReopenReplaysRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.db")
	f := open(t, path)
	for k := int64(0); k < 300; k++ {
		require.NoError(t, f.Insert(k, value(k)))
	}
	for k := int64(0); k < 300; k += 3 {
		require.NoError(t, f.Delete(k))
	}
	require.NoError(t, f.Insert(3, []byte("back")))
	require.NoError(t, f.Close())

	f = open(t, path)
	defer f.Close()
	require.NoError(t, f.Check())
	assert.Equal(t, 201, f.Stats().Keys)

	v, err := f.Get(3)
	require.NoError(t, err)
	assert.Equal(t, []byte("back"), v)
	_, err = f.Get(6)
	require.ErrorIs(t, err, index.ErrNotFound)
	v, err = f.Get(7)
	require.NoError(t, err)
	assert.Equal(t, value(7), v)

	// Appends continue on the last page.
	pages := f.Stats().Pages
	require.NoError(t, f.Insert(1000, []byte("x")))
	assert.Equal(t, pages, f.Stats().Pages)
}

func TestRange(t *testing.T) {
	f := open(t, filepath.Join(t.TempDir(), "r.db"))
	defer f.Close()
	for k := int64(0); k < 100; k += 10 {
		require.NoError(t, f.Insert(k, value(k)))
	}

	it, err := f.Range(15, 60)
	require.NoError(t, err)
	var keys []int64
	for it.Next() {
		keys = append(keys, it.Key())
		assert.Equal(t, value(it.Key()), it.Value())
	}
	require.NoError(t, it.Error())
	require.NoError(t, it.Close())
	assert.Equal(t, []int64{20, 30, 40, 50, 60}, keys)
}

func TestValueLimits(t *testing.T) {
	f := open(t, filepath.Join(t.TempDir(), "r.db"))
	defer f.Close()

	big := bytes.Repeat([]byte{'b'}, MaxValue)
	require.NoError(t, f.Insert(1, big))
	require.NoError(t, f.Insert(2, big))
	v, err := f.Get(1)
	require.NoError(t, err)
	assert.Equal(t, big, v)

	err = f.Insert(3, append(big, 'x'))
	require.ErrorIs(t, err, ErrValueTooLarge)

	require.NoError(t, f.Insert(4, nil))
	v, err = f.Get(4)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestOpenRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.db")
	pg, err := pager.Open(path, 2)
	require.NoError(t, err)
	id, err := pg.Allocate()
	require.NoError(t, err)
	p := new(pager.Page)
	copy(p[:], "NOPE")
	require.NoError(t, pg.Write(id, p))
	require.NoError(t, pg.Close())

	_, err = Open(path, 8, 4, zap.NewNop().Sugar())
	require.ErrorIs(t, err, ErrBadHeader)
}

func TestOpenRejectsDamagedRecordPage(t *testing.T) {
	tests := []struct {
		name   string
		damage func(p *pager.Page)
	}{
		{"pointer past page", func(p *pager.Page) { slotted.SetCellPtr(p, 0, 0xFFFF) }},
		{"pointer into header", func(p *pager.Page) { slotted.SetCellPtr(p, 0, 2) }},
		{"value overruns page", func(p *pager.Page) {
			off := slotted.CellPtr(p, 0)
			p[off+9], p[off+10] = 0xFF, 0xFF
		}},
		{"too many cells", func(p *pager.Page) { slotted.SetNumCells(p, 0xFFFF) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "r.db")
			f := open(t, path)
			require.NoError(t, f.Insert(1, value(1)))
			require.NoError(t, f.Close())

			pg, err := pager.Open(path, 2)
			require.NoError(t, err)
			p, err := pg.Read(firstRecord)
			require.NoError(t, err)
			tt.damage(p)
			require.NoError(t, pg.Write(firstRecord, p))
			require.NoError(t, pg.Close())

			_, err = Open(path, 8, 4, zap.NewNop().Sugar())
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
