// Package recfile implements an append-only record file.
//
// Page 1 is the file header:
//
//	[0-3]   magic "RECF"
//	[4]     uint8   format version
//
// Every later page is a slotted page of record cells:
//
//	[0-7]   int64   key
//	[8]     uint8   flags (flagTombstone)
//	[9-10]  uint16  value length
//	[11+]   []byte  value
//
// Records are never rewritten. An in-memory omap.Map points every live key
// at its latest record and is rebuilt by replaying the pages on Open.
package recfile

import (
	"encoding/binary"
	"iter"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/btree-query-bench/containers/dbms/pager"
	"github.com/btree-query-bench/containers/dbms/slotted"
	"github.com/btree-query-bench/containers/index"
	"github.com/btree-query-bench/containers/omap"
)

var _ index.Index = (*RecFile)(nil)

const (
	magic         = "RECF"
	formatVersion = 1

	headerPage  = 1
	firstRecord = 2

	typeRecords = byte(2)

	flagTombstone = byte(1)

	cellHeader = 8 + 1 + 2

	// MaxValue is the largest value a single record can hold.
	MaxValue = slotted.MaxCell - cellHeader
)

var (
	ErrValueTooLarge = errors.New("recfile: value too large")
	ErrBadHeader     = errors.New("recfile: bad file header")
	ErrCorrupt       = errors.New("recfile: corrupt record page")
)

// rid locates a record.
type rid struct {
	page uint64
	slot int
}

type RecFile struct {
	pg   *pager.Pager
	keys *omap.Map[int64, rid]
	tail uint64 // page receiving appends, 0 until the first record
	log  *zap.SugaredLogger
}

// Stats describes a record file.
type Stats struct {
	Cache pager.Stats
	Pages uint64
	Keys  int
}

// Open opens (or creates) the record file at path. order is the order of the
// key index and cachePages the size of the page cache.
func Open(path string, order, cachePages int, log *zap.SugaredLogger) (*RecFile, error) {
	keys, err := omap.NewOrdered[int64, rid](order)
	if err != nil {
		return nil, err
	}
	pg, err := pager.Open(path, cachePages)
	if err != nil {
		return nil, err
	}
	f := &RecFile{pg: pg, keys: keys, log: log}

	if pg.PageCount() <= headerPage {
		err = f.writeHeader()
	} else {
		err = f.replay()
	}
	if err != nil {
		pg.Close()
		return nil, errors.Wrapf(err, "recfile: open %s", path)
	}

	log.Debugw("record file opened", "path", path, "pages", pg.PageCount(), "keys", keys.Len())
	return f, nil
}

func (f *RecFile) writeHeader() error {
	id, err := f.pg.Allocate()
	if err != nil {
		return err
	}
	p := new(pager.Page)
	copy(p[:4], magic)
	p[4] = formatVersion
	return f.pg.Write(id, p)
}

// replay rebuilds the key index from the record pages, oldest first.
func (f *RecFile) replay() error {
	p, err := f.pg.Read(headerPage)
	if err != nil {
		return err
	}
	if string(p[:4]) != magic || p[4] != formatVersion {
		return ErrBadHeader
	}

	for id := uint64(firstRecord); id < f.pg.PageCount(); id++ {
		p, err := f.pg.Read(id)
		if err != nil {
			return err
		}
		if slotted.Type(p) != typeRecords {
			return errors.Newf("page %d has type %d", id, slotted.Type(p))
		}
		for slot := range slotted.NumCells(p) {
			key, flags, _, err := readCell(p, slot)
			if err != nil {
				return errors.Wrapf(err, "page %d", id)
			}
			if flags&flagTombstone != 0 {
				f.keys.Delete(key)
			} else {
				f.keys.Set(key, rid{id, slot})
			}
		}
		f.tail = id
	}
	return nil
}

// ─── Cells ────────────────────────────────────────────────────────────────────

// readCell returns a view of the value; it aliases the page. Pointers and
// lengths come from disk, so each one is checked against the page bounds.
func readCell(p *pager.Page, slot int) (key int64, flags byte, value []byte, err error) {
	ptrsEnd := slotted.OffCellPtrs + slotted.NumCells(p)*slotted.CellPtrSize
	if ptrsEnd > pager.PageSize || slot >= slotted.NumCells(p) {
		return 0, 0, nil, errors.Wrapf(ErrCorrupt, "%d cells do not fit a page", slotted.NumCells(p))
	}
	off := slotted.CellPtr(p, slot)
	if off < ptrsEnd || off+cellHeader > pager.PageSize {
		return 0, 0, nil, errors.Wrapf(ErrCorrupt, "slot %d points at offset %d", slot, off)
	}
	key = int64(binary.LittleEndian.Uint64(p[off : off+8]))
	flags = p[off+8]
	vl := int(binary.LittleEndian.Uint16(p[off+9 : off+11]))
	if off+cellHeader+vl > pager.PageSize {
		return 0, 0, nil, errors.Wrapf(ErrCorrupt, "slot %d value of %d bytes overruns the page", slot, vl)
	}
	return key, flags, p[off+cellHeader : off+cellHeader+vl], nil
}

func (f *RecFile) appendCell(key int64, flags byte, value []byte) (rid, error) {
	size := cellHeader + len(value)

	var p *pager.Page
	if f.tail != 0 {
		var err error
		if p, err = f.pg.Read(f.tail); err != nil {
			return rid{}, err
		}
	}
	if p == nil || !slotted.Fits(p, size) {
		id, err := f.pg.Allocate()
		if err != nil {
			return rid{}, err
		}
		p = new(pager.Page)
		slotted.Init(p, typeRecords)
		f.tail = id
	}

	slot, off := slotted.AppendCell(p, size)
	binary.LittleEndian.PutUint64(p[off:off+8], uint64(key))
	p[off+8] = flags
	binary.LittleEndian.PutUint16(p[off+9:off+11], uint16(len(value)))
	copy(p[off+cellHeader:], value)

	return rid{f.tail, slot}, f.pg.Write(f.tail, p)
}

func (f *RecFile) load(r rid) ([]byte, error) {
	p, err := f.pg.Read(r.page)
	if err != nil {
		return nil, err
	}
	_, _, v, err := readCell(p, r.slot)
	if err != nil {
		return nil, errors.Wrapf(err, "page %d", r.page)
	}
	return append([]byte(nil), v...), nil
}

// ─── Index ────────────────────────────────────────────────────────────────────

func (f *RecFile) Insert(key int64, value []byte) error {
	if len(value) > MaxValue {
		return errors.Wrapf(ErrValueTooLarge, "%d bytes, limit %d", len(value), MaxValue)
	}
	r, err := f.appendCell(key, 0, value)
	if err != nil {
		return err
	}
	f.keys.Set(key, r)
	return nil
}

func (f *RecFile) Get(key int64) ([]byte, error) {
	r, ok := f.keys.Get(key)
	if !ok {
		return nil, index.ErrNotFound
	}
	return f.load(r)
}

func (f *RecFile) Delete(key int64) error {
	if !f.keys.Has(key) {
		return nil
	}
	if _, err := f.appendCell(key, flagTombstone, nil); err != nil {
		return err
	}
	f.keys.Delete(key)
	return nil
}

func (f *RecFile) Range(start, end int64) (index.Iterator, error) {
	next, stop := iter.Pull2(f.keys.Ascend(start))
	return &RangeIterator{f: f, next: next, stop: stop, end: end}, nil
}

func (f *RecFile) Close() error {
	f.log.Debugw("record file closed", "pages", f.pg.PageCount(), "keys", f.keys.Len())
	return f.pg.Close()
}

// Check audits the key index.
func (f *RecFile) Check() error { return f.keys.Check() }

func (f *RecFile) Stats() Stats {
	return Stats{Cache: f.pg.Stats(), Pages: f.pg.PageCount(), Keys: f.keys.Len()}
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type RangeIterator struct {
	f    *RecFile
	next func() (int64, rid, bool)
	stop func()
	end  int64
	k    int64
	v    []byte
	err  error
	done bool
}

func (it *RangeIterator) Next() bool {
	if it.done {
		return false
	}
	k, r, ok := it.next()
	if !ok || k > it.end {
		it.Close()
		return false
	}
	v, err := it.f.load(r)
	if err != nil {
		it.err = err
		it.Close()
		return false
	}
	it.k, it.v = k, v
	return true
}

func (it *RangeIterator) Key() int64    { return it.k }
func (it *RangeIterator) Value() []byte { return it.v }
func (it *RangeIterator) Error() error  { return it.err }

func (it *RangeIterator) Close() error {
	if !it.done {
		it.done = true
		it.stop()
	}
	return nil
}
