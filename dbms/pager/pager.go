// Package pager manages a file of fixed-size pages behind an LRU page cache.
package pager

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/containers/lru"
)

const PageSize = 4096 // 4 KB, the OS page size

// Page is a raw 4 KB block read from or written to disk.
type Page [PageSize]byte

// Stats counts page cache activity since Open.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Pager manages a file of fixed-size pages and caches recently used ones.
// Writes go through to the file, so evicted pages never need flushing.
type Pager struct {
	file      *os.File
	cache     *lru.Cache[uint64, *Page]
	pageCount uint64 // total number of pages ever allocated
	stats     Stats
}

// Open opens (or creates) a pager backed by the given file.
// cacheSize is the number of pages to hold in the LRU cache.
func Open(path string, cacheSize int) (*Pager, error) {
	cache, err := lru.New[uint64, *Page](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "pager open")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "pager open")
	}

	p := &Pager{
		file:  f,
		cache: cache,
	}

	// Page 0 holds the page count. A brand new file starts with just that
	// header page.
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "pager open")
	}
	if info.Size() == 0 {
		p.pageCount = 1
		if err := p.writePageCount(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		pg, err := p.readPageFromDisk(0)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "pager: read header")
		}
		p.pageCount = binary.LittleEndian.Uint64(pg[:8])
	}

	return p, nil
}

// Allocate reserves a new page on disk and returns its page ID.
func (p *Pager) Allocate() (uint64, error) {
	id := p.pageCount
	p.pageCount++

	// Write an empty page to extend the file.
	var blank Page
	if err := p.writePageToDisk(id, &blank); err != nil {
		return 0, err
	}
	if err := p.writePageCount(); err != nil {
		return 0, err
	}
	return id, nil
}

// Read returns the page with the given ID, from cache or disk. The returned
// page is shared with the cache; callers that modify it must Write it back.
func (p *Pager) Read(id uint64) (*Page, error) {
	if id >= p.pageCount {
		return nil, errors.Newf("pager: read page %d: only %d pages", id, p.pageCount)
	}
	if pg, ok := p.cache.Get(id); ok {
		p.stats.Hits++
		return pg, nil
	}
	p.stats.Misses++
	pg, err := p.readPageFromDisk(id)
	if err != nil {
		return nil, err
	}
	p.cachePage(id, pg)
	return pg, nil
}

// Write writes a page back to disk and updates the cache.
func (p *Pager) Write(id uint64, pg *Page) error {
	p.cachePage(id, pg)
	return p.writePageToDisk(id, pg)
}

// Close closes the underlying file.
func (p *Pager) Close() error {
	p.cache.Clear()
	return p.file.Close()
}

// PageCount returns the total number of allocated pages.
func (p *Pager) PageCount() uint64 {
	return p.pageCount
}

func (p *Pager) Stats() Stats { return p.stats }

// CachedPages returns the number of pages currently held in memory.
func (p *Pager) CachedPages() int { return p.cache.Len() }

// --- internal helpers ---

func (p *Pager) cachePage(id uint64, pg *Page) {
	if p.cache.Set(id, pg) {
		p.stats.Evictions++
	}
}

func (p *Pager) offset(id uint64) int64 {
	return int64(id) * PageSize
}

func (p *Pager) readPageFromDisk(id uint64) (*Page, error) {
	pg := new(Page)
	_, err := p.file.ReadAt(pg[:], p.offset(id))
	if err != nil {
		return nil, errors.Wrapf(err, "pager: read page %d", id)
	}
	return pg, nil
}

func (p *Pager) writePageToDisk(id uint64, pg *Page) error {
	_, err := p.file.WriteAt(pg[:], p.offset(id))
	if err != nil {
		return errors.Wrapf(err, "pager: write page %d", id)
	}
	return nil
}

func (p *Pager) writePageCount() error {
	var hdr Page
	binary.LittleEndian.PutUint64(hdr[:8], p.pageCount)
	return p.writePageToDisk(0, &hdr)
}
