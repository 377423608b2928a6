// Package slotted provides the slotted page layout used for record pages.
//
// Page layout:
//
//	[0]     1 byte   page type
//	[1-2]   2 bytes  numCells
//	[3-4]   2 bytes  cellContentStart (top of cell area, grows upward from bottom)
//	[5+]    cell pointer array, one uint16 offset per cell
//	        ...free space...
//	        cell content area, grows upward from bottom of page
package slotted

import (
	"encoding/binary"

	"github.com/btree-query-bench/containers/dbms/pager"
)

const (
	OffType        = 0
	OffNumCells    = 1
	OffCellContent = 3
	OffCellPtrs    = 5

	CellPtrSize = 2

	// MaxCell is the largest cell that fits in an empty page.
	MaxCell = pager.PageSize - OffCellPtrs - CellPtrSize
)

func Init(p *pager.Page, pt byte) {
	clear(p[:])
	p[OffType] = pt
	SetNumCells(p, 0)
	SetCellContent(p, pager.PageSize)
}

func Type(p *pager.Page) byte { return p[OffType] }

func NumCells(p *pager.Page) int {
	return int(binary.LittleEndian.Uint16(p[OffNumCells : OffNumCells+2]))
}

func SetNumCells(p *pager.Page, n int) {
	binary.LittleEndian.PutUint16(p[OffNumCells:OffNumCells+2], uint16(n))
}

// CellContent returns the offset of the lowest used content byte.
func CellContent(p *pager.Page) int {
	return int(binary.LittleEndian.Uint16(p[OffCellContent : OffCellContent+2]))
}

func SetCellContent(p *pager.Page, v int) {
	binary.LittleEndian.PutUint16(p[OffCellContent:OffCellContent+2], uint16(v))
}

func CellPtr(p *pager.Page, i int) int {
	o := OffCellPtrs + i*CellPtrSize
	return int(binary.LittleEndian.Uint16(p[o : o+2]))
}

func SetCellPtr(p *pager.Page, i int, off int) {
	o := OffCellPtrs + i*CellPtrSize
	binary.LittleEndian.PutUint16(p[o:o+2], uint16(off))
}

// FreeSpace is the gap between the pointer array and the content area.
func FreeSpace(p *pager.Page) int {
	return CellContent(p) - (OffCellPtrs + NumCells(p)*CellPtrSize)
}

// Fits reports whether a cell of size bytes plus its pointer fits.
func Fits(p *pager.Page, size int) bool {
	return FreeSpace(p) >= size+CellPtrSize
}

// AppendCell reserves size bytes of content, records a pointer to them as
// the next cell and returns the content offset. Callers check Fits first.
func AppendCell(p *pager.Page, size int) (slot, off int) {
	slot = NumCells(p)
	off = CellContent(p) - size
	SetCellContent(p, off)
	SetCellPtr(p, slot, off)
	SetNumCells(p, slot+1)
	return slot, off
}
