package lsmtree

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// BloomFilter answers "definitely absent" or "maybe present" for int64 keys.
// The k probe positions come from double hashing a single xxhash digest.
type BloomFilter struct {
	bits []uint64
	m    uint64
	k    int
}

// NewBloom returns a filter of at least size bits using k probes.
func NewBloom(size int, k int) *BloomFilter {
	if size < 64 {
		size = 64
	}
	words := (size + 63) / 64
	return &BloomFilter{
		bits: make([]uint64, words),
		m:    uint64(words * 64),
		k:    k,
	}
}

func (b *BloomFilter) probes(key int64) (h1, h2 uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	h := xxhash.Sum64(buf[:])
	return h & 0xffffffff, h>>32 | 1
}

func (b *BloomFilter) Add(key int64) {
	h1, h2 := b.probes(key)
	for i := 0; i < b.k; i++ {
		pos := (h1 + uint64(i)*h2) % b.m
		b.bits[pos/64] |= 1 << (pos % 64)
	}
}

func (b *BloomFilter) Test(key int64) bool {
	h1, h2 := b.probes(key)
	for i := 0; i < b.k; i++ {
		pos := (h1 + uint64(i)*h2) % b.m
		if b.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false // Definitely not there
		}
	}
	return true // Might be there
}
