package omap

import (
	"bytes"
	"cmp"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntMap(t *testing.T, order int) *Map[int, string] {
	t.Helper()
	m, err := NewOrdered[int, string](order)
	require.NoError(t, err)
	return m
}

func TestNewRejectsBadArguments(t *testing.T) {
	for _, order := range []int{-1, 0, 1, 2} {
		_, err := NewOrdered[int, int](order)
		require.ErrorIs(t, err, ErrInvalidOrder, "order %d", order)
	}

	_, err := New[int, int](8, nil)
	require.ErrorIs(t, err, ErrNilCompare)

	m, err := NewOrdered[int, int](3)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Order())
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 1, m.Height())
}

func TestInsertThenDeleteOrderFour(t *testing.T) {
	m := newIntMap(t, 4)
	for _, k := range []int{10, 20, 5, 15, 25, 1} {
		assert.True(t, m.Set(k, "v"))
		require.NoError(t, m.Check())
	}
	assert.Equal(t, []int{1, 5, 10, 15, 20, 25}, slices.Collect(m.Keys()))
	assert.Equal(t, 6, m.Len())
	assert.Equal(t, 2, m.Height())

	assert.True(t, m.Delete(10))
	require.NoError(t, m.Check())
	assert.True(t, m.Delete(1))
	require.NoError(t, m.Check())

	assert.Equal(t, []int{5, 15, 20, 25}, slices.Collect(m.Keys()))
	assert.Equal(t, 4, m.Len())
}

func TestSetOverwritesInPlace(t *testing.T) {
	m := newIntMap(t, 4)
	for i := range 20 {
		m.Set(i, "a")
	}
	height := m.Height()

	assert.False(t, m.Set(7, "b"))
	assert.Equal(t, 20, m.Len())
	assert.Equal(t, height, m.Height())

	v, ok := m.Get(7)
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	require.NoError(t, m.Check())
}

func TestGetMissing(t *testing.T) {
	m := newIntMap(t, 5)
	_, ok := m.Get(1)
	assert.False(t, ok)
	assert.False(t, m.Has(1))

	for i := 0; i < 100; i += 2 {
		m.Set(i, "even")
	}
	for i := 1; i < 100; i += 2 {
		_, ok := m.Get(i)
		assert.False(t, ok)
		assert.False(t, m.Has(i))
	}
	assert.True(t, m.Has(98))
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	m := newIntMap(t, 4)
	for i := range 30 {
		m.Set(i*10, "x")
	}
	before := slices.Collect(m.Keys())

	assert.False(t, m.Delete(5))
	assert.False(t, m.Delete(-1))
	assert.False(t, m.Delete(1000))

	assert.Equal(t, 30, m.Len())
	assert.Equal(t, before, slices.Collect(m.Keys()))
	require.NoError(t, m.Check())
}

func TestStoredZeroValueIsFound(t *testing.T) {
	m, err := NewOrdered[string, []byte](4)
	require.NoError(t, err)

	m.Set("tomb", nil)
	v, ok := m.Get("tomb")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = m.Get("other")
	assert.False(t, ok)
}

func TestDeleteEverything(t *testing.T) {
	const n = 2000

	orderings := map[string]func([]int){
		"ascending":  func([]int) {},
		"descending": func(s []int) { slices.Reverse(s) },
		"shuffled": func(s []int) {
			r := rand.New(rand.NewPCG(1, 2))
			r.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		},
	}

	for _, order := range []int{3, 4, 5, 7, 16} {
		for name, reorder := range orderings {
			t.Run(fmt.Sprintf("order%d/%s", order, name), func(t *testing.T) {
				m := newIntMap(t, order)
				keys := make([]int, n)
				for i := range keys {
					keys[i] = i
					m.Set(i, "v")
				}
				require.NoError(t, m.Check())
				assert.Greater(t, m.Height(), 1)

				reorder(keys)
				for i, k := range keys {
					require.True(t, m.Delete(k), "key %d", k)
					if i%97 == 0 {
						require.NoError(t, m.Check(), "order %d after %d deletes", order, i+1)
					}
				}
				require.NoError(t, m.Check())
				assert.Equal(t, 0, m.Len())
				assert.Equal(t, 1, m.Height())
				assert.Empty(t, slices.Collect(m.Keys()))
			})
		}
	}
}

// TestRandomOperations drives the map and a builtin map with the same random
// operations and compares them after every step.
func TestRandomOperations(t *testing.T) {
	for _, order := range []int{3, 4, 5, 6, 9, 32} {
		r := rand.New(rand.NewPCG(uint64(order), 42))
		m, err := NewOrdered[int, int](order)
		require.NoError(t, err)
		model := make(map[int]int)

		for i := range 5000 {
			k := r.IntN(400)
			switch r.IntN(3) {
			case 0, 1:
				_, had := model[k]
				assert.Equal(t, !had, m.Set(k, i))
				model[k] = i
			case 2:
				_, had := model[k]
				assert.Equal(t, had, m.Delete(k))
				delete(model, k)
			}

			require.Equal(t, len(model), m.Len())
			if i%50 == 0 {
				require.NoError(t, m.Check(), "order %d step %d", order, i)
			}
		}

		require.NoError(t, m.Check())
		want := slices.Sorted(maps.Keys(model))
		assert.Equal(t, want, slices.Collect(m.Keys()))
		for k, v := range model {
			got, ok := m.Get(k)
			require.True(t, ok)
			assert.Equal(t, v, got)
		}
		count := 0
		for k, v := range m.All() {
			assert.Equal(t, model[k], v)
			count++
		}
		assert.Equal(t, m.Len(), count)
	}
}

func TestIterators(t *testing.T) {
	m := newIntMap(t, 4)
	for i := 1; i <= 50; i++ {
		m.Set(i, strings.Repeat("x", i%5))
	}

	// Restartable: two passes see the same sequence.
	first := slices.Collect(m.Keys())
	second := slices.Collect(m.Keys())
	assert.Equal(t, first, second)
	assert.Len(t, slices.Collect(m.Values()), 50)

	// Early exit.
	var seen []int
	for k := range m.All() {
		if k > 3 {
			break
		}
		seen = append(seen, k)
	}
	assert.Equal(t, []int{1, 2, 3}, seen)

	k, v, ok := m.First()
	assert.True(t, ok)
	assert.Equal(t, 1, k)
	assert.Equal(t, "x", v)
}

func TestAscend(t *testing.T) {
	m := newIntMap(t, 4)
	for i := 0; i < 100; i += 10 {
		m.Set(i, "v")
	}

	collect := func(from int) []int {
		var keys []int
		for k := range m.Ascend(from) {
			keys = append(keys, k)
		}
		return keys
	}

	assert.Equal(t, []int{50, 60, 70, 80, 90}, collect(50))
	assert.Equal(t, []int{60, 70, 80, 90}, collect(51))
	assert.Equal(t, slices.Collect(m.Keys()), collect(-5))
	assert.Empty(t, collect(91))

	var stopped []int
	for k := range m.Ascend(20) {
		stopped = append(stopped, k)
		if k == 40 {
			break
		}
	}
	assert.Equal(t, []int{20, 30, 40}, stopped)
}

func TestCustomCompare(t *testing.T) {
	descending := func(a, b string) int { return cmp.Compare(b, a) }
	m, err := New[string, int](3, descending)
	require.NoError(t, err)

	for i, s := range []string{"pear", "apple", "fig", "kiwi", "banana", "cherry"} {
		m.Set(s, i)
	}
	require.NoError(t, m.Check())
	assert.Equal(t, []string{"pear", "kiwi", "fig", "cherry", "banana", "apple"}, slices.Collect(m.Keys()))
}

func TestClear(t *testing.T) {
	m := newIntMap(t, 4)
	for i := range 100 {
		m.Set(i, "v")
	}
	m.Clear()

	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 1, m.Height())
	assert.Equal(t, 4, m.Order())
	assert.Empty(t, slices.Collect(m.Keys()))
	_, _, ok := m.First()
	assert.False(t, ok)
	require.NoError(t, m.Check())

	m.Set(3, "again")
	assert.Equal(t, []int{3}, slices.Collect(m.Keys()))
}

func TestCheckDetectsCorruption(t *testing.T) {
	m := newIntMap(t, 4)
	for i := range 20 {
		m.Set(i, "v")
	}
	require.NoError(t, m.Check())

	m.leaf0.keys[0], m.leaf0.keys[1] = m.leaf0.keys[1], m.leaf0.keys[0]
	require.ErrorIs(t, m.Check(), ErrCorrupt)

	m.leaf0.keys[0], m.leaf0.keys[1] = m.leaf0.keys[1], m.leaf0.keys[0]
	m.size++
	require.ErrorIs(t, m.Check(), ErrCorrupt)
}

func TestWriteDOT(t *testing.T) {
	m := newIntMap(t, 3)
	for i := range 12 {
		m.Set(i, "v")
	}

	var buf bytes.Buffer
	require.NoError(t, m.WriteDOT(&buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "digraph omap {"))
	assert.Contains(t, out, "INTERNAL")
	assert.Contains(t, out, "rank=same")
	assert.Contains(t, out, "style=dashed")
	assert.True(t, strings.HasSuffix(out, "}\n"))
}
