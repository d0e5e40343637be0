// ABOUTME: Exhaustive L2 nearest-neighbour structure over stored vectors
// ABOUTME: Append-only; deletion is a rebuild from the retained rows
package index

import (
	"cmp"
	"slices"
)

// flatL2 is never mutated after construction
type flatL2 struct {
	dim  int
	rows [][]float32
}

func newFlatL2(dim int, rows [][]float32) *flatL2 {
	return &flatL2{dim: dim, rows: rows}
}

// with returns a new structure holding the existing rows plus extra
func (f *flatL2) with(extra [][]float32) *flatL2 {
	rows := make([][]float32, 0, len(f.rows)+len(extra))
	rows = append(rows, f.rows...)
	rows = append(rows, extra...)
	return newFlatL2(f.dim, rows)
}

type neighbour struct {
	row  int
	dist float64
}

// search returns up to k rows ordered by ascending squared L2 distance;
// equal distances keep row order
func (f *flatL2) search(query []float32, k int) []neighbour {
	if k <= 0 || len(f.rows) == 0 {
		return nil
	}
	all := make([]neighbour, len(f.rows))
	for i, row := range f.rows {
		all[i] = neighbour{row: i, dist: squaredL2(query, row)}
	}
	slices.SortStableFunc(all, func(a, b neighbour) int {
		return cmp.Compare(a.dist, b.dist)
	})
	if len(all) > k {
		all = all[:k]
	}
	return all
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
