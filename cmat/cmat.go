// Package cmat implements a small complex sparse matrix in compressed
// sparse row form. It is sized for nodal admittance work: assemble a
// matrix once from coordinate triples, then read rows, take diagonals
// and form matrix-vector products. Explicit zeros survive assembly, so
// a builder can force structural entries (bus diagonals) to be present
// regardless of their value.
package cmat

import (
	"fmt"
	"sort"
)

// COO accumulates coordinate triples prior to compression. Duplicate
// entries at the same (row, col) sum.
type COO struct {
	rows, cols int
	ri, ci     []int
	v          []complex128
}

// NewCOO returns an empty accumulator with the given shape.
func NewCOO(rows, cols int) *COO {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("cmat: negative dimensions %dx%d", rows, cols))
	}
	return &COO{rows: rows, cols: cols}
}

// Add records v at (i, j). Values at repeated coordinates accumulate.
// Zero values are kept as structural entries.
func (a *COO) Add(i, j int, v complex128) {
	if i < 0 || i >= a.rows || j < 0 || j >= a.cols {
		panic(fmt.Sprintf("cmat: index (%d,%d) out of range for %dx%d matrix", i, j, a.rows, a.cols))
	}
	a.ri = append(a.ri, i)
	a.ci = append(a.ci, j)
	a.v = append(a.v, v)
}

// Compress folds the accumulated triples into CSR form. Columns within
// each row come out sorted and deduplicated. The accumulator remains
// usable afterwards.
func (a *COO) Compress() *Matrix {
	nnz := len(a.ri)
	rowPtr := make([]int, a.rows+1)
	for _, r := range a.ri {
		rowPtr[r+1]++
	}
	for i := 0; i < a.rows; i++ {
		rowPtr[i+1] += rowPtr[i]
	}

	// Bucket triples by row, preserving insertion order within a row.
	colIdx := make([]int, nnz)
	val := make([]complex128, nnz)
	next := make([]int, a.rows)
	copy(next, rowPtr[:a.rows])
	for k := 0; k < nnz; k++ {
		r := a.ri[k]
		p := next[r]
		colIdx[p] = a.ci[k]
		val[p] = a.v[k]
		next[r]++
	}

	cc := make([]int, 0, nnz)
	vv := make([]complex128, 0, nnz)
	ptr := make([]int, 1, a.rows+1)
	for i := 0; i < a.rows; i++ {
		start, end := rowPtr[i], rowPtr[i+1]
		sortRow(colIdx[start:end], val[start:end])
		rowStart := len(cc)
		for k := start; k < end; k++ {
			if len(cc) > rowStart && cc[len(cc)-1] == colIdx[k] {
				vv[len(vv)-1] += val[k]
				continue
			}
			cc = append(cc, colIdx[k])
			vv = append(vv, val[k])
		}
		ptr = append(ptr, len(cc))
	}
	return &Matrix{rows: a.rows, cols: a.cols, rowPtr: ptr, colIdx: cc, val: vv}
}

func sortRow(cols []int, vals []complex128) {
	for i := 1; i < len(cols); i++ {
		c, v := cols[i], vals[i]
		j := i - 1
		for j >= 0 && cols[j] > c {
			cols[j+1], vals[j+1] = cols[j], vals[j]
			j--
		}
		cols[j+1], vals[j+1] = c, v
	}
}

// Matrix is an immutable complex sparse matrix in CSR form.
type Matrix struct {
	rows, cols int
	rowPtr     []int
	colIdx     []int
	val        []complex128
}

// Dims returns the matrix shape.
func (m *Matrix) Dims() (rows, cols int) { return m.rows, m.cols }

// NNZ returns the number of stored entries, structural zeros included.
func (m *Matrix) NNZ() int { return len(m.val) }

// Row returns the column indices and values of row i. The slices alias
// the matrix storage and must not be modified.
func (m *Matrix) Row(i int) (cols []int, vals []complex128) {
	if i < 0 || i >= m.rows {
		panic(fmt.Sprintf("cmat: row %d out of range for %dx%d matrix", i, m.rows, m.cols))
	}
	start, end := m.rowPtr[i], m.rowPtr[i+1]
	return m.colIdx[start:end], m.val[start:end]
}

// At returns the value at (i, j), zero when no entry is stored.
func (m *Matrix) At(i, j int) complex128 {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("cmat: index (%d,%d) out of range for %dx%d matrix", i, j, m.rows, m.cols))
	}
	cols, vals := m.Row(i)
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return vals[k]
	}
	return 0
}

// Diagonal returns the main diagonal as a dense slice.
func (m *Matrix) Diagonal() []complex128 {
	n := m.rows
	if m.cols < n {
		n = m.cols
	}
	d := make([]complex128, n)
	for i := 0; i < n; i++ {
		d[i] = m.At(i, i)
	}
	return d
}

// RowDot returns the dot product of row i with x.
func (m *Matrix) RowDot(i int, x []complex128) complex128 {
	if len(x) != m.cols {
		panic(fmt.Sprintf("cmat: vector length %d does not match %d columns", len(x), m.cols))
	}
	cols, vals := m.Row(i)
	var sum complex128
	for k, j := range cols {
		sum += vals[k] * x[j]
	}
	return sum
}

// MulVecTo computes dst = m*x. dst must have length equal to the row
// count and must not alias x.
func (m *Matrix) MulVecTo(dst, x []complex128) {
	if len(dst) != m.rows || len(x) != m.cols {
		panic(fmt.Sprintf("cmat: product shapes %d,%d do not match %dx%d matrix", len(dst), len(x), m.rows, m.cols))
	}
	for i := 0; i < m.rows; i++ {
		dst[i] = m.RowDot(i, x)
	}
}
