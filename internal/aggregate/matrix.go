package aggregate

import "slices"

// Matrix is a dense rows x cols grid of float64 backed by a single slice.
// Rows are labels and columns are days.
type Matrix struct {
	rows int
	cols int
	data []float64
}

// NewMatrix allocates a zeroed matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

func (m *Matrix) At(r, c int) float64 {
	return m.data[r*m.cols+c]
}

func (m *Matrix) add(r, c int, v float64) {
	m.data[r*m.cols+c] += v
}

// Row returns a copy of row r.
func (m *Matrix) Row(r int) []float64 {
	return slices.Clone(m.data[r*m.cols : (r+1)*m.cols])
}

// ColumnSum sums column c over all rows.
func (m *Matrix) ColumnSum(c int) float64 {
	var s float64
	for r := 0; r < m.rows; r++ {
		s += m.At(r, c)
	}
	return s
}

// Table returns the matrix as a slice of row copies.
func (m *Matrix) Table() [][]float64 {
	out := make([][]float64, m.rows)
	for r := range out {
		out[r] = m.Row(r)
	}
	return out
}
