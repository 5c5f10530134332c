package geo

import "dispacio/internal/units"

// Matrix holds pairwise distances in whole metres. Row and column i refer to
// the i-th location passed to BuildMatrix.
type Matrix [][]int64

// BuildMatrix computes the symmetric distance matrix for points. The upper
// triangle is computed once and mirrored; the diagonal is zero.
func BuildMatrix(points []Point) Matrix {
	n := len(points)
	m := make(Matrix, n)
	cells := make([]int64, n*n)
	for i := range m {
		m[i] = cells[i*n : (i+1)*n : (i+1)*n]
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := units.Meters(Haversine(points[i], points[j]))
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}

// Size is the number of locations covered by m.
func (m Matrix) Size() int { return len(m) }

// Square reports whether every row has len(m) columns.
func (m Matrix) Square() bool {
	for _, row := range m {
		if len(row) != len(m) {
			return false
		}
	}
	return true
}
