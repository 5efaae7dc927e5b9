package rs8

// matrix is a row-major k_rows x k_cols byte matrix over GF(2^8).
type matrix struct {
	rows, cols int
	data       []byte
}

func newMatrix(rows, cols int) *matrix {
	return &matrix{rows: rows, cols: cols, data: make([]byte, rows*cols)}
}

func (m *matrix) at(r, c int) byte     { return m.data[r*m.cols+c] }
func (m *matrix) set(r, c int, v byte) { m.data[r*m.cols+c] = v }

// createEncodeMatrix builds the n x k systematic encode matrix: the
// top k rows are the identity, and rows k..n-1 are the bottom of a
// Vandermonde-like matrix multiplied by the inverse of its own top
// k x k block.
func createEncodeMatrix(t *gfTables, k, n int) (*matrix, error) {
	if k > 256 || n > 256 || k > n {
		return nil, newError(KindInvalidUse, nil)
	}

	tmp := newMatrix(n, k)
	tmp.set(0, 0, 1)
	for j := 1; j < k; j++ {
		tmp.set(0, j, 0)
	}
	for row := 1; row < n; row++ {
		for col := 0; col < k; col++ {
			exp := (row - 1) * col % 255
			tmp.set(row, col, t.exp[exp])
		}
	}

	top := newMatrix(k, k)
	copy(top.data, tmp.data[:k*k])
	topInv, err := invertMatrix(t, top)
	if err != nil {
		return nil, err
	}

	enc := newMatrix(n, k)
	copy(enc.data[:k*k], identityData(k))
	for row := k; row < n; row++ {
		for col := 0; col < k; col++ {
			var acc byte
			for i := 0; i < k; i++ {
				acc ^= t.gfMul(tmp.at(row, i), topInv.at(i, col))
			}
			enc.set(row, col, acc)
		}
	}
	return enc, nil
}

func identityData(k int) []byte {
	out := make([]byte, k*k)
	for i := 0; i < k; i++ {
		out[i*k+i] = 1
	}
	return out
}

// createDecodeMatrix assembles the k x k matrix whose row i is
// enc[index[i], :], then inverts it.
func createDecodeMatrix(t *gfTables, enc *matrix, index []int, k int) (*matrix, error) {
	m := newMatrix(k, k)
	for i := 0; i < k; i++ {
		for c := 0; c < k; c++ {
			m.set(i, c, enc.at(index[i], c))
		}
	}
	return invertMatrix(t, m)
}

// invertMatrix returns the inverse of a k x k matrix, computed by
// Gauss-Jordan elimination on a copy augmented with the identity; m
// itself is not modified. Pivoting is by rows only: each column's pivot
// is the first nonzero entry at or below the diagonal, and columns are
// never swapped.
func invertMatrix(t *gfTables, m *matrix) (*matrix, error) {
	k := m.rows
	aug := newMatrix(k, 2*k)
	for r := 0; r < k; r++ {
		copy(aug.data[r*2*k:r*2*k+k], m.data[r*k:r*k+k])
		aug.set(r, k+r, 1)
	}

	for col := 0; col < k; col++ {
		pivot := -1
		for r := col; r < k; r++ {
			if aug.at(r, col) != 0 {
				pivot = r
				break
			}
		}
		if pivot == -1 {
			return nil, newError(KindSingularMatrix, nil)
		}
		if pivot != col {
			swapRows(aug, pivot, col)
		}

		inv := t.inverse[aug.at(col, col)]
		for c := 0; c < 2*k; c++ {
			aug.set(col, c, t.gfMul(aug.at(col, c), inv))
		}

		for r := 0; r < k; r++ {
			if r == col {
				continue
			}
			factor := aug.at(r, col)
			if factor == 0 {
				continue
			}
			for c := 0; c < 2*k; c++ {
				aug.set(r, c, aug.at(r, c)^t.gfMul(factor, aug.at(col, c)))
			}
		}
	}

	out := newMatrix(k, k)
	for r := 0; r < k; r++ {
		copy(out.data[r*k:r*k+k], aug.data[r*2*k+k:r*2*k+2*k])
	}
	return out, nil
}

func swapRows(m *matrix, a, b int) {
	rowA := m.data[a*m.cols : a*m.cols+m.cols]
	rowB := m.data[b*m.cols : b*m.cols+m.cols]
	for i := range rowA {
		rowA[i], rowB[i] = rowB[i], rowA[i]
	}
}
