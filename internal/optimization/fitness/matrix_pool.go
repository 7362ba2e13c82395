package fitness

import "gonum.org/v1/gonum/mat"

// MatrixPool recycles n×2 layout matrices keyed by row count to reduce
// allocations while scoring a population. It is not safe for concurrent use.
type MatrixPool struct {
	dense map[int][]*mat.Dense
}

// NewMatrixPool creates a new MatrixPool
func NewMatrixPool() *MatrixPool {
	return &MatrixPool{
		dense: make(map[int][]*mat.Dense),
	}
}

// GetLayout returns an n×2 matrix from the pool or creates a new one.
// A zero n yields an empty matrix, which gonum cannot allocate with
// NewDense.
func (p *MatrixPool) GetLayout(n int) *mat.Dense {
	if n == 0 {
		return &mat.Dense{}
	}
	if free := p.dense[n]; len(free) > 0 {
		m := free[len(free)-1]
		p.dense[n] = free[:len(free)-1]
		return m
	}
	return mat.NewDense(n, 2, nil)
}

// PutLayout returns a matrix to the pool.
func (p *MatrixPool) PutLayout(m *mat.Dense) {
	if m == nil || m.IsEmpty() {
		return
	}
	r, _ := m.Dims()
	p.dense[r] = append(p.dense[r], m)
}
