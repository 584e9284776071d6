package dow

import "fmt"

// ToMatrix switches the DOW to matrix form. Calling it twice is a no-op.
func (s *DOW) ToMatrix() {
	if s.form == FormMatrix || s.y == nil {
		return
	}
	s.yMat = s.buildYMatrix()
	s.zMat = s.buildZMatrix()
	s.form = FormMatrix
}

// ToVector switches the DOW back to vector form. Calling it twice is a no-op.
func (s *DOW) ToVector() {
	if s.form == FormVector {
		return
	}
	s.yMat, s.zMat = nil, nil
	s.form = FormVector
}

// YMatrix returns the Points x Sites assignment matrix.
func (s *DOW) YMatrix() [][]int {
	if s.form == FormMatrix {
		return cloneMatrix(s.yMat)
	}
	return s.buildYMatrix()
}

// ZMatrix returns the successor matrix over sites plus the facility. The
// facility occupies the last row and column.
func (s *DOW) ZMatrix() [][]int {
	if s.form == FormMatrix {
		return cloneMatrix(s.zMat)
	}
	return s.buildZMatrix()
}

func (s *DOW) buildYMatrix() [][]int {
	if s.y == nil {
		return nil
	}
	m := newMatrix(s.dims.Points, s.dims.Sites)
	for i, label := range s.y {
		m[i][label-1] = 1
	}
	return m
}

func (s *DOW) buildZMatrix() [][]int {
	if s.y == nil {
		return nil
	}
	f := s.dims.Sites
	m := newMatrix(f+1, f+1)
	for _, route := range s.Routes() {
		prev := f
		for _, label := range route {
			m[prev][label-1] = 1
			prev = label - 1
		}
		m[prev][f] = 1
	}
	return m
}

// FromMatrix builds a DOW from matrix encodings. Routes are recovered by
// following the facility's out-arcs in column order until each returns to the
// facility; arcs not reachable that way make the matrix malformed.
func FromMatrix(d Dims, x []int, yMat, zMat [][]int) (*DOW, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	y, err := vectorY(d, yMat)
	if err != nil {
		return nil, err
	}
	z, err := vectorZ(d, zMat)
	if err != nil {
		return nil, err
	}
	s, err := New(d, x, y, z)
	if err != nil {
		return nil, err
	}
	s.ToMatrix()
	return s, nil
}

func vectorY(d Dims, m [][]int) ([]int, error) {
	if len(m) != d.Points {
		return nil, fmt.Errorf("%w: y matrix has %d rows, want %d", ErrEncoding, len(m), d.Points)
	}
	y := make([]int, d.Points)
	for i, row := range m {
		if len(row) != d.Sites {
			return nil, fmt.Errorf("%w: y row %d has %d columns", ErrEncoding, i, len(row))
		}
		for j, v := range row {
			switch v {
			case 0:
			case 1:
				if y[i] != 0 {
					return nil, fmt.Errorf("%w: y row %d assigns twice", ErrEncoding, i)
				}
				y[i] = j + 1
			default:
				return nil, fmt.Errorf("%w: y[%d][%d]=%d is not binary", ErrEncoding, i, j, v)
			}
		}
		if y[i] == 0 {
			return nil, fmt.Errorf("%w: y row %d is unassigned", ErrEncoding, i)
		}
	}
	return y, nil
}

func vectorZ(d Dims, m [][]int) ([]int, error) {
	f := d.Sites
	if len(m) != f+1 {
		return nil, fmt.Errorf("%w: z matrix has %d rows, want %d", ErrEncoding, len(m), f+1)
	}
	arcs := 0
	for u, row := range m {
		if len(row) != f+1 {
			return nil, fmt.Errorf("%w: z row %d has %d columns", ErrEncoding, u, len(row))
		}
		for v, a := range row {
			if a != 0 && a != 1 {
				return nil, fmt.Errorf("%w: z[%d][%d]=%d is not binary", ErrEncoding, u, v, a)
			}
			if a == 1 && u == v {
				return nil, fmt.Errorf("%w: self loop at %d", ErrEncoding, u)
			}
			arcs += a
		}
	}

	var z []int
	walked := 0
	for first, a := range m[f] {
		if a == 0 {
			continue
		}
		z = append(z, Facility)
		walked++
		cur := first
		for steps := 0; cur != f; steps++ {
			if steps > f {
				return nil, fmt.Errorf("%w: route from the facility never returns", ErrEncoding)
			}
			z = append(z, cur+1)
			next, err := successor(m[cur], cur)
			if err != nil {
				return nil, err
			}
			walked++
			cur = next
		}
	}
	if walked != arcs {
		return nil, fmt.Errorf("%w: %d arcs are not on a route through the facility", ErrEncoding, arcs-walked)
	}
	return z, nil
}

func successor(row []int, u int) (int, error) {
	next := -1
	for v, a := range row {
		if a == 1 {
			if next >= 0 {
				return 0, fmt.Errorf("%w: node %d has two successors", ErrEncoding, u)
			}
			next = v
		}
	}
	if next < 0 {
		return 0, fmt.Errorf("%w: route never returns to the facility after node %d", ErrEncoding, u)
	}
	return next, nil
}

func newMatrix(rows, cols int) [][]int {
	m := make([][]int, rows)
	for i := range m {
		m[i] = make([]int, cols)
	}
	return m
}

func cloneMatrix(m [][]int) [][]int {
	if m == nil {
		return nil
	}
	out := make([][]int, len(m))
	for i, row := range m {
		out[i] = append([]int(nil), row...)
	}
	return out
}
