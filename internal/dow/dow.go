// Package dow holds the drop-of-water: one candidate solution of the
// location-assignment-routing problem together with its vector and matrix
// encodings.
//
// The vector form is canonical. X is a 0/1 vector over storage sites, Y maps
// every demand point to the 1-based label of an open site, and Z is the
// concatenation of the vehicle routes, each route starting with the facility
// sentinel 0 followed by the visited site labels. The matrix form is derived
// from it on demand and never participates in equality or hashing.
package dow

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Facility is the sentinel that opens every route in a Z vector.
const Facility = 0

var (
	// ErrEncoding reports a malformed vector or matrix encoding.
	ErrEncoding = errors.New("dow: malformed encoding")
	// ErrAlreadyEvaluated is returned when an objective is set twice.
	ErrAlreadyEvaluated = errors.New("dow: objective already set")
)

// Dims are the problem sizes a DOW is encoded against.
type Dims struct {
	Sites    int
	Points   int
	Vehicles int
}

// Form is the encoding a DOW currently exposes.
type Form int

const (
	FormVector Form = iota
	FormMatrix
)

func (f Form) String() string {
	if f == FormMatrix {
		return "matrix"
	}
	return "vector"
}

// DOW is a single candidate solution.
type DOW struct {
	dims Dims
	x    []int
	y    []int // nil for a partial (X only) solution
	z    []int

	form Form
	yMat [][]int
	zMat [][]int

	objective float64
	evaluated bool
}

// New builds a DOW from vector encodings. Routes in z are canonicalised:
// empty routes are dropped and routes are ordered by their first site, which
// is the order a matrix walk from the facility yields.
func New(d Dims, x, y, z []int) (*DOW, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if err := checkX(d, x); err != nil {
		return nil, err
	}
	if len(y) != d.Points {
		return nil, fmt.Errorf("%w: y has %d entries, want %d", ErrEncoding, len(y), d.Points)
	}
	for i, label := range y {
		if label < 1 || label > d.Sites {
			return nil, fmt.Errorf("%w: y[%d]=%d out of range", ErrEncoding, i, label)
		}
		if x[label-1] != 1 {
			return nil, fmt.Errorf("%w: y[%d] assigned to closed site %d", ErrEncoding, i, label)
		}
	}
	routes, err := splitRoutes(d, x, z)
	if err != nil {
		return nil, err
	}
	return &DOW{
		dims: d,
		x:    slices.Clone(x),
		y:    slices.Clone(y),
		z:    joinRoutes(routes),
	}, nil
}

// Partial builds an X-only DOW. It is used to remember drawn site patterns the
// oracle could not complete.
func Partial(d Dims, x []int) (*DOW, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if err := checkX(d, x); err != nil {
		return nil, err
	}
	return &DOW{dims: d, x: slices.Clone(x)}, nil
}

func (d Dims) validate() error {
	if d.Sites < 1 || d.Points < 1 || d.Vehicles < 1 {
		return fmt.Errorf("%w: invalid dims %+v", ErrEncoding, d)
	}
	return nil
}

func checkX(d Dims, x []int) error {
	if len(x) != d.Sites {
		return fmt.Errorf("%w: x has %d entries, want %d", ErrEncoding, len(x), d.Sites)
	}
	for j, v := range x {
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: x[%d]=%d is not binary", ErrEncoding, j, v)
		}
	}
	return nil
}

// splitRoutes parses a Z vector into routes of site labels and checks that
// the routes visit every open site exactly once and nothing else.
func splitRoutes(d Dims, x, z []int) ([][]int, error) {
	if len(z) > 0 && z[0] != Facility {
		return nil, fmt.Errorf("%w: z must start at the facility", ErrEncoding)
	}
	var routes [][]int
	visited := make([]bool, d.Sites)
	for _, label := range z {
		if label == Facility {
			routes = append(routes, nil)
			continue
		}
		if label < 1 || label > d.Sites {
			return nil, fmt.Errorf("%w: z label %d out of range", ErrEncoding, label)
		}
		if x[label-1] != 1 {
			return nil, fmt.Errorf("%w: route visits closed site %d", ErrEncoding, label)
		}
		if visited[label-1] {
			return nil, fmt.Errorf("%w: site %d visited twice", ErrEncoding, label)
		}
		visited[label-1] = true
		last := len(routes) - 1
		routes[last] = append(routes[last], label)
	}
	for j, open := range x {
		if open == 1 && !visited[j] {
			return nil, fmt.Errorf("%w: open site %d is not routed", ErrEncoding, j+1)
		}
	}
	routes = slices.DeleteFunc(routes, func(r []int) bool { return len(r) == 0 })
	slices.SortFunc(routes, func(a, b []int) int { return a[0] - b[0] })
	return routes, nil
}

func joinRoutes(routes [][]int) []int {
	n := 0
	for _, r := range routes {
		n += len(r) + 1
	}
	z := make([]int, 0, n)
	for _, r := range routes {
		z = append(z, Facility)
		z = append(z, r...)
	}
	return z
}

// Dims returns the sizes the DOW was built for.
func (s *DOW) Dims() Dims { return s.dims }

// Partial reports whether only X is known.
func (s *DOW) Partial() bool { return s.y == nil }

// Form returns the current encoding.
func (s *DOW) Form() Form { return s.form }

// X returns a copy of the site vector.
func (s *DOW) X() []int { return slices.Clone(s.x) }

// YVector returns a copy of the assignment vector (1-based site labels).
func (s *DOW) YVector() []int { return slices.Clone(s.y) }

// ZVector returns a copy of the concatenated routes.
func (s *DOW) ZVector() []int { return slices.Clone(s.z) }

// Routes returns the routes as slices of site labels, without the facility.
func (s *DOW) Routes() [][]int {
	var routes [][]int
	for _, label := range s.z {
		if label == Facility {
			routes = append(routes, []int{})
			continue
		}
		last := len(routes) - 1
		routes[last] = append(routes[last], label)
	}
	return routes
}

// OpenSites returns the 0-based indices of open sites.
func (s *DOW) OpenSites() []int { return sitesWith(s.x, 1) }

// ClosedSites returns the 0-based indices of closed sites.
func (s *DOW) ClosedSites() []int { return sitesWith(s.x, 0) }

func sitesWith(x []int, v int) []int {
	var out []int
	for j, b := range x {
		if b == v {
			out = append(out, j)
		}
	}
	return out
}

// Admissible reports whether at least one site is open and every open site
// serves at least one demand point.
func (s *DOW) Admissible() bool {
	if s.y == nil {
		return false
	}
	served := make([]bool, s.dims.Sites)
	for _, label := range s.y {
		served[label-1] = true
	}
	open := 0
	for j, b := range s.x {
		if b == 1 {
			open++
			if !served[j] {
				return false
			}
		}
	}
	return open > 0
}

// Objective returns the oracle objective and whether it has been set.
func (s *DOW) Objective() (float64, bool) { return s.objective, s.evaluated }

// Evaluated reports whether the oracle has scored this DOW.
func (s *DOW) Evaluated() bool { return s.evaluated }

// SetObjective records the oracle objective. It can be called once.
func (s *DOW) SetObjective(v float64) error {
	if s.evaluated {
		return ErrAlreadyEvaluated
	}
	s.objective = v
	s.evaluated = true
	return nil
}

// Equal compares the canonical vector forms.
func (s *DOW) Equal(o *DOW) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.dims == o.dims &&
		(s.y == nil) == (o.y == nil) &&
		slices.Equal(s.x, o.x) &&
		slices.Equal(s.y, o.y) &&
		slices.Equal(s.z, o.z)
}

// Key is a canonical string usable as a map key; equal DOWs share a key.
func (s *DOW) Key() string {
	var b strings.Builder
	b.Grow(2 * (len(s.x) + len(s.y) + len(s.z) + 4))
	writeInts(&b, 'x', s.x)
	if s.y != nil {
		writeInts(&b, 'y', s.y)
		writeInts(&b, 'z', s.z)
	}
	return b.String()
}

func writeInts(b *strings.Builder, tag byte, v []int) {
	b.WriteByte(tag)
	b.WriteByte(':')
	for i, n := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(n))
	}
	b.WriteByte('|')
}

// Hash is derived from Key and is therefore consistent with Equal.
func (s *DOW) Hash() uint64 { return xxhash.Sum64String(s.Key()) }

// Clone returns a deep copy, objective included.
func (s *DOW) Clone() *DOW {
	c := &DOW{
		dims:      s.dims,
		x:         slices.Clone(s.x),
		y:         slices.Clone(s.y),
		z:         slices.Clone(s.z),
		form:      s.form,
		objective: s.objective,
		evaluated: s.evaluated,
	}
	if s.form == FormMatrix {
		c.yMat = cloneMatrix(s.yMat)
		c.zMat = cloneMatrix(s.zMat)
	}
	return c
}

func (s *DOW) String() string {
	obj := "none"
	if s.evaluated {
		obj = strconv.FormatFloat(s.objective, 'f', 2, 64)
	}
	return fmt.Sprintf("DOW{obj=%s X=%v Y=%v Z=%v}", obj, s.x, s.y, s.z)
}
