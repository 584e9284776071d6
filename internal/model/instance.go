package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
	yaml "gopkg.in/yaml.v3"

	"waterflow/internal/dow"
)

// ErrInvalidInstance is returned by Validate for inconsistent tables.
var ErrInvalidInstance = errors.New("model: invalid instance")

// Instance is the immutable input bundle of one location-assignment-routing
// problem. Site j is column j of AssignCost and row/column j of TravelCost;
// the facility is the last row/column of TravelCost.
type Instance struct {
	Name            string      `yaml:"name" json:"name"`
	OpenCost        []float64   `yaml:"openCost" json:"openCost"`     // per site
	Capacity        []float64   `yaml:"capacity" json:"capacity"`     // per site
	Demand          []float64   `yaml:"demand" json:"demand"`         // per demand point
	AssignCost      [][]float64 `yaml:"assignCost" json:"assignCost"` // points x sites, per unit of demand
	TravelCost      [][]float64 `yaml:"travelCost" json:"travelCost"` // (sites+1) x (sites+1)
	Vehicles        int         `yaml:"vehicles" json:"vehicles"`
	VehicleCapacity float64     `yaml:"vehicleCapacity" json:"vehicleCapacity"`
}

// Sites is the number of candidate storage sites.
func (in Instance) Sites() int { return len(in.OpenCost) }

// Points is the number of demand points.
func (in Instance) Points() int { return len(in.Demand) }

// Facility is the index of the central facility in TravelCost.
func (in Instance) Facility() int { return len(in.OpenCost) }

// Dims returns the sizes solutions for this instance are encoded against.
func (in Instance) Dims() dow.Dims {
	return dow.Dims{Sites: in.Sites(), Points: in.Points(), Vehicles: in.Vehicles}
}

// Validate checks table shapes and signs.
func (in Instance) Validate() error {
	m, n := in.Sites(), in.Points()
	if m == 0 || n == 0 {
		return fmt.Errorf("%w: need at least one site and one demand point", ErrInvalidInstance)
	}
	if in.Vehicles < 1 {
		return fmt.Errorf("%w: vehicles must be >= 1", ErrInvalidInstance)
	}
	if in.VehicleCapacity <= 0 {
		return fmt.Errorf("%w: vehicleCapacity must be > 0", ErrInvalidInstance)
	}
	if len(in.Capacity) != m {
		return fmt.Errorf("%w: capacity has %d entries, want %d", ErrInvalidInstance, len(in.Capacity), m)
	}
	if len(in.AssignCost) != n {
		return fmt.Errorf("%w: assignCost has %d rows, want %d", ErrInvalidInstance, len(in.AssignCost), n)
	}
	for i, row := range in.AssignCost {
		if len(row) != m {
			return fmt.Errorf("%w: assignCost row %d has %d columns, want %d", ErrInvalidInstance, i, len(row), m)
		}
	}
	if len(in.TravelCost) != m+1 {
		return fmt.Errorf("%w: travelCost has %d rows, want %d", ErrInvalidInstance, len(in.TravelCost), m+1)
	}
	for u, row := range in.TravelCost {
		if len(row) != m+1 {
			return fmt.Errorf("%w: travelCost row %d has %d columns, want %d", ErrInvalidInstance, u, len(row), m+1)
		}
	}
	for i, d := range in.Demand {
		if d < 0 {
			return fmt.Errorf("%w: demand[%d] is negative", ErrInvalidInstance, i)
		}
	}
	for j := range m {
		if in.OpenCost[j] < 0 || in.Capacity[j] < 0 {
			return fmt.Errorf("%w: site %d has negative cost or capacity", ErrInvalidInstance, j)
		}
	}
	return nil
}

// Digest identifies the instance data: two instances share a digest only if
// every table and fleet figure is equal. The name is not part of it.
func (in Instance) Digest() string {
	in.Name = ""
	b, err := json.Marshal(in)
	if err != nil {
		// Only NaN or Inf costs fail to encode; fall back to the printed form.
		b = fmt.Appendf(nil, "%v", in)
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

// LoadInstance reads an instance from a YAML or JSON file.
func LoadInstance(path string) (Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Instance{}, err
	}
	var in Instance
	if err := yaml.Unmarshal(data, &in); err != nil {
		return Instance{}, fmt.Errorf("model: parse %s: %w", path, err)
	}
	if err := in.Validate(); err != nil {
		return Instance{}, err
	}
	return in, nil
}
