package model

import (
	"fmt"
	"math/rand"
)

// Storage capacity used by generated instances.
const generatedCapacity = 1000

// Random builds a synthetic instance: assignment and travel costs in [1,20)
// with travel symmetrised, opening costs in [50,200), demand in [1,10).
func Random(rng *rand.Rand, points, sites, vehicles int, vehicleCapacity float64) Instance {
	in := Instance{
		Name:            fmt.Sprintf("random-%dx%d-k%d", points, sites, vehicles),
		OpenCost:        make([]float64, sites),
		Capacity:        make([]float64, sites),
		Demand:          make([]float64, points),
		AssignCost:      make([][]float64, points),
		TravelCost:      make([][]float64, sites+1),
		Vehicles:        vehicles,
		VehicleCapacity: vehicleCapacity,
	}
	for i := range points {
		in.AssignCost[i] = make([]float64, sites)
		for j := range sites {
			in.AssignCost[i][j] = float64(1 + rng.Intn(19))
		}
	}
	raw := make([][]float64, sites+1)
	for u := range raw {
		raw[u] = make([]float64, sites+1)
		for v := range raw[u] {
			raw[u][v] = float64(1 + rng.Intn(19))
		}
	}
	for u := range in.TravelCost {
		in.TravelCost[u] = make([]float64, sites+1)
		for v := range in.TravelCost[u] {
			if u != v {
				in.TravelCost[u][v] = (raw[u][v] + raw[v][u]) / 2
			}
		}
	}
	for j := range sites {
		in.OpenCost[j] = float64(50 + rng.Intn(150))
		in.Capacity[j] = generatedCapacity
	}
	for i := range points {
		in.Demand[i] = float64(1 + rng.Intn(9))
	}
	return in
}
