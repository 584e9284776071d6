package model

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomIsValidAndSeeded(t *testing.T) {
	a := Random(rand.New(rand.NewSource(66)), 5, 6, 3, 100)
	b := Random(rand.New(rand.NewSource(66)), 5, 6, 3, 100)
	require.NoError(t, a.Validate())
	require.Equal(t, a, b)
	require.Equal(t, 6, a.Sites())
	require.Equal(t, 5, a.Points())
	require.Equal(t, 6, a.Facility())

	for u := range a.TravelCost {
		require.Zero(t, a.TravelCost[u][u])
		for v := range a.TravelCost {
			require.Equal(t, a.TravelCost[u][v], a.TravelCost[v][u])
		}
	}
	for j := range a.OpenCost {
		require.GreaterOrEqual(t, a.OpenCost[j], 50.0)
		require.Less(t, a.OpenCost[j], 200.0)
	}
}

func TestValidateRejectsBadShapes(t *testing.T) {
	in := Random(rand.New(rand.NewSource(1)), 3, 3, 1, 50)
	in.TravelCost = in.TravelCost[:3]
	require.ErrorIs(t, in.Validate(), ErrInvalidInstance)

	in = Random(rand.New(rand.NewSource(1)), 3, 3, 1, 50)
	in.Vehicles = 0
	require.ErrorIs(t, in.Validate(), ErrInvalidInstance)

	in = Random(rand.New(rand.NewSource(1)), 3, 3, 1, 50)
	in.AssignCost[1] = in.AssignCost[1][:2]
	require.ErrorIs(t, in.Validate(), ErrInvalidInstance)
}

func TestLoadInstanceYAML(t *testing.T) {
	doc := `
name: tiny
openCost: [10, 20]
capacity: [100, 100]
demand: [1, 2]
assignCost: [[1, 5], [4, 2]]
travelCost: [[0, 3, 4], [3, 0, 5], [4, 5, 0]]
vehicles: 1
vehicleCapacity: 10
`
	path := filepath.Join(t.TempDir(), "tiny.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	in, err := LoadInstance(path)
	require.NoError(t, err)
	require.Equal(t, "tiny", in.Name)
	require.Equal(t, 2, in.Dims().Sites)
	require.Equal(t, 1, in.Dims().Vehicles)
	require.Equal(t, 5.0, in.TravelCost[1][2])
}

func TestDigestFollowsData(t *testing.T) {
	a := Random(rand.New(rand.NewSource(1)), 6, 4, 2, 100)
	b := Random(rand.New(rand.NewSource(2)), 6, 4, 2, 100)
	require.Equal(t, a.Name, b.Name)
	require.NotEqual(t, a.Digest(), b.Digest())

	renamed := Random(rand.New(rand.NewSource(1)), 6, 4, 2, 100)
	renamed.Name = "other"
	require.Equal(t, a.Digest(), renamed.Digest())

	roomier := Random(rand.New(rand.NewSource(1)), 6, 4, 2, 150)
	require.NotEqual(t, a.Digest(), roomier.Digest())
}
