package opt

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waterflow/internal/events"
	"waterflow/internal/oracle"
)

func testParams() Params {
	return Params{
		MaxCloud:     2,
		MaxPop:       4,
		MaxUIE:       2,
		MinEro:       1,
		MaxAttempts:  300,
		MaxRepairs:   20,
		CloudRetries: 1,
		Backoff:      time.Millisecond,
	}
}

func TestWaterFlowFindsBestOptimum(t *testing.T) {
	in := fiveSites()
	rec := &recorder{}
	w := &WaterFlow{
		Eval:   newPool(t, in),
		Dims:   in.Dims(),
		Params: testParams(),
		Rand:   rand.New(rand.NewSource(42)),
		Events: rec,
		RunID:  "run-1",
	}
	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rep.Best)
	require.True(t, rep.Best.Admissible())
	require.Equal(t, 2, rep.Clouds)
	require.Zero(t, rep.AbandonedClouds)
	require.Equal(t, 8, rep.Seeds)
	require.GreaterOrEqual(t, rep.Population.P0, 1)

	found := rec.ofType(events.OptimumFound)
	require.Len(t, found, 8)
	lowest := math.Inf(1)
	for _, e := range found {
		lowest = math.Min(lowest, e.Data["objective"].(float64))
	}
	require.LessOrEqual(t, objective(rep.Best), lowest)

	last := rec.events[len(rec.events)-1]
	require.Equal(t, events.RunFinished, last.Type)
	require.Equal(t, "run-1", last.RunID)
	require.Len(t, rec.ofType(events.CloudStarted), 2)
}

func TestWaterFlowWithoutErosionHasNoSolution(t *testing.T) {
	in := fiveSites()
	p := testParams()
	p.MinEro = 1000
	w := &WaterFlow{Eval: newPool(t, in), Dims: in.Dims(), Params: p, Rand: rand.New(rand.NewSource(1))}

	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Nil(t, rep.Best)
	require.Zero(t, rep.Erosions)
	require.Positive(t, rep.Population.UE)
}

// flakyEval fails the first n completions with a solver error.
type flakyEval struct {
	Evaluator
	n int
}

func (f *flakyEval) Complete(ctx context.Context, x []int) (oracle.Result, error) {
	if f.n > 0 {
		f.n--
		return oracle.Result{}, &oracle.Error{Op: "complete", Err: errors.New("license server down")}
	}
	return f.Evaluator.Complete(ctx, x)
}

func TestWaterFlowRetriesCloudOnSolverError(t *testing.T) {
	in := fiveSites()
	rec := &recorder{}
	w := &WaterFlow{
		Eval:   &flakyEval{Evaluator: newPool(t, in), n: 1},
		Dims:   in.Dims(),
		Params: testParams(),
		Rand:   rand.New(rand.NewSource(42)),
		Events: rec,
	}
	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, rep.AbandonedClouds)
	require.NotNil(t, rep.Best)
}

func TestWaterFlowAbandonsCloudsAfterRetries(t *testing.T) {
	in := fiveSites()
	rec := &recorder{}
	w := &WaterFlow{
		Eval:   &flakyEval{Evaluator: newPool(t, in), n: math.MaxInt},
		Dims:   in.Dims(),
		Params: testParams(),
		Rand:   rand.New(rand.NewSource(42)),
		Events: rec,
	}
	rep, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, rep.AbandonedClouds)
	require.Nil(t, rep.Best)
	require.Len(t, rec.ofType(events.CloudAbandoned), 2)
}

func TestWaterFlowStopsOnCancel(t *testing.T) {
	in := fiveSites()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &WaterFlow{Eval: newPool(t, in), Dims: in.Dims(), Params: testParams()}
	_, err := w.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNextBackoff(t *testing.T) {
	require.Equal(t, 10*time.Millisecond, nextBackoff(10*time.Millisecond, 0))
	require.Equal(t, 40*time.Millisecond, nextBackoff(10*time.Millisecond, 2))
	require.Equal(t, time.Minute, nextBackoff(time.Second, 30))
	require.Equal(t, time.Second, nextBackoff(0, 0))
}
