package opt

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"waterflow/internal/dow"
	"waterflow/internal/events"
	"waterflow/internal/metrics"
	"waterflow/internal/oracle"
)

// Params tune a WaterFlow run.
type Params struct {
	MaxCloud int `yaml:"maxCloud" json:"maxCloud"`
	MaxPop   int `yaml:"maxPop" json:"maxPop"`
	MaxUIE   int `yaml:"maxUIE" json:"maxUIE"`
	// MinEro is how often an optimum must recur before it is eroded.
	MinEro      int `yaml:"minEro" json:"minEro"`
	MaxAttempts int `yaml:"maxAttempts" json:"maxAttempts"`
	MaxRepairs  int `yaml:"maxRepairs" json:"maxRepairs"`
	// CloudRetries is how often a cloud hit by a solver failure is retried
	// before it is abandoned.
	CloudRetries int           `yaml:"cloudRetries" json:"cloudRetries"`
	Backoff      time.Duration `yaml:"backoff" json:"backoff"`
}

// WaterFlow is the driver: clouds rain seeds, seeds descend to local optima,
// recurring optima are eroded, and the best erosion result wins.
type WaterFlow struct {
	Eval   Evaluator
	Dims   dow.Dims
	Params Params
	Rand   *rand.Rand
	Log    zerolog.Logger
	Events events.Publisher
	RunID  string
}

// Report summarises a run. Best is nil when nothing was promoted to P0.
type Report struct {
	RunID           string
	Best            *dow.DOW
	Clouds          int
	AbandonedClouds int
	Seeds           int
	Erosions        int
	Promotions      int
	Population      Stats
	Elapsed         time.Duration
}

type run struct {
	*WaterFlow
	pop    *Population
	search *LocalSearch
	eroder *Eroder
	cloud  *Cloud
	rep    *Report
}

// Run executes the search. Only cancellation and non-solver errors abort it;
// a cloud failing on the solver is retried and then skipped.
func (w *WaterFlow) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	rep := Report{RunID: w.RunID}
	rng := w.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	r := &run{WaterFlow: w, pop: NewPopulation(), rep: &rep}
	r.search = &LocalSearch{Eval: w.Eval, Opt1: Opt1{MaxRepairs: w.Params.MaxRepairs}, Log: w.Log}
	r.eroder = &Eroder{Search: r.search, MaxUIE: w.Params.MaxUIE, Log: w.Log, Notify: r.promoted}
	r.cloud = &Cloud{Dims: w.Dims, MaxPop: w.Params.MaxPop, MaxAttempts: w.Params.MaxAttempts, Log: w.Log}

	for c := 0; c < w.Params.MaxCloud; c++ {
		for attempt := 0; ; attempt++ {
			err := r.cloudOnce(ctx, c, rng)
			if err == nil {
				break
			}
			if !errors.Is(err, oracle.ErrSolver) {
				return rep, err
			}
			if attempt >= w.Params.CloudRetries {
				w.Log.Warn().Err(err).Int("cloud", c).Msg("cloud abandoned")
				w.publish(events.CloudAbandoned, map[string]any{"cloud": c, "error": err.Error()})
				rep.AbandonedClouds++
				break
			}
			wait := nextBackoff(w.Params.Backoff, attempt)
			w.Log.Warn().Err(err).Int("cloud", c).Dur("backoff", wait).Msg("cloud failed; retrying")
			select {
			case <-ctx.Done():
				return rep, ctx.Err()
			case <-time.After(wait):
			}
		}
		rep.Clouds++
	}

	rep.Best = r.pop.Best()
	rep.Population = r.pop.Stats()
	rep.Elapsed = time.Since(start)
	data := map[string]any{"p0": rep.Population.P0, "clouds": rep.Clouds}
	if rep.Best != nil {
		metrics.BestObjective.Set(objective(rep.Best))
		data["objective"] = objective(rep.Best)
		w.Log.Info().Float64("objective", objective(rep.Best)).Str("best", rep.Best.String()).Msg("run finished")
	} else {
		w.Log.Info().Msg("run finished without solution")
	}
	w.publish(events.RunFinished, data)
	return rep, nil
}

func (r *run) cloudOnce(ctx context.Context, c int, rng *rand.Rand) error {
	r.publish(events.CloudStarted, map[string]any{"cloud": c})
	rain, err := r.cloud.Rain(ctx, r.Eval, rng, r.pop)
	r.pop.AddDiscarded(rain.Discarded...)
	if err != nil {
		return err
	}
	r.rep.Seeds += len(rain.Seeds)
	r.Log.Info().Int("cloud", c).Int("seeds", len(rain.Seeds)).Int("attempts", rain.Attempts).Msg("rainfall")

	for _, seed := range rain.Seeds {
		res, err := r.search.Run(ctx, seed)
		if err != nil {
			return err
		}
		r.pop.AddExcluded(res.Excluded...)
		r.pop.AddDiscarded(res.Discarded...)
		r.pop.RecordOptimum(res.Optimum, res.Neighbors)
		r.publish(events.OptimumFound, map[string]any{
			"cloud":       c,
			"objective":   objective(res.Optimum),
			"occurrences": r.pop.Occurrences(res.Optimum),
			"transitions": res.Transitions,
		})
	}

	for _, o := range r.pop.Ready(r.Params.MinEro) {
		if !r.pop.InUE(o) {
			continue
		}
		final, err := r.eroder.Erode(ctx, r.pop, o)
		if err != nil {
			return err
		}
		r.rep.Erosions++
		r.pop.AddBest(final)
		r.publish(events.ErosionFinished, map[string]any{
			"cloud":     c,
			"from":      objective(o),
			"objective": objective(final),
		})
	}
	return nil
}

func (r *run) promoted(d, from *dow.DOW) {
	r.rep.Promotions++
	r.publish(events.ErosionPromoted, map[string]any{"from": objective(from), "objective": objective(d)})
}

func (w *WaterFlow) publish(typ string, data map[string]any) {
	if w.Events == nil {
		return
	}
	w.Events.Publish(w.RunID, events.New(w.RunID, typ, data))
}

// nextBackoff doubles base per attempt, capped at one minute.
func nextBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 10 {
		attempt = 10
	}
	d := base * time.Duration(1<<attempt)
	if d > time.Minute {
		d = time.Minute
	}
	return d
}
