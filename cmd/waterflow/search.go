package main

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"waterflow/internal/config"
	"waterflow/internal/events"
	"waterflow/internal/model"
	"waterflow/internal/opt"
	"waterflow/internal/oracle"
	"waterflow/internal/store"
)

// search is one WaterFlow run and its bookkeeping in the run store.
type search struct {
	cfg    config.Config
	inst   model.Instance
	pool   *oracle.Pool
	store  store.Store
	broker events.Broker
	runID  string
	rng    *rand.Rand
}

func (s *search) run(ctx context.Context) error {
	logger := log.With().Str("run", s.runID).Logger()
	rec := store.Run{
		ID:        s.runID,
		Instance:  s.inst.Name,
		Status:    store.StatusRunning,
		StartedAt: time.Now().UTC(),
		Params:    paramsMap(s.cfg.Search),
	}
	if _, err := s.store.SaveRun(ctx, rec); err != nil {
		return err
	}
	logger.Info().Msg("run started")

	wf := &opt.WaterFlow{
		Eval:   s.pool,
		Dims:   s.inst.Dims(),
		Params: s.cfg.Search.Params,
		Rand:   s.rng,
		Log:    logger,
		Events: s.broker,
		RunID:  s.runID,
	}
	rep, runErr := wf.Run(ctx)
	rec = finishRun(rec, rep, runErr, time.Now().UTC())

	// The run context may be gone; the record should still land.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.store.SaveRun(saveCtx, rec); err != nil {
		logger.Error().Err(err).Msg("save run")
		return errors.Join(runErr, err)
	}
	logger.Info().
		Str("status", rec.Status).
		Int("clouds", rep.Clouds).
		Int("seeds", rep.Seeds).
		Int("erosions", rep.Erosions).
		Dur("elapsed", rep.Elapsed).
		Msg("run saved")
	return runErr
}

// finishRun folds a report into the stored record.
func finishRun(rec store.Run, rep opt.Report, runErr error, at time.Time) store.Run {
	rec.FinishedAt = &at
	rec.Stats = map[string]any{
		"clouds":          rep.Clouds,
		"abandonedClouds": rep.AbandonedClouds,
		"seeds":           rep.Seeds,
		"erosions":        rep.Erosions,
		"promotions":      rep.Promotions,
		"p0":              rep.Population.P0,
		"ue":              rep.Population.UE,
		"eroded":          rep.Population.Eroded,
		"excluded":        rep.Population.Excluded,
		"discarded":       rep.Population.Discarded,
		"elapsedMs":       rep.Elapsed.Milliseconds(),
	}
	switch {
	case runErr != nil:
		rec.Status = store.StatusFailed
		rec.Error = runErr.Error()
	case rep.Best == nil:
		rec.Status = store.StatusNoSolution
	default:
		rec.Status = store.StatusSolved
	}
	if rep.Best != nil {
		if v, ok := rep.Best.Objective(); ok {
			rec.Objective = &v
		}
		rec.X, rec.Y, rec.Z = rep.Best.X(), rep.Best.YVector(), rep.Best.ZVector()
	}
	return rec
}

func paramsMap(s config.Search) map[string]any {
	return map[string]any{
		"maxCloud":     s.MaxCloud,
		"maxPop":       s.MaxPop,
		"maxUIE":       s.MaxUIE,
		"minEro":       s.MinEro,
		"maxAttempts":  s.MaxAttempts,
		"maxRepairs":   s.MaxRepairs,
		"cloudRetries": s.CloudRetries,
		"seed":         s.Seed,
		"workers":      s.Workers,
	}
}
