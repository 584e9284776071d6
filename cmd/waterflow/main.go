package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"waterflow/internal/api"
	"waterflow/internal/config"
	"waterflow/internal/events"
	"waterflow/internal/metrics"
	"waterflow/internal/model"
	"waterflow/internal/oracle"
	"waterflow/internal/store"
)

var interruptSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
	syscall.SIGINT,
}

func main() {
	configPath := flag.String("config", os.Getenv("WATERFLOW_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), interruptSignals...)
	defer stop()

	inst, err := loadInstance(cfg.Instance)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load instance")
	}
	log.Info().
		Str("instance", inst.Name).
		Int("points", inst.Points()).
		Int("sites", inst.Sites()).
		Int("vehicles", inst.Vehicles).
		Msg("instance ready")

	metrics.RegisterDefault()

	pool, closeCache, err := newPool(cfg, inst)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot build oracle pool")
	}
	defer closeCache()
	defer func() {
		if err := pool.Close(); err != nil {
			log.Error().Err(err).Msg("close oracle pool")
		}
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open store")
	}
	broker := openBroker(cfg)

	g, gctx := errgroup.WithContext(ctx)
	searchDone := make(chan struct{})

	server := api.NewServer(st, broker, log.Logger)
	runHTTPServer(gctx, g, cfg.HTTP, server, searchDone)

	job := &search{
		cfg:    cfg,
		inst:   inst,
		pool:   pool,
		store:  st,
		broker: broker,
		runID:  uuid.NewString(),
		rng:    rand.New(rand.NewSource(cfg.Search.Seed)),
	}
	g.Go(func() error {
		defer close(searchDone)
		return job.run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("error from wait group")
	}
}

func setupLogging(cfg config.Config) {
	if cfg.Development() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func loadInstance(c config.Instance) (model.Instance, error) {
	if c.Path != "" {
		return model.LoadInstance(c.Path)
	}
	rng := rand.New(rand.NewSource(c.Seed))
	inst := model.Random(rng, c.Points, c.Sites, c.Vehicles, c.VehicleCapacity)
	return inst, inst.Validate()
}

// newPool builds one decorated Reference solver per worker. Cache hits skip
// the rate limit and the time budget; instrumentation sees every solve.
func newPool(cfg config.Config, inst model.Instance) (*oracle.Pool, func(), error) {
	var cache oracle.Cache = oracle.NewMemoryCache()
	closeCache := func() {}
	if cfg.RedisURL != "" {
		rc, err := oracle.NewRedisCache(cfg.RedisURL, inst, cfg.Oracle.CacheTTL)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err = rc.Ping(ctx)
			cancel()
		}
		if err != nil {
			log.Warn().Err(err).Msg("redis cache unavailable, using in-memory cache")
		} else {
			cache = rc
			closeCache = func() { _ = rc.Close() }
			log.Info().Msg("redis evaluation cache enabled")
		}
	}

	var lim *rate.Limiter
	if cfg.Oracle.RatePerSecond > 0 {
		burst := max(cfg.Oracle.Burst, 1)
		lim = rate.NewLimiter(rate.Limit(cfg.Oracle.RatePerSecond), burst)
	}

	factory := func() (oracle.Solver, error) {
		ref, err := oracle.NewReference(inst)
		if err != nil {
			return nil, err
		}
		ref.TwoOptRounds = cfg.Oracle.TwoOptRounds
		var s oracle.Solver = ref
		if cfg.Oracle.Timeout > 0 {
			s = oracle.Timeout(s, cfg.Oracle.Timeout)
		}
		if lim != nil {
			s = oracle.RateLimit(s, lim)
		}
		return oracle.Instrument(oracle.Cached(s, cache)), nil
	}
	pool, err := oracle.NewPool(cfg.Search.Workers, factory)
	if err != nil {
		closeCache()
		return nil, nil, err
	}
	return pool, closeCache, nil
}

// openStore uses Postgres when DATABASE_URL is set, else an in-memory store.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return store.NewMemory(), nil
	}
	pg, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}
	log.Info().Msg("postgres run store ready")
	return pg, nil
}

func openBroker(cfg config.Config) events.Broker {
	if cfg.RedisURL != "" {
		rb, err := events.NewRedis(cfg.RedisURL)
		if err == nil {
			return rb
		}
		log.Warn().Err(err).Msg("redis broker unavailable, using in-memory broker")
	}
	return events.NewMemory()
}

func runHTTPServer(ctx context.Context, g *errgroup.Group, cfg config.HTTP, server *api.Server, searchDone <-chan struct{}) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		done := searchDone
		if cfg.KeepServing {
			done = nil
		}
		select {
		case <-ctx.Done():
		case <-done:
		}
		log.Info().Msg("graceful shutdown HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown HTTP server")
			return err
		}
		log.Info().Msg("HTTP server is stopped")
		return nil
	})
}
