package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vivaagenda/practice-scheduling/internal/civil"
	"github.com/vivaagenda/practice-scheduling/internal/config"
	"github.com/vivaagenda/practice-scheduling/internal/db"
	"github.com/vivaagenda/practice-scheduling/internal/metrics"
	redisclient "github.com/vivaagenda/practice-scheduling/internal/redis"
	"github.com/vivaagenda/practice-scheduling/internal/schedule"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Str("service", "renewal-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	logger.Info().Str("env", cfg.Env).Str("renewal_at", cfg.RenewalAt).Msg("renewal-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	metrics.Register()

	repo := schedule.NewPgRepository(pgPool)
	locker := redisclient.NewRedisStartLocker(rdb, cfg.LockTTL)
	svc := schedule.NewService(repo, locker, schedule.NopNotifier{}, logger)

	// Catch up on missed schedules, then fire daily at the configured
	// local time.
	runOnce(rootCtx, svc, logger)

	for {
		wait := untilNextRun(time.Now(), cfg.RenewalAt)
		logger.Info().Dur("sleep", wait).Msg("waiting for next renewal run")

		timer := time.NewTimer(wait)
		select {
		case <-rootCtx.Done():
			timer.Stop()
			logger.Info().Msg("shutdown signal received, stopping renewal worker")
			return
		case <-timer.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *schedule.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	summary, err := svc.RunDailyRenewal(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("renewal run error")
		return
	}
	metrics.ObserveRenewalRun(summary.RenewedCount, summary.TotalSlotsCreated)
	logger.Info().
		Dur("elapsed", time.Since(start)).
		Int("processed", summary.ProcessedCount).
		Int("renewed", summary.RenewedCount).
		Msg("renewal run complete")
}

// untilNextRun computes the wait until the next occurrence of the "HH:MM"
// run time in the practice's civil zone. A malformed time falls back to
// 00:05.
func untilNextRun(now time.Time, hhmm string) time.Duration {
	mins, err := civil.MinutesOf(hhmm)
	if err != nil {
		mins = 5
	}

	local := now.In(civil.Zone)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, civil.Zone).
		Add(time.Duration(mins) * time.Minute)
	if !next.After(local) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(local)
}
