// Package reconcile periodically scans for pairs whose rows break the
// relationship rules and re-runs the matching repair cascade on each.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/matchcore/internal/domain/rules"
	"github.com/ivankudzin/matchcore/internal/services/matches"
)

type Scanner interface {
	SuspectPairs(ctx context.Context, limit int) ([]rules.PairKey, error)
}

type Repairer interface {
	Repair(ctx context.Context, key rules.PairKey) (matches.RepairResult, error)
}

type Config struct {
	Interval  time.Duration
	BatchSize int
}

type Job struct {
	scanner  Scanner
	repairer Repairer
	cfg      Config
	logger   *zap.Logger
}

type Report struct {
	Scanned  int
	Repaired int
	Failed   int
}

func New(scanner Scanner, repairer Repairer, cfg Config, logger *zap.Logger) *Job {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		scanner:  scanner,
		repairer: repairer,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunOnce repairs one batch of suspect pairs. A failing pair is logged and
// left for the next pass; only a failed scan aborts the run.
func (j *Job) RunOnce(ctx context.Context) (Report, error) {
	keys, err := j.scanner.SuspectPairs(ctx, j.cfg.BatchSize)
	if err != nil {
		return Report{}, fmt.Errorf("scan suspect pairs: %w", err)
	}

	report := Report{Scanned: len(keys)}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := j.repairer.Repair(ctx, key)
		if err != nil {
			report.Failed++
			j.logger.Warn("repair pair failed",
				zap.Int64("user_low_id", key.Low),
				zap.Int64("user_high_id", key.High),
				zap.Error(err),
			)
			continue
		}
		if len(res.Violations) == 0 {
			continue
		}

		report.Repaired++
		fields := []zap.Field{
			zap.Int64("user_low_id", key.Low),
			zap.Int64("user_high_id", key.High),
			zap.Strings("violations", res.Violations),
			zap.Int64("matches_removed", res.Removed.Matches),
			zap.Int64("messages_removed", res.Removed.Messages),
			zap.Int64("swipes_removed", res.Removed.Swipes),
		}
		if res.Formed != nil {
			fields = append(fields, zap.Int64("match_formed_id", res.Formed.ID))
		}
		j.logger.Info("pair repaired", fields...)
	}

	if report.Scanned > 0 {
		j.logger.Info("reconcile pass completed",
			zap.Int("scanned", report.Scanned),
			zap.Int("repaired", report.Repaired),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// Run executes a pass immediately and then every Interval until ctx ends.
func (j *Job) Run(ctx context.Context) error {
	if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
		j.logger.Warn("reconcile pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
				j.logger.Warn("reconcile pass failed", zap.Error(err))
			}
		}
	}
}
