// Package baseline computes per-user per-signal reference statistics from
// trailing windows of canonical records, and the z-scores the scoring
// engine builds on. All deviations are population statistics, not sample
// statistics.
package baseline

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// DefaultWindowDays is the trailing window for baseline statistics.
const DefaultWindowDays = 30

// BaselineSignals are the signals that carry a baseline row. Matches the
// engine's weight table; other canonical signals are stored but never
// baselined.
var BaselineSignals = []string{
	model.SignalHeartRate,
	model.SignalHRV,
	model.SignalSleepDuration,
	model.SignalSleepQuality,
	model.SignalActivityLevel,
	model.SignalBreathingRate,
	model.SignalBPSystolic,
	model.SignalBPDiastolic,
	model.SignalBloodSugar,
}

// SampleStore is the slice of the store the calculator needs.
type SampleStore interface {
	SignalValues(ctx context.Context, userID int64, signal string, since time.Time) ([]float64, error)
	UpsertBaselines(ctx context.Context, baselines []model.Baseline) error
	DeleteBaseline(ctx context.Context, userID int64, signal string) error
}

// Calculator reads samples and maintains baseline rows.
type Calculator struct {
	store SampleStore
}

// NewCalculator builds a Calculator on the given store.
func NewCalculator(store SampleStore) *Calculator {
	return &Calculator{store: store}
}

// StdDev returns the population standard deviation over the trailing
// window, with false when no samples exist. The caller applies its own
// fallback policy; this component never guesses.
func (c *Calculator) StdDev(ctx context.Context, userID int64, signal string, windowDays int) (float64, bool, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	since := time.Now().UTC().Add(-time.Duration(windowDays) * 24 * time.Hour)

	samples, err := c.store.SignalValues(ctx, userID, signal, since)
	if err != nil {
		return 0, false, eris.Wrapf(err, "baseline: samples for %s", signal)
	}
	if len(samples) == 0 {
		return 0, false, nil
	}
	return PopStdDev(samples), true, nil
}

// Refresh recomputes (mean, std, count) for every baselined signal with at
// least one sample in the window and upserts the rows; signals with no
// samples get their stale row deleted. Returns the upserted baselines.
func (c *Calculator) Refresh(ctx context.Context, userID int64, windowDays int) ([]model.Baseline, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	since := time.Now().UTC().Add(-time.Duration(windowDays) * 24 * time.Hour)

	var fresh []model.Baseline
	removed := 0
	for _, signal := range BaselineSignals {
		samples, err := c.store.SignalValues(ctx, userID, signal, since)
		if err != nil {
			return nil, eris.Wrapf(err, "baseline: samples for %s", signal)
		}
		if len(samples) == 0 {
			if err := c.store.DeleteBaseline(ctx, userID, signal); err != nil {
				return nil, err
			}
			removed++
			continue
		}
		fresh = append(fresh, model.Baseline{
			UserID:      userID,
			Signal:      signal,
			Mean:        Mean(samples),
			StdDev:      PopStdDev(samples),
			SampleCount: len(samples),
		})
	}

	if len(fresh) > 0 {
		if err := c.store.UpsertBaselines(ctx, fresh); err != nil {
			return nil, err
		}
	}

	zap.L().Info("baselines refreshed",
		zap.Int64("user_id", userID),
		zap.Int("window_days", windowDays),
		zap.Int("upserted", len(fresh)),
		zap.Int("removed", removed))
	return fresh, nil
}

// ZScore measures how far current sits from the baseline mean. A zero or
// missing standard deviation substitutes 0.1*mean to avoid division by
// zero; a zero mean yields zero because there is no meaningful reference.
func ZScore(current, mean, stdDev float64, hasStd bool) float64 {
	if mean == 0 {
		return 0
	}
	eff := stdDev
	if !hasStd || eff == 0 {
		eff = 0.1 * mean
	}
	return math.Abs(current-mean) / eff
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}

// PopStdDev returns the population standard deviation, 0 for fewer than
// two samples.
func PopStdDev(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	mean := Mean(samples)
	var sq float64
	for _, v := range samples {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(samples)))
}
