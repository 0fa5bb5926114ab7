// Package carescore implements the multi-component risk score. Four
// components sum into a 0-100 aggregate: severity (weighted baseline
// deviations, 0-40), persistence (anomalous score rows over 7 days, 0-25),
// cross-signal agreement (0-20), and a manual risk modifier from blood
// pressure, glucose, and reported symptoms (0-10). Every computed score is
// persisted; aggregates of 31 or more fan out alerts before Compute
// returns.
package carescore

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/baseline"
	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// AlertThreshold is the aggregate at and above which the dispatcher runs.
const AlertThreshold = 31

// Deviation severity cut lines, in z-score units.
const (
	mildZ     = 1.5
	moderateZ = 2.5
	severeZ   = 3.5
)

// stdWindowDays is the trailing window for live deviation statistics.
const stdWindowDays = 30

// signalWeights scale each signal's contribution to severity. The table
// carries sleep_quality for manually entered records even though the
// severity loop below only walks the device-reported vitals.
var signalWeights = map[string]float64{
	model.SignalHeartRate:     1.2,
	model.SignalHRV:           1.5,
	model.SignalSleepDuration: 1.0,
	model.SignalSleepQuality:  0.8,
	model.SignalActivityLevel: 0.7,
	model.SignalBreathingRate: 1.1,
	model.SignalBPSystolic:    1.3,
	model.SignalBPDiastolic:   1.2,
	model.SignalBloodSugar:    1.4,
}

// severityOrder fixes the deviation iteration order so explanations and
// tie-breaks are stable across runs.
var severityOrder = []string{
	model.SignalHeartRate,
	model.SignalHRV,
	model.SignalSleepDuration,
	model.SignalActivityLevel,
	model.SignalBreathingRate,
	model.SignalBPSystolic,
	model.SignalBPDiastolic,
	model.SignalBloodSugar,
}

var highRiskSymptoms = map[string]bool{
	"chest_pain":          true,
	"shortness_of_breath": true,
	"severe_headache":     true,
	"dizziness":           true,
}

// ScoreStore is the slice of the store the engine needs.
type ScoreStore interface {
	Baselines(ctx context.Context, userID int64) (map[string]model.Baseline, error)
	ScoresSince(ctx context.Context, userID int64, since time.Time) ([]model.Score, error)
	RecordCountSince(ctx context.Context, userID int64, since time.Time) (int, error)
	LatestSignalValues(ctx context.Context, userID int64, since time.Time) (map[string]float64, error)
	InsertScore(ctx context.Context, score *model.Score) error
}

// StdDevSource supplies live trailing-window deviation statistics.
// Implemented by baseline.Calculator.
type StdDevSource interface {
	StdDev(ctx context.Context, userID int64, signal string, windowDays int) (float64, bool, error)
}

// AlertDispatcher fans a threshold-crossing score out to the care circle.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, patientID int64, score *model.Score) ([]int64, error)
}

// Engine computes and persists CareScores.
type Engine struct {
	store   ScoreStore
	stddevs StdDevSource
	alerts  AlertDispatcher
	nowFunc func() time.Time
}

// NewEngine builds an Engine. alerts may be nil to disable fan-out.
func NewEngine(store ScoreStore, stddevs StdDevSource, alerts AlertDispatcher) *Engine {
	return &Engine{
		store:   store,
		stddevs: stddevs,
		alerts:  alerts,
		nowFunc: time.Now,
	}
}

// Compute scores the given current values and symptoms for a user, persists
// the result, and runs the alert fan-out when the aggregate reaches the
// threshold. A dispatch failure is logged, not returned; the score is
// already persisted by then.
func (e *Engine) Compute(ctx context.Context, userID int64, current map[string]float64, symptoms []string) (*model.Score, error) {
	baselines, err := e.store.Baselines(ctx, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "carescore: baselines for user %d", userID)
	}
	if len(baselines) == 0 {
		return nil, &UnknownUserError{UserID: userID}
	}

	now := e.nowFunc().UTC()

	severity, deviations, err := e.severity(ctx, userID, current, baselines)
	if err != nil {
		return nil, err
	}

	persistence, err := e.persistence(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	crossSignal := crossSignalScore(len(deviations))
	manual := manualModifier(current, symptoms)

	aggregate := severity + persistence + crossSignal + manual
	aggregate = math.Min(100, math.Max(0, aggregate))
	status := statusFor(aggregate)

	confidence, err := e.confidence(ctx, userID, now, len(deviations))
	if err != nil {
		return nil, err
	}
	stability, err := e.stability(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	score := &model.Score{
		UserID:         userID,
		ComputedAt:     now,
		Severity:       severity,
		Persistence:    persistence,
		CrossSignal:    crossSignal,
		ManualModifier: manual,
		Aggregate:      round1(aggregate),
		Drift:          driftScore(deviations),
		Confidence:     confidence,
		Stability:      stability,
		Status:         status,
		Deviations:     deviations,
		Explanation:    explain(deviations, status, persistence),
	}

	if err := e.store.InsertScore(ctx, score); err != nil {
		return nil, eris.Wrapf(err, "carescore: persist score for user %d", userID)
	}

	if score.Aggregate >= AlertThreshold && e.alerts != nil {
		notified, err := e.alerts.Dispatch(ctx, userID, score)
		if err != nil {
			zap.L().Warn("alert dispatch failed",
				zap.Int64("user_id", userID),
				zap.Float64("aggregate", score.Aggregate),
				zap.Error(err))
		} else {
			zap.L().Info("alerts dispatched",
				zap.Int64("user_id", userID),
				zap.Float64("aggregate", score.Aggregate),
				zap.Int("notified", len(notified)))
		}
	}

	return score, nil
}

// ComputeFromLatest assembles current values from the freshest canonical
// record per signal within 48 hours and scores them. An empty window still
// scores; history-only components (persistence, stability) carry it.
func (e *Engine) ComputeFromLatest(ctx context.Context, userID int64, symptoms ...string) (*model.Score, error) {
	since := e.nowFunc().UTC().Add(-48 * time.Hour)
	current, err := e.store.LatestSignalValues(ctx, userID, since)
	if err != nil {
		return nil, eris.Wrapf(err, "carescore: latest values for user %d", userID)
	}
	return e.Compute(ctx, userID, current, symptoms)
}

// severity walks the device vitals in fixed order and accumulates weighted
// z-scores for signals deviating at least mildly. A signal participates
// only when both its baseline mean and its current value are non-zero.
func (e *Engine) severity(ctx context.Context, userID int64, current map[string]float64, baselines map[string]model.Baseline) (float64, []model.Deviation, error) {
	var deviations []model.Deviation
	total := 0.0

	for _, signal := range severityOrder {
		mean := baselines[signal].Mean
		value, present := current[signal]
		if mean == 0 || !present || value == 0 {
			continue
		}

		std, hasStd, err := e.stddevs.StdDev(ctx, userID, signal, stdWindowDays)
		if err != nil {
			return 0, nil, eris.Wrapf(err, "carescore: deviation stats for %s", signal)
		}

		z := baseline.ZScore(value, mean, std, hasStd)
		if z < mildZ {
			continue
		}

		level := model.LevelMild
		if z >= moderateZ {
			level = model.LevelModerate
		}
		if z >= severeZ {
			level = model.LevelSevere
		}

		weighted := z * signalWeights[signal]
		deviations = append(deviations, model.Deviation{
			Signal:   signal,
			Current:  value,
			Baseline: mean,
			ZScore:   round2(z),
			Level:    level,
			Weighted: round2(weighted),
		})
		total += weighted
	}

	// Normalized against the full tracked-signal count, not the deviating
	// count, so one wild signal cannot saturate the component.
	severity := math.Min(40, total/9*40)
	return round1(severity), deviations, nil
}

// persistence counts anomalous score rows over the trailing week.
func (e *Engine) persistence(ctx context.Context, userID int64, now time.Time) (float64, error) {
	scores, err := e.store.ScoresSince(ctx, userID, now.Add(-7*24*time.Hour))
	if err != nil {
		return 0, eris.Wrapf(err, "carescore: score history for user %d", userID)
	}
	anomalies := 0
	for _, s := range scores {
		if s.Aggregate >= AlertThreshold {
			anomalies++
		}
	}
	return round1(math.Min(25, float64(anomalies)/7*25)), nil
}

// confidence grows with data availability: trailing-month record count and
// the number of currently deviating signals.
func (e *Engine) confidence(ctx context.Context, userID int64, now time.Time, numDeviations int) (float64, error) {
	count, err := e.store.RecordCountSince(ctx, userID, now.Add(-30*24*time.Hour))
	if err != nil {
		return 0, eris.Wrapf(err, "carescore: record count for user %d", userID)
	}
	dataConfidence := math.Min(50, float64(count)*1.5)
	signalConfidence := math.Min(50, float64(numDeviations)*8)
	return round1(dataConfidence + signalConfidence), nil
}

// stability rewards a flat aggregate trend over two weeks. Fewer than three
// points is neutral 50.
func (e *Engine) stability(ctx context.Context, userID int64, now time.Time) (float64, error) {
	scores, err := e.store.ScoresSince(ctx, userID, now.Add(-14*24*time.Hour))
	if err != nil {
		return 0, eris.Wrapf(err, "carescore: score history for user %d", userID)
	}
	if len(scores) < 3 {
		return 50, nil
	}
	aggregates := make([]float64, len(scores))
	for i, s := range scores {
		aggregates[i] = s.Aggregate
	}
	return round1(math.Max(0, 100-2*baseline.PopStdDev(aggregates))), nil
}

// statusFor buckets an aggregate into the four patient-facing statuses.
func statusFor(aggregate float64) model.ScoreStatus {
	switch {
	case aggregate <= 30:
		return model.StatusStable
	case aggregate <= 50:
		return model.StatusMild
	case aggregate <= 70:
		return model.StatusModerate
	default:
		return model.StatusHigh
	}
}

// driftScore averages the rounded per-deviation z values.
func driftScore(deviations []model.Deviation) float64 {
	if len(deviations) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range deviations {
		sum += d.ZScore
	}
	return math.Min(100, sum/float64(len(deviations))*20)
}

// crossSignalScore steps with the count of signals agreeing on a drift.
func crossSignalScore(n int) float64 {
	switch {
	case n == 0:
		return 0
	case n == 1:
		return 3
	case n <= 3:
		return 5 + float64(n-1)*3
	case n <= 5:
		return 10 + float64(n-3)*2.5
	default:
		return math.Min(20, 15+float64(n-5))
	}
}

// manualModifier adds rule-based risk from manually meaningful inputs.
// Blood pressure rules apply only when a systolic reading is present.
func manualModifier(current map[string]float64, symptoms []string) float64 {
	m := 0.0

	sys := current[model.SignalBPSystolic]
	dia := current[model.SignalBPDiastolic]
	if sys != 0 {
		switch {
		case sys >= 180 || dia >= 120:
			m += 4
		case sys >= 140 || dia >= 90:
			m += 2
		case sys >= 130:
			m += 1
		}
	}

	if sugar := current[model.SignalBloodSugar]; sugar != 0 {
		switch {
		case sugar >= 200:
			m += 3
		case sugar >= 140:
			m += 1.5
		case sugar <= 70:
			m += 2
		}
	}

	for _, s := range symptoms {
		if highRiskSymptoms[s] {
			m++
		}
	}

	return math.Min(10, m)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
