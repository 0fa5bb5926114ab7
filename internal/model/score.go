package model

import "time"

// ScoreStatus is the risk band derived from the aggregate CareScore.
type ScoreStatus string

const (
	StatusStable   ScoreStatus = "stable"
	StatusMild     ScoreStatus = "mild"
	StatusModerate ScoreStatus = "moderate"
	StatusHigh     ScoreStatus = "high"
)

// Deviation severity levels, assigned at z >= 1.5 / 2.5 / 3.5.
type DeviationLevel string

const (
	LevelMild     DeviationLevel = "mild"
	LevelModerate DeviationLevel = "moderate"
	LevelSevere   DeviationLevel = "severe"
)

// Deviation describes one signal currently departing from its baseline.
type Deviation struct {
	Signal   string         `json:"signal"`
	Current  float64        `json:"current"`
	Baseline float64        `json:"baseline"`
	ZScore   float64        `json:"z_score"`
	Level    DeviationLevel `json:"level"`
	Weighted float64        `json:"weighted_contribution"`
}

// Score is one persisted CareScore snapshot. Append-only.
type Score struct {
	ID             string      `json:"id"`
	UserID         int64       `json:"user_id"`
	ComputedAt     time.Time   `json:"computed_at"`
	Severity       float64     `json:"severity"`
	Persistence    float64     `json:"persistence"`
	CrossSignal    float64     `json:"cross_signal"`
	ManualModifier float64     `json:"manual_modifier"`
	Aggregate      float64     `json:"aggregate"`
	Drift          float64     `json:"drift"`
	Confidence     float64     `json:"confidence"`
	Stability      float64     `json:"stability"`
	Status         ScoreStatus `json:"status"`
	Deviations     []Deviation `json:"deviations"`
	Explanation    string      `json:"explanation"`
}

// Baseline is the per-user per-signal reference point for deviation,
// recomputed from a trailing window of canonical records. A missing
// baseline excludes its signal from severity scoring entirely.
type Baseline struct {
	UserID      int64     `json:"user_id"`
	Signal      string    `json:"signal"`
	Mean        float64   `json:"mean"`
	StdDev      float64   `json:"std_dev"`
	SampleCount int       `json:"sample_count"`
	ComputedAt  time.Time `json:"computed_at"`
}
