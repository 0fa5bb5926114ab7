package export

import (
	"strings"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// extractKind selects the row-extraction strategy for a category.
type extractKind int

const (
	kindPlain extractKind = iota
	kindSteps
	kindSleep
	kindBloodPressure
	kindSpO2
)

// categorySpec maps a table-name fragment to a canonical signal. Exporter
// schemas vary by producer version, so each category carries a prioritized
// list of plausible value column names.
type categorySpec struct {
	// Category is the stable name reported in CategoryError.
	Category string
	// substring matches against the lowercased table name.
	substring string
	// exclude disqualifies a table even when substring matches.
	exclude string
	// valueAliases is searched in order; the first existing column wins.
	valueAliases []string
	signal       string
	kind         extractKind
}

// categories is ordered: the first matching spec claims the table, so the
// more specific heart-rate variants come before the plain one.
var categories = []categorySpec{
	{
		Category:     "steps",
		substring:    "steps_record",
		valueAliases: []string{"count", "steps", "value"},
		signal:       model.SignalActivityLevel,
		kind:         kindSteps,
	},
	{
		Category:     "heart_rate_variability",
		substring:    "heart_rate_variability",
		valueAliases: []string{"heart_rate_variability_millis", "rmssd", "value"},
		signal:       model.SignalHRV,
	},
	{
		Category:     "resting_heart_rate",
		substring:    "resting_heart_rate",
		valueAliases: []string{"beats_per_minute", "bpm", "value"},
		signal:       model.SignalHeartRate,
	},
	{
		Category:     "heart_rate",
		substring:    "heart_rate_record",
		exclude:      "variability",
		valueAliases: []string{"beats_per_minute", "bpm", "value", "heart_rate"},
		signal:       model.SignalHeartRate,
	},
	{
		Category:  "sleep_session",
		substring: "sleep_session",
		signal:    model.SignalSleepDuration,
		kind:      kindSleep,
	},
	{
		Category:  "blood_pressure",
		substring: "blood_pressure",
		signal:    model.SignalBPSystolic,
		kind:      kindBloodPressure,
	},
	{
		Category:     "blood_glucose",
		substring:    "blood_glucose",
		valueAliases: []string{"level", "value", "glucose"},
		signal:       model.SignalBloodSugar,
	},
	{
		Category:     "respiratory_rate",
		substring:    "respiratory_rate",
		valueAliases: []string{"rate", "value", "breaths_per_minute"},
		signal:       model.SignalBreathingRate,
	},
	{
		Category:     "weight",
		substring:    "weight_record",
		valueAliases: []string{"weight", "value", "mass"},
		signal:       model.SignalWeight,
	},
	{
		Category:     "distance",
		substring:    "distance_record",
		valueAliases: []string{"distance", "value"},
		signal:       model.SignalDistance,
	},
	{
		Category:     "active_calories",
		substring:    "active_calories_burned",
		valueAliases: []string{"energy", "calories", "value"},
		signal:       model.SignalCaloriesActive,
	},
	{
		Category:     "total_calories",
		substring:    "total_calories_burned",
		valueAliases: []string{"energy", "calories", "value"},
		signal:       model.SignalCaloriesTotal,
	},
	{
		Category:     "oxygen_saturation",
		substring:    "oxygen_saturation",
		valueAliases: []string{"percentage", "value", "spo2"},
		signal:       model.SignalSpO2,
		kind:         kindSpO2,
	},
	{
		Category:     "body_temperature",
		substring:    "body_temperature",
		valueAliases: []string{"temperature", "value"},
		signal:       model.SignalTemperature,
	},
}

// Shared column-alias lists. Timestamps come in many shapes depending on the
// exporter version; the first existing column wins.
var (
	timestampAliases  = []string{"time", "epoch_millis", "timestamp", "start_time", "created_at", "date"}
	sleepStartAliases = []string{"start_time", "start"}
	sleepEndAliases   = []string{"end_time", "end"}
	bpSystolicAliases = []string{"systolic", "systolic_value"}
	bpDiastolicAlias  = []string{"diastolic", "diastolic_value"}
)

// tableCategory returns the spec claiming the named table, or nil.
func tableCategory(table string) *categorySpec {
	name := strings.ToLower(table)
	for i := range categories {
		c := &categories[i]
		if !strings.Contains(name, c.substring) {
			continue
		}
		if c.exclude != "" && strings.Contains(name, c.exclude) {
			continue
		}
		return c
	}
	return nil
}
