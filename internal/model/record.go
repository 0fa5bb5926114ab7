package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Canonical signal identifiers. These names are shared by the export parser,
// the baseline calculator, the scoring engine, and storage.
const (
	SignalHeartRate      = "heart_rate"
	SignalHRV            = "hrv"
	SignalSleepDuration  = "sleep_duration"
	SignalSleepQuality   = "sleep_quality"
	SignalActivityLevel  = "activity_level"
	SignalBreathingRate  = "breathing_rate"
	SignalBPSystolic     = "bp_systolic"
	SignalBPDiastolic    = "bp_diastolic"
	SignalBloodSugar     = "blood_sugar"
	SignalSpO2           = "spo2"
	SignalTemperature    = "temperature"
	SignalWeight         = "weight"
	SignalSteps          = "steps"
	SignalDistance       = "distance"
	SignalCaloriesActive = "calories_active"
	SignalCaloriesTotal  = "calories_total"
)

// Signals lists every canonical signal in storage column order.
var Signals = []string{
	SignalHeartRate,
	SignalHRV,
	SignalSleepDuration,
	SignalSleepQuality,
	SignalActivityLevel,
	SignalBreathingRate,
	SignalBPSystolic,
	SignalBPDiastolic,
	SignalBloodSugar,
	SignalSpO2,
	SignalTemperature,
	SignalWeight,
	SignalSteps,
	SignalDistance,
	SignalCaloriesActive,
	SignalCaloriesTotal,
}

// DisplayName returns the human-readable name of a signal for messages
// and reports. Unknown signals are returned as-is.
func DisplayName(signal string) string {
	switch signal {
	case SignalHeartRate:
		return "heart rate"
	case SignalHRV:
		return "heart rate variability"
	case SignalSleepDuration:
		return "sleep duration"
	case SignalSleepQuality:
		return "sleep quality"
	case SignalActivityLevel:
		return "activity level"
	case SignalBreathingRate:
		return "breathing rate"
	case SignalBPSystolic:
		return "blood pressure (systolic)"
	case SignalBPDiastolic:
		return "blood pressure (diastolic)"
	case SignalBloodSugar:
		return "blood sugar"
	case SignalSpO2:
		return "blood oxygen"
	case SignalTemperature:
		return "body temperature"
	case SignalWeight:
		return "weight"
	case SignalSteps:
		return "steps"
	case SignalDistance:
		return "distance"
	case SignalCaloriesActive:
		return "active calories"
	case SignalCaloriesTotal:
		return "total calories"
	}
	return signal
}

// Unit returns the measurement unit of a signal, or "" when unitless.
func Unit(signal string) string {
	switch signal {
	case SignalHeartRate:
		return "bpm"
	case SignalHRV:
		return "ms"
	case SignalSleepDuration:
		return "hours"
	case SignalActivityLevel, SignalSteps:
		return "steps"
	case SignalBreathingRate:
		return "breaths/min"
	case SignalBPSystolic, SignalBPDiastolic:
		return "mmHg"
	case SignalBloodSugar:
		return "mg/dL"
	case SignalSpO2:
		return "%"
	case SignalTemperature:
		return "°C"
	case SignalWeight:
		return "kg"
	case SignalDistance:
		return "m"
	case SignalCaloriesActive, SignalCaloriesTotal:
		return "kcal"
	}
	return ""
}

// SignalRecord is one canonical health observation. Every signal is an
// independently optional slot; records are append-only and never mutated
// after write.
type SignalRecord struct {
	ID         string    `json:"id,omitempty"`
	UserID     int64     `json:"user_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Source     string    `json:"source"`

	HeartRate      *float64 `json:"heart_rate,omitempty"`
	HRV            *float64 `json:"hrv,omitempty"`
	SleepDuration  *float64 `json:"sleep_duration,omitempty"`
	SleepQuality   *float64 `json:"sleep_quality,omitempty"`
	ActivityLevel  *float64 `json:"activity_level,omitempty"`
	BreathingRate  *float64 `json:"breathing_rate,omitempty"`
	BPSystolic     *float64 `json:"bp_systolic,omitempty"`
	BPDiastolic    *float64 `json:"bp_diastolic,omitempty"`
	BloodSugar     *float64 `json:"blood_sugar,omitempty"`
	SpO2           *float64 `json:"spo2,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	Weight         *float64 `json:"weight,omitempty"`
	Steps          *int64   `json:"steps,omitempty"`
	Distance       *float64 `json:"distance,omitempty"`
	CaloriesActive *float64 `json:"calories_active,omitempty"`
	CaloriesTotal  *float64 `json:"calories_total,omitempty"`

	// Symptoms is a comma-separated tag list; "" means none reported.
	Symptoms string `json:"symptoms,omitempty"`
}

// Validate checks the record invariants: a timestamp and at least one
// populated slot.
func (r *SignalRecord) Validate() error {
	if r.RecordedAt.IsZero() {
		return eris.New("signal record: timestamp not set")
	}
	if r.UserID == 0 {
		return eris.New("signal record: user not set")
	}
	for _, signal := range Signals {
		if _, ok := r.Value(signal); ok {
			return nil
		}
	}
	if r.Symptoms != "" {
		return nil
	}
	return eris.New("signal record: no fields set")
}

// Value returns the numeric value of the named signal and whether it is set.
func (r *SignalRecord) Value(signal string) (float64, bool) {
	switch signal {
	case SignalHeartRate:
		return deref(r.HeartRate)
	case SignalHRV:
		return deref(r.HRV)
	case SignalSleepDuration:
		return deref(r.SleepDuration)
	case SignalSleepQuality:
		return deref(r.SleepQuality)
	case SignalActivityLevel:
		return deref(r.ActivityLevel)
	case SignalBreathingRate:
		return deref(r.BreathingRate)
	case SignalBPSystolic:
		return deref(r.BPSystolic)
	case SignalBPDiastolic:
		return deref(r.BPDiastolic)
	case SignalBloodSugar:
		return deref(r.BloodSugar)
	case SignalSpO2:
		return deref(r.SpO2)
	case SignalTemperature:
		return deref(r.Temperature)
	case SignalWeight:
		return deref(r.Weight)
	case SignalSteps:
		if r.Steps == nil {
			return 0, false
		}
		return float64(*r.Steps), true
	case SignalDistance:
		return deref(r.Distance)
	case SignalCaloriesActive:
		return deref(r.CaloriesActive)
	case SignalCaloriesTotal:
		return deref(r.CaloriesTotal)
	}
	return 0, false
}

// SetValue assigns the named signal's slot. Unknown signals are ignored.
func (r *SignalRecord) SetValue(signal string, v float64) {
	switch signal {
	case SignalHeartRate:
		r.HeartRate = Float(v)
	case SignalHRV:
		r.HRV = Float(v)
	case SignalSleepDuration:
		r.SleepDuration = Float(v)
	case SignalSleepQuality:
		r.SleepQuality = Float(v)
	case SignalActivityLevel:
		r.ActivityLevel = Float(v)
	case SignalBreathingRate:
		r.BreathingRate = Float(v)
	case SignalBPSystolic:
		r.BPSystolic = Float(v)
	case SignalBPDiastolic:
		r.BPDiastolic = Float(v)
	case SignalBloodSugar:
		r.BloodSugar = Float(v)
	case SignalSpO2:
		r.SpO2 = Float(v)
	case SignalTemperature:
		r.Temperature = Float(v)
	case SignalWeight:
		r.Weight = Float(v)
	case SignalSteps:
		r.Steps = Int(int64(v))
	case SignalDistance:
		r.Distance = Float(v)
	case SignalCaloriesActive:
		r.CaloriesActive = Float(v)
	case SignalCaloriesTotal:
		r.CaloriesTotal = Float(v)
	}
}

// Clear unsets the named signal's slot.
func (r *SignalRecord) Clear(signal string) {
	switch signal {
	case SignalHeartRate:
		r.HeartRate = nil
	case SignalHRV:
		r.HRV = nil
	case SignalSleepDuration:
		r.SleepDuration = nil
	case SignalSleepQuality:
		r.SleepQuality = nil
	case SignalActivityLevel:
		r.ActivityLevel = nil
	case SignalBreathingRate:
		r.BreathingRate = nil
	case SignalBPSystolic:
		r.BPSystolic = nil
	case SignalBPDiastolic:
		r.BPDiastolic = nil
	case SignalBloodSugar:
		r.BloodSugar = nil
	case SignalSpO2:
		r.SpO2 = nil
	case SignalTemperature:
		r.Temperature = nil
	case SignalWeight:
		r.Weight = nil
	case SignalSteps:
		r.Steps = nil
	case SignalDistance:
		r.Distance = nil
	case SignalCaloriesActive:
		r.CaloriesActive = nil
	case SignalCaloriesTotal:
		r.CaloriesTotal = nil
	}
}

// Float returns a pointer to v, for populating optional slots.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for populating optional slots.
func Int(v int64) *int64 { return &v }

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}
