package normalize

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// Range is an inclusive physiological plausibility window.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Bounds maps canonical signal names to their plausibility window. Signals
// without an entry pass through unchecked.
type Bounds map[string]Range

// DefaultBounds returns the built-in windows. Counters (steps, distance,
// calories) are intentionally unbounded; exporters disagree wildly on what
// a plausible day looks like.
func DefaultBounds() Bounds {
	return Bounds{
		model.SignalHeartRate:     {Min: 20, Max: 260},
		model.SignalHRV:           {Min: 0, Max: 500},
		model.SignalSleepDuration: {Min: 0, Max: 24},
		model.SignalBreathingRate: {Min: 4, Max: 60},
		model.SignalBPSystolic:    {Min: 50, Max: 260},
		model.SignalBPDiastolic:   {Min: 30, Max: 200},
		model.SignalBloodSugar:    {Min: 20, Max: 600},
		model.SignalSpO2:          {Min: 50, Max: 100},
		model.SignalTemperature:   {Min: 30, Max: 45},
		model.SignalWeight:        {Min: 1, Max: 500},
	}
}

// LoadBounds overlays the default windows with entries from a YAML file.
// The file carries a top-level "bounds" key mapping signal names to
// min/max pairs. Unknown signal names are rejected so a typo cannot
// silently disable a check.
func LoadBounds(path string) (Bounds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: read bounds file %s", path)
	}

	var wrapper struct {
		Bounds map[string]Range `yaml:"bounds"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "normalize: parse bounds file %s", path)
	}

	known := map[string]bool{}
	for _, sig := range model.Signals {
		known[sig] = true
	}

	bounds := DefaultBounds()
	var bad []string
	for sig, r := range wrapper.Bounds {
		if !known[sig] {
			bad = append(bad, sig)
			continue
		}
		if r.Min > r.Max {
			return nil, eris.Errorf("normalize: bounds for %s: min %v exceeds max %v", sig, r.Min, r.Max)
		}
		bounds[sig] = r
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, eris.Errorf("normalize: unknown signals in bounds file: %s", strings.Join(bad, ", "))
	}
	return bounds, nil
}

// Check clears every out-of-window field on the record and returns how many
// were cleared.
func (b Bounds) Check(rec *model.SignalRecord) int {
	cleared := 0
	for _, sig := range model.Signals {
		v, ok := rec.Value(sig)
		if !ok {
			continue
		}
		r, ok := b[sig]
		if !ok {
			continue
		}
		if v < r.Min || v > r.Max {
			rec.Clear(sig)
			cleared++
		}
	}
	return cleared
}
