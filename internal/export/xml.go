package export

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// xmlRecord is one <Record> element of an Apple-style export dump.
type xmlRecord struct {
	Type      string `xml:"type,attr"`
	Value     string `xml:"value,attr"`
	Unit      string `xml:"unit,attr"`
	StartDate string `xml:"startDate,attr"`
	EndDate   string `xml:"endDate,attr"`
}

// xmlTypeSignals maps HK-style type identifiers (prefix stripped) to
// canonical signals. StepCount and SleepAnalysis take special paths.
var xmlTypeSignals = map[string]string{
	"HeartRate":                model.SignalHeartRate,
	"RestingHeartRate":         model.SignalHeartRate,
	"HeartRateVariabilitySDNN": model.SignalHRV,
	"RespiratoryRate":          model.SignalBreathingRate,
	"OxygenSaturation":         model.SignalSpO2,
	"BodyTemperature":          model.SignalTemperature,
	"BodyMass":                 model.SignalWeight,
	"BloodPressureSystolic":    model.SignalBPSystolic,
	"BloodPressureDiastolic":   model.SignalBPDiastolic,
	"BloodGlucose":             model.SignalBloodSugar,
	"DistanceWalkingRunning":   model.SignalDistance,
	"ActiveEnergyBurned":       model.SignalCaloriesActive,
}

// parseXML streams <Record> elements from an Apple-style export. Unknown
// types are skipped silently; recognized types with unusable values are
// counted on res.Skipped.
func parseXML(ctx context.Context, payload []byte, userID int64, res *Result) error {
	decoder := xml.NewDecoder(bytes.NewReader(payload))
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "export: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	seen := map[string]bool{}
	for {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "export: xml stream")
		}

		tok, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "export: read xml token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Record" {
			continue
		}

		var r xmlRecord
		if err := decoder.DecodeElement(&r, &se); err != nil {
			return eris.Wrap(err, "export: decode record element")
		}

		hkType := trimHKPrefix(r.Type)
		if hkType == "SleepAnalysis" {
			if !seen[hkType] {
				seen[hkType] = true
				res.TablesFound = append(res.TablesFound, hkType)
			}
			appendSleepElement(&r, userID, res)
			continue
		}

		signal, known := xmlTypeSignals[hkType]
		isSteps := hkType == "StepCount"
		if !known && !isSteps {
			continue
		}
		if !seen[hkType] {
			seen[hkType] = true
			res.TablesFound = append(res.TablesFound, hkType)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(r.Value), 64)
		if err != nil {
			res.Skipped++
			continue
		}

		rec := model.SignalRecord{
			UserID:     userID,
			RecordedAt: elementTimestamp(r.StartDate, res),
			Source:     SourceAppleHealth,
		}
		switch {
		case isSteps:
			rec.ActivityLevel = model.Float(v)
			rec.Steps = model.Int(int64(v))
		case signal == model.SignalSpO2:
			if v <= 1 {
				v *= 100
			}
			rec.SpO2 = model.Float(v)
		default:
			rec.SetValue(signal, v)
		}
		res.Records = append(res.Records, rec)
	}
}

// appendSleepElement turns a SleepAnalysis interval into a duration record.
// The categorical value attribute is ignored; the interval is the datum.
func appendSleepElement(r *xmlRecord, userID int64, res *Result) {
	start, okS := parseAppleTime(r.StartDate)
	end, okE := parseAppleTime(r.EndDate)
	if !okS || !okE {
		res.Skipped++
		return
	}
	h := end.Sub(start).Hours()
	if h <= 0 || h >= 24 {
		res.Skipped++
		return
	}
	res.Records = append(res.Records, model.SignalRecord{
		UserID:        userID,
		RecordedAt:    start,
		Source:        SourceAppleHealth,
		SleepDuration: model.Float(h),
	})
}

func trimHKPrefix(t string) string {
	t = strings.TrimPrefix(t, "HKQuantityTypeIdentifier")
	t = strings.TrimPrefix(t, "HKCategoryTypeIdentifier")
	return t
}

func elementTimestamp(s string, res *Result) time.Time {
	if ts, ok := parseAppleTime(s); ok {
		return ts
	}
	res.TimestampGaps++
	return time.Now().UTC()
}

// parseAppleTime accepts the zone-suffixed format Apple dumps use, plus the
// shared fallbacks.
func parseAppleTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02 15:04:05 -0700", s); err == nil {
		return t.UTC(), true
	}
	return parseTimeString(s)
}
