package carescore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

func TestParseRequest_Full(t *testing.T) {
	req, err := ParseRequest([]byte(`{
		"current": {
			"heart_rate": 72,
			"hrv": 45,
			"sleep_duration": 7.5,
			"sleep_quality": 80,
			"activity_level": 6200,
			"breathing_rate": 15,
			"bp_systolic": 122,
			"bp_diastolic": 78,
			"blood_sugar": 95
		},
		"symptoms": ["dizziness", "fatigue"]
	}`))
	require.NoError(t, err)

	require.Len(t, req.Current, 9)
	require.Equal(t, 72.0, req.Current[model.SignalHeartRate])
	require.Equal(t, 7.5, req.Current[model.SignalSleepDuration])
	require.Equal(t, []string{"dizziness", "fatigue"}, req.Symptoms)
}

func TestParseRequest_MinimalCurrent(t *testing.T) {
	req, err := ParseRequest([]byte(`{"current": {"heart_rate": 70}}`))
	require.NoError(t, err)
	require.Equal(t, map[string]float64{model.SignalHeartRate: 70}, req.Current)
	require.Nil(t, req.Symptoms)
}

func TestParseRequest_Invalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing current", `{"symptoms": ["dizziness"]}`},
		{"empty current", `{"current": {}}`},
		{"unknown signal", `{"current": {"pulse_ox": 97}}`},
		{"non-numeric value", `{"current": {"heart_rate": "high"}}`},
		{"unknown top-level field", `{"current": {"heart_rate": 70}, "mode": "fast"}`},
		{"symptoms not an array", `{"current": {"heart_rate": 70}, "symptoms": "dizziness"}`},
		{"symptom not a string", `{"current": {"heart_rate": 70}, "symptoms": [3]}`},
		{"current not an object", `{"current": 70}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tc.body))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestParseRequest_MalformedJSON(t *testing.T) {
	_, err := ParseRequest([]byte(`{"current":`))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "body is not valid JSON", verr.Detail)
	require.Contains(t, err.Error(), "carescore: invalid score input:")
}
