package carescore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

func TestExplain_NoDeviations(t *testing.T) {
	got := explain(nil, model.StatusStable, 0)
	require.Equal(t, "All health signals are within your normal range. Your body is tracking as expected.", got)
}

func TestExplain_StatusLeads(t *testing.T) {
	dev := []model.Deviation{{Signal: model.SignalHeartRate, Current: 70, Baseline: 60, ZScore: 2}}

	cases := []struct {
		status model.ScoreStatus
		lead   string
	}{
		{model.StatusHigh, "Your health signals show notable changes that warrant attention."},
		{model.StatusModerate, "Some health signals are deviating from your usual patterns."},
		{model.StatusMild, "Minor variations detected in your health data."},
		{model.StatusStable, "Minor variations detected in your health data."},
	}
	for _, tc := range cases {
		got := explain(dev, tc.status, 0)
		require.True(t, strings.HasPrefix(got, tc.lead), "status %s: %q", tc.status, got)
	}
}

func TestExplain_TopThreeByZ(t *testing.T) {
	deviations := []model.Deviation{
		{Signal: model.SignalHeartRate, Current: 70, Baseline: 60, ZScore: 2},
		{Signal: model.SignalHRV, Current: 20, Baseline: 50, ZScore: 4},
		{Signal: model.SignalBreathingRate, Current: 22, Baseline: 16, ZScore: 3},
		{Signal: model.SignalBloodSugar, Current: 150, Baseline: 100, ZScore: 2.5},
	}

	got := explain(deviations, model.StatusHigh, 12)

	want := "Your health signals show notable changes that warrant attention. " +
		"Your heart rate variability is lower than your baseline (20.0 vs 50.0). " +
		"Your breathing rate is higher than your baseline (22.0 vs 16.0). " +
		"Your blood sugar is higher than your baseline (150.0 vs 100.0). " +
		"These changes have persisted for several days."
	require.Equal(t, want, got)

	// The fourth-ranked deviation falls off.
	require.NotContains(t, got, "heart rate is")

	// Input order is untouched.
	require.Equal(t, model.SignalHeartRate, deviations[0].Signal)
}

func TestExplain_TieKeepsInputOrder(t *testing.T) {
	deviations := []model.Deviation{
		{Signal: model.SignalHeartRate, Current: 70, Baseline: 60, ZScore: 2},
		{Signal: model.SignalHRV, Current: 30, Baseline: 50, ZScore: 2},
	}

	got := explain(deviations, model.StatusMild, 0)

	want := "Minor variations detected in your health data. " +
		"Your heart rate is higher than your baseline (70.0 vs 60.0). " +
		"Your heart rate variability is lower than your baseline (30.0 vs 50.0)."
	require.Equal(t, want, got)
}

func TestExplain_PersistenceCallout(t *testing.T) {
	dev := []model.Deviation{{Signal: model.SignalHeartRate, Current: 70, Baseline: 60, ZScore: 2}}

	const callout = "These changes have persisted for several days."
	require.NotContains(t, explain(dev, model.StatusMild, 10), callout)
	require.True(t, strings.HasSuffix(explain(dev, model.StatusMild, 10.1), callout))
}
