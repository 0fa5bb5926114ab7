package carescore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// explain renders the deterministic score explanation: a status lead, the
// top three deviations by z-score, and a persistence callout. Identical
// inputs produce byte-identical output.
func explain(deviations []model.Deviation, status model.ScoreStatus, persistence float64) string {
	if len(deviations) == 0 {
		return "All health signals are within your normal range. Your body is tracking as expected."
	}

	top := make([]model.Deviation, len(deviations))
	copy(top, deviations)
	// Stable, so ties keep the severity iteration order.
	sort.SliceStable(top, func(i, j int) bool { return top[i].ZScore > top[j].ZScore })
	if len(top) > 3 {
		top = top[:3]
	}

	var parts []string
	switch status {
	case model.StatusHigh:
		parts = append(parts, "Your health signals show notable changes that warrant attention.")
	case model.StatusModerate:
		parts = append(parts, "Some health signals are deviating from your usual patterns.")
	default:
		parts = append(parts, "Minor variations detected in your health data.")
	}

	for _, d := range top {
		direction := "lower"
		if d.Current > d.Baseline {
			direction = "higher"
		}
		parts = append(parts, fmt.Sprintf("Your %s is %s than your baseline (%.1f vs %.1f).",
			model.DisplayName(d.Signal), direction, d.Current, d.Baseline))
	}

	if persistence > 10 {
		parts = append(parts, "These changes have persisted for several days.")
	}

	return strings.Join(parts, " ")
}
