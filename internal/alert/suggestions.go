package alert

import (
	"strings"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// Suggestions derives up to four self-care steps from a score. Rules key off
// the explanation text and the aggregate; scores under 25 get none.
func Suggestions(score *model.Score) []string {
	if score.Aggregate < 25 {
		return nil
	}
	expl := strings.ToLower(score.Explanation)

	var out []string
	if strings.Contains(expl, "sleep") || score.Aggregate >= 50 {
		out = append(out,
			"Consider maintaining a consistent sleep schedule",
			"Avoid screens 1 hour before bedtime")
	}
	if strings.Contains(expl, "heart") || strings.Contains(expl, "hr") {
		out = append(out,
			"Try light relaxation exercises or deep breathing",
			"Consider a short walk outdoors")
	}
	if strings.Contains(expl, "activity") || score.Aggregate >= 40 {
		out = append(out, "Gentle physical activity may help - even a 10-minute walk")
	}
	if score.Aggregate >= 30 {
		out = append(out, "Stay well hydrated throughout the day")
	}
	if strings.Contains(expl, "bp") || strings.Contains(expl, "pressure") {
		out = append(out,
			"Consider moderating salt intake",
			"Practice stress-relief techniques")
	}
	if score.Aggregate >= 70 {
		out = append(out,
			"Consider contacting your healthcare provider",
			"Rest and monitor how you feel")
	}

	if len(out) > 4 {
		out = out[:4]
	}
	return out
}
