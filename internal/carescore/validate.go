package carescore

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ScoreRequest is the external score-computation payload accepted by the
// API and the CLI's --input flag.
type ScoreRequest struct {
	Current  map[string]float64 `json:"current"`
	Symptoms []string           `json:"symptoms,omitempty"`
}

// scoreRequestSchema admits exactly the baselined signal names with numeric
// values, plus free-form symptom tags.
const scoreRequestSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"current": {
			"type": "object",
			"minProperties": 1,
			"properties": {
				"heart_rate":     {"type": "number"},
				"hrv":            {"type": "number"},
				"sleep_duration": {"type": "number"},
				"sleep_quality":  {"type": "number"},
				"activity_level": {"type": "number"},
				"breathing_rate": {"type": "number"},
				"bp_systolic":    {"type": "number"},
				"bp_diastolic":   {"type": "number"},
				"blood_sugar":    {"type": "number"}
			},
			"additionalProperties": false
		},
		"symptoms": {
			"type": "array",
			"items": {"type": "string"}
		}
	},
	"required": ["current"],
	"additionalProperties": false
}`

var scoreRequestCompiled = jsonschema.MustCompileString("score_request.json", scoreRequestSchema)

// ParseRequest validates and decodes a score payload. Schema violations and
// malformed JSON both surface as *ValidationError.
func ParseRequest(data []byte) (*ScoreRequest, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Detail: "body is not valid JSON"}
	}
	if err := scoreRequestCompiled.Validate(raw); err != nil {
		return nil, &ValidationError{Detail: err.Error()}
	}

	var req ScoreRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &ValidationError{Detail: err.Error()}
	}
	return &req, nil
}
