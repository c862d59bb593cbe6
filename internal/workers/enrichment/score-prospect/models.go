package scoreprospect

import (
	"prospect-workers/internal/common/validation"
	"prospect-workers/internal/models"
)

type Input struct {
	ProspectID string           `json:"prospectId"`
	Prospect   *models.Prospect `json:"prospect,omitempty"`
}

type Output struct {
	ProspectID string         `json:"prospectId"`
	Score      int            `json:"score"`
	Breakdown  map[string]int `json:"scoreBreakdown"`
	Tier       string         `json:"tier"`
	Persisted  bool           `json:"scorePersisted"`
}

func InputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"prospectId": {Type: "string", MinLength: validation.IntPtr(1), MaxLength: validation.IntPtr(64)},
			"prospect": {
				Type:     "object",
				Required: []string{"propertyName"},
				Properties: map[string]validation.Property{
					"propertyName": {Type: "string", MinLength: validation.IntPtr(1)},
					"starRating":   {Type: "integer", Minimum: validation.FloatPtr(0), Maximum: validation.FloatPtr(5)},
				},
			},
		},
		AdditionalProperties: true,
	}
}
