package enrichprospect

import (
	"prospect-workers/internal/common/validation"
	"prospect-workers/internal/models"
)

// Input accepts either a full prospect or the id of a stored one.
type Input struct {
	ProspectID string           `json:"prospectId"`
	Prospect   *models.Prospect `json:"prospect,omitempty"`
}

type Output struct {
	ProspectID string                  `json:"prospectId"`
	RunID      string                  `json:"runId"`
	Enrichment models.EnrichmentResult `json:"enrichment"`
	Score      models.ScoreBreakdown   `json:"score"`
	Tier       string                  `json:"tier"`
	Sources    []string                `json:"sources"`
	Prospect   models.Prospect         `json:"prospect"`
}

// InputSchema allows additional properties because Zeebe hands over every
// variable in scope.
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
					"website":      {Type: "string"},
					"starRating":   {Type: "integer", Minimum: validation.FloatPtr(0), Maximum: validation.FloatPtr(5)},
				},
			},
		},
		AdditionalProperties: true,
	}
}
