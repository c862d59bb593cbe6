package generateoutreach

import (
	"prospect-workers/internal/common/validation"
	"prospect-workers/internal/models"
)

// Input matches the variables written by enrich-prospect.
type Input struct {
	Prospect   models.Prospect         `json:"prospect"`
	Enrichment models.EnrichmentResult `json:"enrichment"`
	Tier       string                  `json:"tier"`
}

type Output struct {
	Outreach models.OutreachMessage `json:"outreach"`
}

func InputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"prospect"},
		Properties: map[string]validation.Property{
			"prospect": {
				Type:     "object",
				Required: []string{"propertyName"},
				Properties: map[string]validation.Property{
					"propertyName": {Type: "string", MinLength: validation.IntPtr(1)},
				},
			},
			"enrichment": {Type: "object"},
			"tier":       {Type: "string", Enum: []string{"hot", "warm", "cold"}},
		},
		AdditionalProperties: true,
	}
}
