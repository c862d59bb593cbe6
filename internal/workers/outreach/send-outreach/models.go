package sendoutreach

import (
	"prospect-workers/internal/common/validation"
	"prospect-workers/internal/models"
)

type Input struct {
	ProspectID string                 `json:"prospectId"`
	Outreach   models.OutreachMessage `json:"outreach"`
}

type Output struct {
	Sent      bool   `json:"outreachSent"`
	MessageID string `json:"messageId,omitempty"`
	Recorded  bool   `json:"outreachRecorded"`
	Reason    string `json:"reason,omitempty"`
}

func InputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"outreach"},
		Properties: map[string]validation.Property{
			"prospectId": {Type: "string"},
			"outreach": {
				Type:     "object",
				Required: []string{"to", "subject", "body"},
				Properties: map[string]validation.Property{
					"to":      {Type: "string", MinLength: validation.IntPtr(3), MaxLength: validation.IntPtr(254)},
					"subject": {Type: "string", MinLength: validation.IntPtr(1), MaxLength: validation.IntPtr(200)},
					"body":    {Type: "string", MinLength: validation.IntPtr(1)},
				},
			},
		},
		AdditionalProperties: true,
	}
}
