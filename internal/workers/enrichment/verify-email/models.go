package verifyemail

import (
	"prospect-workers/internal/common/validation"
	"prospect-workers/internal/prospect/lookup"
)

type Input struct {
	Email      string `json:"email"`
	ProspectID string `json:"prospectId,omitempty"`
}

type Output struct {
	lookup.Verification
	ProspectID  string `json:"prospectId,omitempty"`
	Deliverable bool   `json:"deliverable"`
}

func InputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"email"},
		Properties: map[string]validation.Property{
			"email":      {Type: "string", MinLength: validation.IntPtr(3), MaxLength: validation.IntPtr(254)},
			"prospectId": {Type: "string"},
		},
		AdditionalProperties: true,
	}
}
