// internal/application/intake.go
package application

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
	"github.com/Synergyfy/Help2Home-sub002/internal/models"
)

// intakeSchema describes the raw financing request payload accepted from
// the presentation layer. Structural validation happens here; business
// bounds (percent ranges, positive price) are enforced by the finance
// engine afterwards.
var intakeSchema = map[string]interface{}{
	"type":                 "object",
	"required":             []interface{}{"propertyId", "basePriceMinor", "terms"},
	"additionalProperties": false,
	"properties": map[string]interface{}{
		"propertyId": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"basePriceMinor": map[string]interface{}{
			"type": "integer",
		},
		"terms": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"downPaymentPercent", "durationMonths", "interestRatePercent"},
			"properties": map[string]interface{}{
				"downPaymentPercent":  map[string]interface{}{"type": "number"},
				"durationMonths":      map[string]interface{}{"type": "integer"},
				"interestRatePercent": map[string]interface{}{"type": "number"},
				"serviceFeeMinor":     map[string]interface{}{"type": "integer"},
			},
		},
		"documents": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id", "type"},
				"properties": map[string]interface{}{
					"id":   map[string]interface{}{"type": "string", "minLength": 1},
					"type": map[string]interface{}{"type": "string", "minLength": 1},
				},
			},
		},
		"submit": map[string]interface{}{"type": "boolean"},
	},
}

// ParseIntake validates a raw intake payload against the JSON schema and
// converts it into a CreateInput.
func ParseIntake(payload map[string]interface{}) (*CreateInput, error) {
	schemaLoader := gojsonschema.NewGoLoader(intakeSchema)
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, errors.NewValidationFailedError(fmt.Sprintf("schema validation error: %s", err.Error()))
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, errors.NewValidationFailedError(strings.Join(details, "; "))
	}

	// The schema validates the JSON-serialized form of the payload; the
	// reads below see the original Go values, so a hand-built payload can
	// still carry types that marshal cleanly but are not the concrete ones
	// expected here. Every assertion stays comma-ok for that reason.
	terms, ok := payload["terms"].(map[string]interface{})
	if !ok {
		return nil, errors.NewValidationFailedError("terms: expected an object")
	}
	propertyID, ok := payload["propertyId"].(string)
	if !ok {
		return nil, errors.NewValidationFailedError("propertyId: expected a string")
	}

	input := &CreateInput{
		PropertyID:     propertyID,
		BasePriceMinor: asInt64(payload["basePriceMinor"]),
		Terms: models.FinancingTerms{
			DownPaymentPercent:  asFloat(terms["downPaymentPercent"]),
			DurationMonths:      int(asInt64(terms["durationMonths"])),
			InterestRatePercent: asFloat(terms["interestRatePercent"]),
			ServiceFeeMinor:     asInt64(terms["serviceFeeMinor"]),
		},
	}

	if rawSubmit, present := payload["submit"]; present {
		submit, ok := rawSubmit.(bool)
		if !ok {
			return nil, errors.NewValidationFailedError("submit: expected a boolean")
		}
		input.SubmitNow = submit
	}
	if rawDocs, present := payload["documents"]; present {
		docs, ok := rawDocs.([]interface{})
		if !ok {
			return nil, errors.NewValidationFailedError("documents: expected an array")
		}
		for i, raw := range docs {
			doc, ok := raw.(map[string]interface{})
			if !ok {
				return nil, errors.NewValidationFailedError(fmt.Sprintf("documents[%d]: expected an object", i))
			}
			id, ok := doc["id"].(string)
			if !ok {
				return nil, errors.NewValidationFailedError(fmt.Sprintf("documents[%d].id: expected a string", i))
			}
			docType, ok := doc["type"].(string)
			if !ok {
				return nil, errors.NewValidationFailedError(fmt.Sprintf("documents[%d].type: expected a string", i))
			}
			input.Documents = append(input.Documents, DocumentInput{
				ID:   id,
				Type: docType,
			})
		}
	}
	return input, nil
}

// JSON numbers arrive as float64, hand-built payloads may carry native ints.
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
