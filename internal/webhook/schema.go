package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

const eventSchemaURL = "strava-webhook-event.json"

const eventSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["aspect_type", "event_time", "object_id", "object_type", "owner_id", "subscription_id"],
  "properties": {
    "aspect_type": {"type": "string", "enum": ["create", "update", "delete"]},
    "event_time": {"type": "integer", "minimum": 0},
    "object_id": {"type": "integer", "minimum": 1},
    "object_type": {"type": "string", "enum": ["activity", "athlete"]},
    "owner_id": {"type": "integer", "minimum": 1},
    "subscription_id": {"type": "integer"},
    "updates": {"type": "object", "additionalProperties": {"type": ["string", "boolean", "number"]}}
  }
}`

// Validator checks push bodies against the Strava event schema before decoding them.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the event schema.
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(eventSchema))
	if err != nil {
		return nil, fmt.Errorf("parse webhook schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(eventSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add webhook schema: %w", err)
	}
	sch, err := c.Compile(eventSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile webhook schema: %w", err)
	}
	return &Validator{schema: sch}, nil
}

// Decode validates body and returns the event. Failures wrap domain.ErrValidationFailed.
func (v *Validator) Decode(body []byte) (Event, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return Event{}, fmt.Errorf("%w: webhook body is not json: %v", domain.ErrValidationFailed, err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return Event{}, fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)
	}

	var raw struct {
		Event
		Updates map[string]any `json:"updates,omitempty"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)
	}
	e := raw.Event
	if len(raw.Updates) > 0 {
		e.Updates = make(map[string]string, len(raw.Updates))
		for k, val := range raw.Updates {
			e.Updates[k] = fmt.Sprint(val)
		}
	}
	return e, nil
}
