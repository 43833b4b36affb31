package outbox

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Event types written by the activity repository.
const (
	EventActivitySynced  = "activity.synced"
	EventActivityUpdated = "activity.updated"
)

const activitySyncedSchema = `{
  "type": "object",
  "title": "ActivitySynced",
  "properties": {
    "activity_id": {"type": "string"},
    "customer_id": {"type": "string"},
    "external_id": {"type": "integer"},
    "activity_type": {"type": "string"},
    "start_date": {"type": "string", "format": "date-time"},
    "distance_m": {"type": "number", "minimum": 0},
    "moving_time_s": {"type": "integer", "minimum": 0},
    "source": {"type": "string"}
  },
  "required": ["activity_id", "customer_id", "external_id", "activity_type", "start_date", "distance_m", "moving_time_s", "source"],
  "additionalProperties": false
}`

const activityUpdatedSchema = `{
  "type": "object",
  "title": "ActivityUpdated",
  "properties": {
    "activity_id": {"type": "string"},
    "customer_id": {"type": "string"},
    "external_id": {"type": "integer"},
    "match_status": {"type": "string", "enum": ["matched", "unmatched", "ignored"]},
    "training_day_id": {"type": ["string", "null"]},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "customer_id", "external_id", "match_status", "occurred_at"],
  "additionalProperties": false
}`

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

// ValidatePayload checks payload against the JSON schema registered for eventType.
func ValidatePayload(eventType string, payload []byte) error {
	compileOnce.Do(compileCatalog)
	if compileErr != nil {
		return compileErr
	}
	sch, ok := compiled[eventType]
	if !ok {
		return fmt.Errorf("no schema metadata for event_type=%s", eventType)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", eventType, err)
	}
	return nil
}

func compileCatalog() {
	c := jsonschema.NewCompiler()
	compiled = make(map[string]*jsonschema.Schema, len(schemaCatalog))
	for eventType, entry := range schemaCatalog {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(entry.Schema))
		if err != nil {
			compileErr = err
			return
		}
		url := eventType + ".json"
		if err := c.AddResource(url, doc); err != nil {
			compileErr = err
			return
		}
		sch, err := c.Compile(url)
		if err != nil {
			compileErr = err
			return
		}
		compiled[eventType] = sch
	}
}
