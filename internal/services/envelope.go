package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ucgmax/webhook-receiver/internal/api"
)

// AlertEnvelope is the inbound webhook body. Every field is optional.
// Keys outside the known set are kept in Extra so nothing the sender wrote is lost.
type AlertEnvelope struct {
	AlertID        string                 `json:"alert_id,omitempty" validate:"max=255"`
	Source         string                 `json:"source,omitempty" validate:"max=255"`
	Device         string                 `json:"device,omitempty" validate:"max=255"`
	Severity       string                 `json:"severity,omitempty" validate:"max=50"`
	AlertType      string                 `json:"alert_type,omitempty" validate:"max=100"`
	Timestamp      *time.Time             `json:"timestamp,omitempty"`
	Summary        string                 `json:"summary,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
	RawPayload     map[string]interface{} `json:"raw_payload,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty" validate:"max=255"`

	Extra map[string]interface{} `json:"-"`
}

// typeAliasKey is accepted in place of alert_type.
const typeAliasKey = "type"

// UnmarshalJSON decodes a JSON object. null values leave the field unset.
func (e *AlertEnvelope) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}

	*e = AlertEnvelope{}
	strField := func(key string, dst *string) error {
		raw, ok := fields[key]
		if !ok {
			return nil
		}
		delete(fields, key)
		if isNull(raw) {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("field %q must be a string", key)
		}
		return nil
	}
	objField := func(key string, dst *map[string]interface{}) error {
		raw, ok := fields[key]
		if !ok {
			return nil
		}
		delete(fields, key)
		if isNull(raw) {
			return nil
		}
		obj, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		m, ok := obj.(map[string]interface{})
		if !ok {
			return fmt.Errorf("field %q must be an object", key)
		}
		*dst = m
		return nil
	}

	for key, dst := range map[string]*string{
		"alert_id":        &e.AlertID,
		"source":          &e.Source,
		"device":          &e.Device,
		"severity":        &e.Severity,
		"alert_type":      &e.AlertType,
		"summary":         &e.Summary,
		"idempotency_key": &e.IdempotencyKey,
	} {
		if err := strField(key, dst); err != nil {
			return err
		}
	}
	if e.AlertType == "" {
		if err := strField(typeAliasKey, &e.AlertType); err != nil {
			return err
		}
	}
	if err := objField("details", &e.Details); err != nil {
		return err
	}
	if err := objField("raw_payload", &e.RawPayload); err != nil {
		return err
	}

	if raw, ok := fields["timestamp"]; ok {
		delete(fields, "timestamp")
		ts, err := parseTimestamp(raw)
		if err != nil {
			return err
		}
		e.Timestamp = ts
	}

	if len(fields) > 0 {
		e.Extra = make(map[string]interface{}, len(fields))
		for key, raw := range fields {
			v, err := decodeValue(raw)
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			e.Extra[key] = v
		}
	}
	return nil
}

// MarshalJSON writes known fields and Extra back into one object.
func (e AlertEnvelope) MarshalJSON() ([]byte, error) {
	type known AlertEnvelope
	base, err := json.Marshal(known(e))
	if err != nil {
		return nil, err
	}
	if len(e.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]interface{}, len(e.Extra)+10)
	for k, v := range e.Extra {
		merged[k] = v
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Validate checks length limits on the known fields.
func (e *AlertEnvelope) Validate() error {
	if fieldErrors := api.Validate(e); fieldErrors != nil {
		return &ValidationError{Fields: fieldErrors}
	}
	return nil
}

// ParseEnvelope decodes and validates a webhook body.
// All failures wrap ErrInvalidPayload.
func ParseEnvelope(body []byte) (*AlertEnvelope, error) {
	var env AlertEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("%w: malformed JSON at position %d", ErrInvalidPayload, syntaxErr.Offset)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// decodeBodyObject decodes a whole body as an object, keeping numbers exact.
func decodeBodyObject(body []byte) (map[string]interface{}, error) {
	v, err := decodeValue(body)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("body must be a JSON object")
	}
	return m, nil
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("body must be a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// decodeValue decodes any JSON value using json.Number so large integers survive storage.
func decodeValue(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// maxUnixSeconds is 9999-12-31T23:59:59Z, the last instant every supported
// database can store.
const maxUnixSeconds = 253402300799

// parseTimestamp accepts an ISO-8601 string or Unix seconds.
// Numeric values must fall between the epoch and the end of year 9999, which
// also rejects epoch milliseconds.
func parseTimestamp(raw json.RawMessage) (*time.Time, error) {
	if isNull(raw) {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		t, err := api.ParseTime(s)
		if err != nil {
			return nil, fmt.Errorf("field \"timestamp\": %w", err)
		}
		return &t, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		secs, err := n.Float64()
		if err == nil {
			if secs < 0 || secs > maxUnixSeconds {
				return nil, fmt.Errorf("field \"timestamp\" must be Unix seconds between 0 and %d, got %s", maxUnixSeconds, n)
			}
			whole := int64(secs)
			t := time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("field \"timestamp\" must be an ISO-8601 string or Unix seconds")
}
