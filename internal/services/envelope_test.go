package services

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope_KnownFields(t *testing.T) {
	body := `{
		"alert_id": "ucg-1",
		"source": "UCG Max",
		"device": "gateway-01",
		"severity": "critical",
		"alert_type": "wan_down",
		"timestamp": "2025-01-15T10:30:00Z",
		"summary": "WAN1 is down",
		"details": {"port": 9, "speed": "1G"},
		"raw_payload": {"vendor": "ubnt"},
		"idempotency_key": "evt-1"
	}`

	env, err := ParseEnvelope([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "ucg-1", env.AlertID)
	assert.Equal(t, "UCG Max", env.Source)
	assert.Equal(t, "gateway-01", env.Device)
	assert.Equal(t, "critical", env.Severity)
	assert.Equal(t, "wan_down", env.AlertType)
	require.NotNil(t, env.Timestamp)
	assert.True(t, env.Timestamp.Equal(time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, "WAN1 is down", env.Summary)
	assert.Equal(t, json.Number("9"), env.Details["port"])
	assert.Equal(t, "ubnt", env.RawPayload["vendor"])
	assert.Equal(t, "evt-1", env.IdempotencyKey)
	assert.Nil(t, env.Extra)
}

func TestParseEnvelope_ExtraFieldsPreserved(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"summary":"x","site":"hq","counter":12345678901234567890,"tags":["a","b"]}`))
	require.NoError(t, err)

	assert.Equal(t, "hq", env.Extra["site"])
	assert.Equal(t, json.Number("12345678901234567890"), env.Extra["counter"])
	assert.Equal(t, []interface{}{"a", "b"}, env.Extra["tags"])
	assert.NotContains(t, env.Extra, "summary")
}

func TestParseEnvelope_TypeAlias(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"ips_alert"}`))
	require.NoError(t, err)
	assert.Equal(t, "ips_alert", env.AlertType)
	assert.Nil(t, env.Extra)

	env, err = ParseEnvelope([]byte(`{"alert_type":"wan_down","type":"legacy"}`))
	require.NoError(t, err)
	assert.Equal(t, "wan_down", env.AlertType)
	assert.Equal(t, "legacy", env.Extra["type"], "type is kept as an extra field when alert_type is set")
}

func TestParseEnvelope_Timestamps(t *testing.T) {
	tests := []struct {
		name string
		json string
		want *time.Time
	}{
		{"rfc3339 offset", `"2025-01-15T12:30:00+02:00"`, timePtr(time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC))},
		{"naive", `"2025-01-15T10:30:00"`, timePtr(time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC))},
		{"unix seconds", `1736937000`, timePtr(time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC))},
		{"last second of 9999", `253402300799`, timePtr(time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC))},
		{"null", `null`, nil},
		{"empty string", `""`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(`{"timestamp":` + tt.json + `}`))
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, env.Timestamp)
				return
			}
			require.NotNil(t, env.Timestamp)
			assert.True(t, env.Timestamp.Equal(*tt.want), "got %v", env.Timestamp)
		})
	}
}

func TestParseEnvelope_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"summary":`},
		{"array body", `[{"summary":"x"}]`},
		{"string body", `"hello"`},
		{"empty body", ``},
		{"severity not a string", `{"severity": 5}`},
		{"details not an object", `{"details": "text"}`},
		{"raw_payload array", `{"raw_payload": [1,2]}`},
		{"bad timestamp", `{"timestamp": "yesterday"}`},
		{"timestamp object", `{"timestamp": {"at": 1}}`},
		{"timestamp beyond year 9999", `{"timestamp": 1e30}`},
		{"timestamp in milliseconds", `{"timestamp": 1735689600000}`},
		{"timestamp before epoch", `{"timestamp": -1}`},
		{"timestamp overflows float", `{"timestamp": 1e400}`},
		{"severity too long", `{"severity":"` + strings.Repeat("x", 51) + `"}`},
		{"alert_id too long", `{"alert_id":"` + strings.Repeat("x", 256) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPayload), "error %v should wrap ErrInvalidPayload", err)
		})
	}
}

func TestParseEnvelope_ValidationErrorNamesField(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"device":"` + strings.Repeat("d", 300) + `"}`))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be at most 255 characters", verr.Fields["device"])
}

func TestAlertEnvelope_MarshalRoundTrip(t *testing.T) {
	in := `{"alert_type":"wan_down","severity":"critical","site":"hq","nested":{"a":1}}`
	env, err := ParseEnvelope([]byte(in))
	require.NoError(t, err)

	out, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func timePtr(t time.Time) *time.Time { return &t }
