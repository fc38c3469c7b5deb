package database

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB is a JSON object column. It maps to json on PostgreSQL, MariaDB/MySQL and SQLite.
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*j = nil
		return nil
	}
	return json.Unmarshal(data, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	// Keep <, > and & literal so free-text search matches what the sender wrote.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]interface{}(j)); err != nil {
		return nil, err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// DefaultWebhookSource tags alerts received on the UCG Max endpoint
const DefaultWebhookSource = "ucgmax"

// Alert is one received webhook notification
type Alert struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AlertID       string     `gorm:"size:255;index:idx_alerts_alert_id" json:"alert_id"`
	WebhookSource string     `gorm:"size:100;not null;default:ucgmax;index:idx_alerts_webhook_source" json:"webhook_source"`
	Source        string     `gorm:"size:255" json:"source"`
	Device        string     `gorm:"size:255;index:idx_alerts_device" json:"device"`
	Severity      string     `gorm:"size:50;index:idx_alerts_severity" json:"severity"`
	AlertType     string     `gorm:"size:100;index:idx_alerts_type" json:"alert_type"`
	Timestamp     *time.Time `gorm:"index:idx_alerts_timestamp" json:"timestamp"`
	Summary       string     `gorm:"type:text" json:"summary"`
	Details       JSONB      `gorm:"type:json" json:"details"`
	RawPayload    JSONB      `gorm:"type:json" json:"raw_payload"`
	Extra         JSONB      `gorm:"type:json" json:"extra,omitempty"`

	// Set once on insert; the "<-:create" permission keeps gorm from ever updating them.
	CreatedAt  time.Time `gorm:"<-:create;not null" json:"created_at"`
	ReceivedAt time.Time `gorm:"<-:create;not null;index:idx_alerts_received_at" json:"received_at"`

	// NULL when absent so the unique index only covers supplied keys.
	IdempotencyKey *string `gorm:"size:255;uniqueIndex:idx_alerts_idempotency_key" json:"idempotency_key"`
}

// TableName pins the table name used by existing deployments
func (Alert) TableName() string {
	return "alerts"
}

// AlertMetrics is the summary returned by /api/metrics
type AlertMetrics struct {
	TotalAlerts    int64            `json:"total_alerts"`
	SeverityCounts map[string]int64 `json:"severity_counts"`
	Last24hCount   int64            `json:"last_24h_count"`
}

// UnsetSeverity is the severity_counts key for alerts without a severity
const UnsetSeverity = "unset"
