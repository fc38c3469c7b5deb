// Package slack posts notifications about stored alerts to a Slack incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/ucgmax/webhook-receiver/internal/database"
	"github.com/ucgmax/webhook-receiver/internal/metrics"
	"github.com/ucgmax/webhook-receiver/internal/utils"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 64
	postTimeout      = 10 * time.Second
	maxTitleLength   = 150
)

// Notifier queues alerts and posts them from a single worker so ingestion never waits on Slack
type Notifier struct {
	webhookURL string
	severities map[string]bool
	logger     *zap.Logger
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error

	queue chan database.Alert
	stop  chan struct{}
	done  chan struct{}

	// mu guards the lifecycle flags. Notify holds the read lock while
	// enqueueing so nothing is queued once Stop has taken the write lock.
	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewNotifier creates a notifier for alerts whose severity is listed (case-insensitive).
// An empty severities list notifies on every alert.
func NewNotifier(webhookURL string, severities []string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	sev := make(map[string]bool, len(severities))
	for _, s := range severities {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			sev[s] = true
		}
	}
	return &Notifier{
		webhookURL: webhookURL,
		severities: sev,
		logger:     logger,
		post:       slack.PostWebhookContext,
		queue:      make(chan database.Alert, defaultQueueSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Wants reports whether an alert of this severity is forwarded
func (n *Notifier) Wants(severity string) bool {
	if len(n.severities) == 0 {
		return true
	}
	return n.severities[strings.ToLower(severity)]
}

// Notify queues alert for posting. A full queue drops the notification, and
// after Stop nothing is queued.
func (n *Notifier) Notify(alert *database.Alert) {
	if alert == nil || !n.Wants(alert.Severity) {
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.stopped {
		n.logger.Debug("slack notifier stopped, skipping alert", zap.Uint("id", alert.ID))
		return
	}
	select {
	case n.queue <- *alert:
	default:
		metrics.RecordNotification("dropped")
		n.logger.Warn("slack notification queue full, dropping alert", zap.Uint("id", alert.ID))
	}
}

// Start runs the worker until ctx is cancelled or Stop is called
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started || n.stopped {
		return
	}
	n.started = true

	go func() {
		defer close(n.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-n.stop:
				n.drain(ctx)
				return
			case alert := <-n.queue:
				n.send(ctx, alert)
			}
		}
	}()
}

// Stop refuses further alerts and waits for queued notifications to be posted.
// It is safe to call more than once and concurrently with Notify.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	started := n.started
	close(n.stop)
	n.mu.Unlock()

	if started {
		<-n.done
	}
}

func (n *Notifier) drain(ctx context.Context) {
	for {
		select {
		case alert := <-n.queue:
			n.send(ctx, alert)
		default:
			return
		}
	}
}

func (n *Notifier) send(ctx context.Context, alert database.Alert) {
	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	if err := n.post(ctx, n.webhookURL, Message(alert)); err != nil {
		metrics.RecordNotification("failed")
		n.logger.Warn("failed to post slack notification", zap.Uint("id", alert.ID), zap.Error(err))
		return
	}
	metrics.RecordNotification("sent")
}

// Message renders alert as a Slack attachment
func Message(alert database.Alert) *slack.WebhookMessage {
	title := utils.TruncateText(alert.Summary, maxTitleLength)
	if title == "" {
		title = fmt.Sprintf("%s alert", orDash(alert.AlertType))
	}

	fields := []slack.AttachmentField{
		{Title: "Severity", Value: orDash(alert.Severity), Short: true},
		{Title: "Type", Value: orDash(alert.AlertType), Short: true},
		{Title: "Device", Value: orDash(alert.Device), Short: true},
		{Title: "Webhook", Value: orDash(alert.WebhookSource), Short: true},
	}
	var ts json.Number
	if alert.Timestamp != nil {
		ts = json.Number(strconv.FormatInt(alert.Timestamp.Unix(), 10))
	}

	return &slack.WebhookMessage{
		Text: fmt.Sprintf("[%s] %s", strings.ToUpper(orDash(alert.Severity)), title),
		Attachments: []slack.Attachment{{
			Color:      severityColor(alert.Severity),
			Title:      title,
			Fields:     fields,
			Footer:     "alert " + alert.AlertID,
			Ts:         ts,
			MarkdownIn: []string{"text"},
		}},
	}
}

func severityColor(severity string) string {
	switch strings.ToLower(severity) {
	case "critical", "high", "error":
		return "danger"
	case "warning", "medium":
		return "warning"
	default:
		return "good"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
