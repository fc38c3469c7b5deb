package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ucgmax/webhook-receiver/internal/database"
	"github.com/ucgmax/webhook-receiver/internal/metrics"
)

func TestNotifier_Wants(t *testing.T) {
	n := NewNotifier("http://example.invalid", []string{" Critical ", "warning"}, nil)
	assert.True(t, n.Wants("critical"))
	assert.True(t, n.Wants("WARNING"))
	assert.False(t, n.Wants("info"))
	assert.False(t, n.Wants(""))

	all := NewNotifier("http://example.invalid", nil, nil)
	assert.True(t, all.Wants("info"))
}

func TestNotifier_PostsMatchingAlerts(t *testing.T) {
	var mu sync.Mutex
	var got []slack.WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var msg slack.WebhookMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, []string{"critical"}, nil)
	n.Start(context.Background())

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	n.Notify(&database.Alert{ID: 1, AlertID: "a-1", Severity: "critical", AlertType: "ips", Device: "gw", Summary: "Intrusion blocked", Timestamp: &ts})
	n.Notify(&database.Alert{ID: 2, AlertID: "a-2", Severity: "info"})
	n.Notify(nil)
	n.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "[CRITICAL] Intrusion blocked", got[0].Text)
	require.Len(t, got[0].Attachments, 1)
	assert.Equal(t, "danger", got[0].Attachments[0].Color)
	assert.Equal(t, "alert a-1", got[0].Attachments[0].Footer)
}

func TestNotifier_RecordsFailures(t *testing.T) {
	before := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("failed"))

	n := NewNotifier("http://example.invalid", nil, nil)
	n.post = func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
		return errors.New("boom")
	}
	n.Start(context.Background())
	n.Notify(&database.Alert{ID: 3, Severity: "critical"})
	n.Stop()

	after := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("failed"))
	assert.Equal(t, before+1, after)
}

func TestNotifier_DropsWhenQueueFull(t *testing.T) {
	before := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("dropped"))

	// Not started, so nothing drains the queue.
	n := NewNotifier("http://example.invalid", nil, nil)
	for i := 0; i < defaultQueueSize+2; i++ {
		n.Notify(&database.Alert{ID: uint(i + 1), Severity: "critical"})
	}

	after := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("dropped"))
	assert.Equal(t, before+2, after)
	n.Stop()
}

func TestNotifier_NotifyAfterStop(t *testing.T) {
	var posted atomic.Int32
	n := NewNotifier("http://example.invalid", nil, nil)
	n.post = func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
		posted.Add(1)
		return nil
	}
	n.Start(context.Background())
	n.Notify(&database.Alert{ID: 1, Severity: "critical"})
	n.Stop()

	assert.NotPanics(t, func() {
		n.Notify(&database.Alert{ID: 2, Severity: "critical"})
	})
	n.Stop()
	n.Start(context.Background())

	assert.EqualValues(t, 1, posted.Load(), "only the alert queued before Stop is posted")
}

func TestNotifier_StopDrainsQueue(t *testing.T) {
	release := make(chan struct{})
	var posted atomic.Int32
	n := NewNotifier("http://example.invalid", nil, nil)
	n.post = func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
		<-release
		posted.Add(1)
		return nil
	}
	n.Start(context.Background())
	for i := 1; i <= 5; i++ {
		n.Notify(&database.Alert{ID: uint(i), Severity: "critical"})
	}

	stopped := make(chan struct{})
	go func() {
		n.Stop()
		close(stopped)
	}()
	close(release)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.EqualValues(t, 5, posted.Load())
}

func TestNotifier_ConcurrentNotifyAndStop(t *testing.T) {
	n := NewNotifier("http://example.invalid", nil, nil)
	n.post = func(ctx context.Context, url string, msg *slack.WebhookMessage) error { return nil }
	n.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				n.Notify(&database.Alert{ID: id, Severity: "critical"})
			}
		}(uint(i))
	}
	n.Stop()
	wg.Wait()
}

func TestMessage_Fallbacks(t *testing.T) {
	msg := Message(database.Alert{AlertType: "wan_down"})
	assert.Equal(t, "[-] wan_down alert", msg.Text)
	assert.Equal(t, "good", msg.Attachments[0].Color)
	assert.Empty(t, string(msg.Attachments[0].Ts))

	assert.Equal(t, "warning", severityColor("Warning"))

	long := Message(database.Alert{Severity: "info", Summary: strings.Repeat("a", 400)})
	assert.Len(t, long.Attachments[0].Title, maxTitleLength)
}
