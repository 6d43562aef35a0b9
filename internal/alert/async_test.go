package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsemetrics/guardrail/internal/models"
)

type collectingSink struct {
	mu     sync.Mutex
	alerts []Alert
}

func (s *collectingSink) Deliver(ctx context.Context, alert Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *collectingSink) snapshot() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.alerts...)
}

// blockingSink holds deliveries until released so tests can fill the queue.
type blockingSink struct {
	release chan struct{}
	sink    collectingSink
}

func (s *blockingSink) Deliver(ctx context.Context, alert Alert) error {
	<-s.release
	return s.sink.Deliver(ctx, alert)
}

func TestAsyncDispatcherDeliversToAllSinks(t *testing.T) {
	first := &collectingSink{}
	second := &collectingSink{}
	d := NewAsyncDispatcher(16, 1000, first, second)
	defer d.Close()

	d.Send(Alert{
		Severity:   SeverityCritical,
		Identifier: "user-1",
		Kind:       models.KindUser,
		Reasons:    []string{"daily overage"},
	})

	require.Eventually(t, func() bool {
		return len(first.snapshot()) == 1 && len(second.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := first.snapshot()[0]
	assert.Equal(t, "user-1", got.Identifier)
	assert.False(t, got.CreatedAt.IsZero(), "send stamps CreatedAt")
}

func TestAsyncDispatcherSendNeverBlocksWhenQueueIsFull(t *testing.T) {
	blocking := &blockingSink{release: make(chan struct{})}
	d := NewAsyncDispatcher(2, 1000, blocking)

	// The worker is stuck on the first delivery; once the queue backs up
	// further sends must return immediately.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			d.Send(Alert{Severity: SeverityWarning, Identifier: "user-1", Kind: models.KindUser})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on a full queue")
	}

	close(blocking.release)
	d.Close()

	// Whatever survived the overflow was delivered; the rest was dropped.
	delivered := len(blocking.sink.snapshot())
	assert.Greater(t, delivered, 0)
	assert.LessOrEqual(t, delivered, 20)
}

func TestAsyncDispatcherCloseDrainsQueue(t *testing.T) {
	sink := &collectingSink{}
	d := NewAsyncDispatcher(64, 1000, sink)

	for i := 0; i < 10; i++ {
		d.Send(Alert{Severity: SeverityWarning, Identifier: "user-1", Kind: models.KindUser})
	}
	d.Close()

	assert.Len(t, sink.snapshot(), 10)
}

func TestWebhookSinkPostsJSON(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL)
	err := sink.Deliver(context.Background(), Alert{
		Severity:   SeverityCritical,
		Identifier: "user-1",
		Kind:       models.KindUser,
		Reasons:    []string{"daily overage"},
	})
	require.NoError(t, err)

	assert.Equal(t, "critical", payload["severity"])
	assert.Contains(t, payload["text"], "user-1")
	assert.Contains(t, payload["text"], "suspended")
}

func TestWebhookSinkRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL)
	err := sink.Deliver(context.Background(), Alert{Severity: SeverityWarning, Identifier: "user-1", Kind: models.KindUser})
	assert.Error(t, err)
}

func TestFormatText(t *testing.T) {
	warning := formatText(Alert{
		Severity:   SeverityWarning,
		Identifier: "user-1",
		Kind:       models.KindUser,
		Reasons:    []string{"burst", "hourly spike"},
	})
	assert.Equal(t, "[WARNING] user user-1 flagged: burst, hourly spike", warning)

	critical := formatText(Alert{
		Severity:   SeverityCritical,
		Identifier: "203.0.113.7",
		Kind:       models.KindIP,
		Reasons:    []string{"daily overage"},
	})
	assert.Equal(t, "[CRITICAL] ip 203.0.113.7 suspended: daily overage", critical)
}
