package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

func TestExponentialBackoffCapped(t *testing.T) {
	for attempt, want := range map[int]time.Duration{0: time.Second, 3: 8 * time.Second, 4: 16 * time.Second, 5: maxBackoff, 40: maxBackoff} {
		if got := exponentialBackoff(attempt); got != want {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"nil":            {nil, false},
		"closed channel": {fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		"dial failure":   {errors.New("dial tcp 127.0.0.1:5672: connect: refused"), true},
		"eof":            {errors.New("unexpected EOF"), true},
		"broker nack":    {errors.New("message was nacked"), false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.want {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCircuitBreakerGuardsPublish(t *testing.T) {
	client := &Client{exchangeName: "kakeibo", queueName: "ledger_changes"}

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	err := client.PublishLedgerChange(context.Background(), "append", 3)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after %d failures, got %v", maxFailures, err)
	}

	// After the open timeout one trial is let through; its failure reopens.
	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() || atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatalf("expected half-open after timeout, state=%d", atomic.LoadInt32(&client.state))
	}
	atomic.StoreInt64(&client.failureCount, 0)
	client.recordFailure()
	if !client.isCircuitOpen() {
		t.Fatal("a failed trial should reopen the circuit")
	}

	client.recordSuccess()
	if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Fatal("success should close the circuit")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.PublishLedgerChange(ctx, "delete", 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewLedgerChangeMessage(t *testing.T) {
	msg := NewLedgerChangeMessage("delete", 4)

	if msg.Op != "delete" || msg.Position != 4 {
		t.Errorf("NewLedgerChangeMessage() = %+v", msg)
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Error("NewLedgerChangeMessage() Timestamp should be recent")
	}
}

func TestLedgerChangeMessage_JSON(t *testing.T) {
	msg := &LedgerChangeMessage{
		Op:        "append",
		Position:  12,
		Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if want := `{"op":"append","position":12,"timestamp":"2024-01-01T12:00:00Z"}`; string(jsonBytes) != want {
		t.Errorf("ToJSON() = %s, want %s", jsonBytes, want)
	}

	parsed, err := LedgerChangeMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("LedgerChangeMessageFromJSON() error = %v", err)
	}
	if parsed.Op != msg.Op || parsed.Position != msg.Position || !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
}

func TestLedgerChangeMessage_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad position type": `{"op": "append", "position": "one"}`,
		"unknown op":        `{"op": "update", "position": 1}`,
		"missing op":        `{"position": 1}`,
		"not json":          `append`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LedgerChangeMessageFromJSON([]byte(body)); err == nil {
				t.Error("LedgerChangeMessageFromJSON() should fail")
			}
		})
	}
}
