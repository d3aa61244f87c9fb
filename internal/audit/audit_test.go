package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestJSONWriterSinkEmitsOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	ctx := context.Background()

	sink.Emit(ctx, Event{
		Timestamp: time.Unix(1700000000, 0).UTC(),
		EventType: EventLoginSuccess,
		Subject:   "42",
		Email:     "alice@example.com",
		Success:   true,
	})
	sink.Emit(ctx, Event{
		Timestamp: time.Unix(1700000001, 0).UTC(),
		EventType: EventLoginFailure,
		Email:     "mallory@example.com",
		Error:     "authentication failed",
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if first.EventType != EventLoginSuccess || first.Subject != "42" || !first.Success {
		t.Fatalf("unexpected first event: %+v", first)
	}
}

func TestJSONWriterSinkConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Emit(context.Background(), Event{EventType: EventLogout, Subject: "42"})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	for _, line := range lines {
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("interleaved write produced invalid JSON: %v", err)
		}
	}
}

func TestNilAndNoOpSinksAreSafe(t *testing.T) {
	var nilSink *JSONWriterSink
	nilSink.Emit(context.Background(), Event{EventType: EventLogout})

	NoOpSink{}.Emit(context.Background(), Event{EventType: EventLogout})
}
