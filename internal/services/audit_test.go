package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/rmgwatch/apiserver/internal/logging"
	"github.com/rmgwatch/apiserver/types"
)

type memoryLogWriter struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (w *memoryLogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *memoryLogWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestRecord_AppendsEvent(t *testing.T) {
	sink := &captureSink{}
	recorder := NewAuditRecorder(sink, discardLogger())

	actor := 42
	recorder.Record(context.Background(), &actor, types.AuditActionLogin, RequestMeta{
		IPAddress: "192.0.2.1",
		UserAgent: "test-agent",
	})

	event, ok := sink.last()
	if !ok {
		t.Fatal("expected one event")
	}
	if event.Action != types.AuditActionLogin || *event.UserID != 42 {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.IPAddress != "192.0.2.1" || event.UserAgent != "test-agent" {
		t.Fatalf("request meta not carried: %+v", event)
	}
	if event.CreatedAt.IsZero() {
		t.Fatal("event must be timestamped")
	}
}

func TestRecord_SinkFailureIsSwallowedButLogged(t *testing.T) {
	sink := &captureSink{failErr: errors.New("disk full")}
	writer := &memoryLogWriter{}
	log := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(writer, nil)))
	recorder := NewAuditRecorder(sink, log)

	// Must not panic or propagate: the caller's operation has already
	// taken effect.
	recorder.Record(context.Background(), nil, types.AuditActionLogout, RequestMeta{})

	out := writer.String()
	if !strings.Contains(out, "audit write failed") {
		t.Fatalf("sink failure should be logged, got %q", out)
	}
	if !strings.Contains(out, "disk full") {
		t.Fatalf("log should carry the underlying error, got %q", out)
	}
}

func TestRecordResource_NilActorForAnonymousActions(t *testing.T) {
	sink := &captureSink{}
	recorder := NewAuditRecorder(sink, discardLogger())

	reportID := 7
	recorder.RecordResource(context.Background(), nil, types.AuditActionSubmitReport, "fraud_report", &reportID, RequestMeta{}, "anonymous: true")

	event, _ := sink.last()
	if event.UserID != nil {
		t.Fatal("anonymous actions must not carry a user id")
	}
	if event.ResourceType != "fraud_report" || *event.ResourceID != 7 {
		t.Fatalf("resource reference missing: %+v", event)
	}
}
