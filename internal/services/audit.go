package services

import (
	"context"
	"time"

	"github.com/rmgwatch/apiserver/internal/logging"
	"github.com/rmgwatch/apiserver/types"
)

// AuditSink defines the persistence operation for audit events.
type AuditSink interface {
	Append(ctx context.Context, event types.AuditEvent) error
}

// RequestMeta carries the network origin and client descriptor of the
// inbound request, supplied by the HTTP layer.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// AuditRecorder appends immutable audit events. A failed write must
// never fail the surrounding operation: the caller's primary action has
// already taken effect, so sink errors are reported to the operational
// log and swallowed.
type AuditRecorder struct {
	sink AuditSink
	log  logging.Logger
	now  func() time.Time
}

func NewAuditRecorder(sink AuditSink, log logging.Logger) *AuditRecorder {
	return &AuditRecorder{sink: sink, log: log, now: time.Now}
}

// Record appends one event. actor is nil for anonymous actions.
func (r *AuditRecorder) Record(ctx context.Context, actor *int, action string, meta RequestMeta) {
	r.RecordResource(ctx, actor, action, "", nil, meta, "")
}

// RecordResource appends one event with a resource reference and detail.
func (r *AuditRecorder) RecordResource(
	ctx context.Context,
	actor *int,
	action string,
	resourceType string,
	resourceID *int,
	meta RequestMeta,
	details string,
) {
	event := types.AuditEvent{
		UserID:       actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Details:      details,
		CreatedAt:    r.now(),
	}
	if err := r.sink.Append(ctx, event); err != nil {
		r.log.Error(ctx, "audit write failed", "action", action, "error", err)
	}
}
