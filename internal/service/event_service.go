package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/pkg/events"
	"github.com/noah-isme/sma-enrollment-docs/pkg/lock"
	"github.com/noah-isme/sma-enrollment-docs/pkg/middleware/requestid"
)

const publishTimeout = 2 * time.Second

type eventPublisher interface {
	Publish(ctx context.Context, msg events.Message) error
}

// EventEmitter stamps and hands domain events to the dispatcher after a
// transition has been committed. Publishing failures are logged only.
type EventEmitter struct {
	publisher eventPublisher
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewEventEmitter constructs an emitter. A nil publisher only counts and logs.
func NewEventEmitter(publisher eventPublisher, metrics *MetricsService, logger *zap.Logger) *EventEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventEmitter{publisher: publisher, metrics: metrics, logger: logger, now: time.Now}
}

// Emit publishes evt. The request may already be cancelled once the write
// committed, so publishing runs on a detached context.
func (e *EventEmitter) Emit(ctx context.Context, evt models.DocumentEvent) {
	if e == nil {
		return
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now().UTC()
	}
	if evt.RequestID == "" {
		evt.RequestID = requestid.FromContext(ctx)
	}
	e.metrics.RecordTransition(evt.Kind)
	if e.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	msg := events.Message{
		ID:      evt.ID,
		Type:    string(evt.Kind),
		Key:     eventKey(evt),
		Payload: evt,
	}
	if err := e.publisher.Publish(pubCtx, msg); err != nil {
		e.logger.Warn("failed to publish domain event",
			zap.String("event_id", evt.ID),
			zap.String("kind", string(evt.Kind)),
			zap.String("enrollment_id", evt.EnrollmentID),
			zap.Error(err),
		)
	}
}

func eventKey(evt models.DocumentEvent) string {
	if evt.DocumentType == "" {
		return "enrollment:" + evt.EnrollmentID
	}
	return lock.DocumentKey(evt.EnrollmentID, evt.DocumentType)
}

// AuditSink writes domain events to the audit trail.
type AuditSink struct {
	audit auditLogger
}

// NewAuditSink constructs the sink.
func NewAuditSink(audit auditLogger) *AuditSink {
	return &AuditSink{audit: audit}
}

// Name implements events.Sink.
func (s *AuditSink) Name() string { return "audit" }

// Handle implements events.Sink.
func (s *AuditSink) Handle(ctx context.Context, msg events.Message) error {
	evt, ok := msg.Payload.(models.DocumentEvent)
	if !ok {
		return fmt.Errorf("audit sink: unexpected payload %T", msg.Payload)
	}
	log := &models.AuditLog{
		ID:        evt.ID,
		UserID:    optionalString(evt.Actor),
		Action:    string(evt.Kind),
		Resource:  auditResource(evt.Kind),
		RequestID: evt.RequestID,
		CreatedAt: evt.Timestamp,
	}
	resourceID := evt.VersionID
	if resourceID == "" {
		resourceID = evt.EnrollmentID
	}
	log.ResourceID = &resourceID

	var err error
	if log.OldValues, err = json.Marshal(map[string]string{"status": evt.FromStatus}); err != nil {
		return fmt.Errorf("encode audit old values: %w", err)
	}
	newValues := map[string]string{
		"status":       evt.ToStatus,
		"enrollmentId": evt.EnrollmentID,
		"documentType": evt.DocumentType,
	}
	if evt.Reason != "" {
		newValues["reason"] = evt.Reason
	}
	if log.NewValues, err = json.Marshal(newValues); err != nil {
		return fmt.Errorf("encode audit new values: %w", err)
	}
	return s.audit.CreateAuditLog(ctx, log)
}

func auditResource(kind models.EventKind) string {
	switch kind {
	case models.EventManualCheckSet, models.EventManualCheckCleared:
		return models.AuditResourceManualCheck
	case models.EventWorkflowTransition:
		return models.AuditResourceEnrollment
	default:
		return models.AuditResourceDocument
	}
}
