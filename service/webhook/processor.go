// Package webhook verifies, logs and processes provider webhook deliveries.
package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/apperr"
	"github.com/smsflow/smsflow/pkg/gateway"
	"github.com/smsflow/smsflow/pkg/otellib"
	"github.com/smsflow/smsflow/pkg/promlib"
	"github.com/smsflow/smsflow/pkg/seencache"
	"github.com/smsflow/smsflow/pkg/timer"
	"github.com/smsflow/smsflow/repository"
	"github.com/smsflow/smsflow/service/ingest"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

//go:generate moq -out processor_mocks_test.go . Ingestor

// Ingestor writes provider objects into the event store
type Ingestor interface {
	IngestMessage(ctx context.Context, msg gateway.Message, source string) (ingest.Result, error)
	IngestCall(ctx context.Context, call gateway.Call, source string) (ingest.Result, error)
	UpdateCall(ctx context.Context, callID string, patch model.ActivityMetadata) error
}

// Result of handling a delivery
type Result struct {
	EventID   int64
	Kind      EventKind
	Duplicate bool
}

type handlerFunc func(ctx context.Context, kind EventKind, object json.RawMessage) error

// Processor ...
type Processor struct {
	provider  repository.Provider
	eventRepo repository.WebhookEvent
	retryRepo repository.FailedRetry
	ingestor  Ingestor
	seen      *seencache.Cache
	timer     timer.Timer

	secret      string
	baseBackoff time.Duration

	handlers map[EventKind]handlerFunc
}

// NewProcessor ...
func NewProcessor(
	provider repository.Provider,
	eventRepo repository.WebhookEvent,
	retryRepo repository.FailedRetry,
	ingestor Ingestor,
	seen *seencache.Cache,
	t timer.Timer,
	secret string,
	baseBackoff time.Duration,
) *Processor {
	p := &Processor{
		provider:  provider,
		eventRepo: eventRepo,
		retryRepo: retryRepo,
		ingestor:  ingestor,
		seen:      seen,
		timer:     t,

		secret:      secret,
		baseBackoff: baseBackoff,
	}

	p.handlers = map[EventKind]handlerFunc{
		KindTokenValidated: p.handleNoop,

		KindMessageReceived:  p.handleMessage,
		KindMessageSent:      p.handleMessage,
		KindMessageDelivered: p.handleMessage,
		KindMessageFailed:    p.handleMessage,
		KindMessageOther:     p.handleMessage,

		KindCallRinging:   p.handleCall,
		KindCallAnswered:  p.handleCall,
		KindCallCompleted: p.handleCall,
		KindCallOther:     p.handleCall,

		KindCallRecordingCompleted:  p.handleRecording,
		KindCallSummaryCompleted:    p.handleSummary,
		KindCallTranscriptCompleted: p.handleTranscript,
	}
	return p
}

// HandleDelivery verifies the signature, logs the raw event then processes it.
// Nothing is stored when the signature is missing or invalid.
func (p *Processor) HandleDelivery(ctx context.Context, body []byte, signature string) (Result, error) {
	if err := VerifySignature(p.secret, signature, body); err != nil {
		promlib.WebhookEvents.WithLabelValues("", string(apperr.CodeOf(err))).Inc()
		return Result{}, err
	}

	var env Envelope
	parseErr := json.Unmarshal(body, &env)

	externalID := env.ID
	if externalID == "" {
		externalID = uuid.NewString()
	}

	ctx, span := otellib.StartSpan(ctx, "webhook.HandleDelivery",
		attribute.String("event.id", externalID),
		attribute.String("event.type", env.Type),
	)
	defer span.End()

	logger := otellib.Extract(ctx).With(
		zap.String("external_event_id", externalID),
		zap.String("event_type", env.Type),
	)
	ctx = otellib.ToContext(ctx, logger)

	if dup, eventID := p.alreadyProcessed(ctx, env.ID); dup {
		logger.Info("skip already processed webhook event", zap.Int64("event_id", eventID))
		promlib.WebhookEvents.WithLabelValues(env.Type, "DUPLICATE").Inc()
		return Result{EventID: eventID, Kind: ParseKind(env.Type), Duplicate: true}, nil
	}

	eventID, err := p.logEvent(ctx, model.WebhookEvent{
		ExternalEventID: externalID,
		EventType:       env.Type,
		Payload:         body,
		ReceivedAt:      p.timer.Now().UTC(),
	})
	if err != nil {
		logger.Error("log webhook event", zap.Error(err))
		return Result{}, err
	}

	result := Result{EventID: eventID, Kind: ParseKind(env.Type)}

	if parseErr != nil {
		err = apperr.New(apperr.CodeInvalidPayload, "invalid webhook json: %v", parseErr)
	} else {
		err = p.process(ctx, eventID, env)
	}

	promlib.WebhookEvents.WithLabelValues(env.Type, string(codeLabel(err))).Inc()

	if err != nil {
		p.recordFailure(ctx, eventID, env.Type, body, err)
		return result, err
	}

	if env.ID != "" && p.seen != nil {
		p.seen.Set(env.ID, eventID)
	}
	return result, nil
}

func codeLabel(err error) apperr.Code {
	if err == nil {
		return "OK"
	}
	return apperr.CodeOf(err)
}

func (p *Processor) alreadyProcessed(ctx context.Context, externalID string) (bool, int64) {
	if externalID == "" || p.seen == nil {
		return false, 0
	}
	eventID, ok := p.seen.Get(externalID)
	if !ok {
		return false, 0
	}

	event, err := p.eventRepo.GetWebhookEvent(p.provider.Readonly(ctx), eventID)
	if err != nil {
		return false, 0
	}
	return event.Processed && event.ExternalEventID == externalID, eventID
}

func (p *Processor) logEvent(ctx context.Context, event model.WebhookEvent) (int64, error) {
	var id int64
	err := p.provider.Transact(ctx, func(ctx context.Context) error {
		var err error
		id, err = p.eventRepo.InsertWebhookEvent(ctx, event)
		return err
	})
	return id, err
}

// process runs the handler and marks the event processed in one transaction
func (p *Processor) process(ctx context.Context, eventID int64, env Envelope) error {
	kind := ParseKind(env.Type)
	handler, ok := p.handlers[kind]
	if !ok {
		return apperr.New(apperr.CodeUnknownEventType, "unknown event type %q", env.Type)
	}

	return p.provider.Transact(ctx, func(ctx context.Context) error {
		if err := handler(ctx, kind, env.Data.Object); err != nil {
			return err
		}
		if eventID == 0 {
			return nil
		}
		return p.eventRepo.MarkEventProcessed(ctx, eventID, p.timer.Now().UTC())
	})
}

func (p *Processor) recordFailure(ctx context.Context, eventID int64, eventType string, body []byte, cause error) {
	logger := otellib.Extract(ctx)
	retry := !apperr.IsValidation(cause)

	logger.Warn("webhook event failed",
		zap.Int64("event_id", eventID),
		zap.String("code", string(apperr.CodeOf(cause))),
		zap.Bool("retry", retry),
		zap.Error(cause),
	)

	now := p.timer.Now().UTC()
	err := p.provider.Transact(ctx, func(ctx context.Context) error {
		if err := p.eventRepo.MarkEventFailed(ctx, eventID, cause.Error()); err != nil {
			return err
		}
		if !retry {
			return nil
		}
		_, err := p.retryRepo.InsertFailedRetry(ctx, model.FailedRetry{
			WebhookEventID: sql.NullInt64{Valid: true, Int64: eventID},
			EventType:      eventType,
			Payload:        body,
			ErrorMessage:   cause.Error(),
			NextRetryAt:    now.Add(p.baseBackoff),
		})
		return err
	})
	if err != nil {
		logger.Error("record webhook failure", zap.Int64("event_id", eventID), zap.Error(err))
	}
}

// Replay re-runs a stored payload, marking the webhook event processed on success
func (p *Processor) Replay(ctx context.Context, eventID sql.NullInt64, payload []byte) error {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return apperr.New(apperr.CodeInvalidPayload, "invalid webhook json: %v", err)
	}
	return p.process(ctx, eventID.Int64, env)
}

func decode(object json.RawMessage, v interface{}) error {
	if len(object) == 0 {
		return apperr.New(apperr.CodeInvalidPayload, "missing data.object")
	}
	if err := json.Unmarshal(object, v); err != nil {
		return apperr.New(apperr.CodeInvalidPayload, "invalid data.object: %v", err)
	}
	return nil
}

func (p *Processor) handleNoop(ctx context.Context, _ EventKind, _ json.RawMessage) error {
	otellib.Extract(ctx).Info("token validated")
	return nil
}

func (p *Processor) handleMessage(ctx context.Context, kind EventKind, object json.RawMessage) error {
	var msg gateway.Message
	if err := decode(object, &msg); err != nil {
		return err
	}

	result, err := p.ingestor.IngestMessage(ctx, withDefaultStatus(msg, kind), ingest.SourceWebhook)
	if err != nil {
		return err
	}
	otellib.Extract(ctx).Info("message ingested",
		zap.String("message_id", msg.ID), zap.String("result", string(result)))
	return nil
}

func (p *Processor) handleCall(ctx context.Context, kind EventKind, object json.RawMessage) error {
	var call gateway.Call
	if err := decode(object, &call); err != nil {
		return err
	}
	if call.Status == "" {
		call.Status = kind.defaultStatus()
	}
	if call.Duration == 0 && !call.AnsweredAt.IsZero() && !call.CompletedAt.IsZero() {
		call.Duration = int64(call.CompletedAt.Sub(call.AnsweredAt).Seconds())
	}

	result, err := p.ingestor.IngestCall(ctx, call, ingest.SourceWebhook)
	if err != nil {
		return err
	}
	otellib.Extract(ctx).Info("call ingested",
		zap.String("call_id", call.ID), zap.String("result", string(result)))
	return nil
}

func (p *Processor) handleRecording(ctx context.Context, _ EventKind, object json.RawMessage) error {
	var o recordingObject
	if err := decode(object, &o); err != nil {
		return err
	}
	return p.updateCall(ctx, o.CallID, o.patch())
}

func (p *Processor) handleSummary(ctx context.Context, _ EventKind, object json.RawMessage) error {
	var o summaryObject
	if err := decode(object, &o); err != nil {
		return err
	}
	return p.updateCall(ctx, o.CallID, model.ActivityMetadata{
		Summary:   o.Summary,
		NextSteps: o.NextSteps,
	})
}

func (p *Processor) handleTranscript(ctx context.Context, _ EventKind, object json.RawMessage) error {
	var o transcriptObject
	if err := decode(object, &o); err != nil {
		return err
	}
	return p.updateCall(ctx, o.CallID, o.patch())
}

func (p *Processor) updateCall(ctx context.Context, callID string, patch model.ActivityMetadata) error {
	if err := p.ingestor.UpdateCall(ctx, callID, patch); err != nil {
		return fmt.Errorf("update call %s: %w", callID, err)
	}
	return nil
}

// String ...
func (k EventKind) String() string {
	switch k {
	case KindMessageOther:
		return "message.*"
	case KindCallOther:
		return "call.*"
	}
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}
