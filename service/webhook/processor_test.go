package webhook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/apperr"
	"github.com/smsflow/smsflow/pkg/gateway"
	"github.com/smsflow/smsflow/pkg/seencache"
	"github.com/smsflow/smsflow/pkg/timer"
	"github.com/smsflow/smsflow/repository"
	"github.com/smsflow/smsflow/repository/inmem"
	"github.com/smsflow/smsflow/service/bounce"
	"github.com/smsflow/smsflow/service/ingest"
	"github.com/stretchr/testify/assert"
)

const testSecret = "s3cret"

func newTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

type processorTest struct {
	store     *inmem.Store
	repos     inmem.Repos
	timer     *timer.Fake
	processor *Processor
}

func newProcessorTestWith(ingestor Ingestor, seen *seencache.Cache) *processorTest {
	store := inmem.NewStore()
	repos := store.Repos()
	fake := timer.NewFake(newTime("2022-05-10T12:00:00Z"))

	if ingestor == nil {
		delivery := bounce.NewService(store, repos.Membership, repos.Activity)
		ingestor = ingest.NewService(repos.Contact, repos.Conversation, repos.Activity, repos.Membership,
			delivery, fake, 72*time.Hour)
	}

	return &processorTest{
		store: store,
		repos: repos,
		timer: fake,
		processor: NewProcessor(store, repos.WebhookEvent, repos.FailedRetry, ingestor, seen, fake,
			testSecret, time.Minute),
	}
}

func newProcessorTest() *processorTest {
	return newProcessorTestWith(nil, nil)
}

func (p *processorTest) deliver(body string) (Result, error) {
	return p.processor.HandleDelivery(context.Background(), []byte(body), Sign(testSecret, []byte(body)))
}

func (p *processorTest) readonly() context.Context {
	return p.store.Readonly(context.Background())
}

func (p *processorTest) event(t *testing.T, id int64) model.WebhookEvent {
	e, err := p.repos.WebhookEvent.GetWebhookEvent(p.readonly(), id)
	assert.Equal(t, nil, err)
	return e
}

func (p *processorTest) retries(t *testing.T) []model.FailedRetry {
	list, err := p.repos.FailedRetry.ListDueRetries(p.readonly(), newTime("2030-01-01T00:00:00Z"), 100, 100)
	assert.Equal(t, nil, err)
	return list
}

func messageEvent(eventID string, messageID string, text string) string {
	return fmt.Sprintf(`{
	"id": %q,
	"type": "message.received",
	"createdAt": "2022-05-10T11:00:00Z",
	"data": {
		"object": {
			"id": %q,
			"conversationId": "CN01",
			"direction": "incoming",
			"from": "+15550001111",
			"to": ["+15559998888"],
			"text": %q,
			"createdAt": "2022-05-10T11:00:00Z"
		}
	}
}`, eventID, messageID, text)
}

func TestHandleDelivery_Same_Event_Twice_One_Activity(t *testing.T) {
	p := newProcessorTest()
	body := messageEvent("EV01", "MSG01", "hello")

	r1, err := p.deliver(body)
	assert.Equal(t, nil, err)
	assert.Equal(t, KindMessageReceived, r1.Kind)
	assert.Equal(t, false, r1.Duplicate)

	r2, err := p.deliver(body)
	assert.Equal(t, nil, err)

	assert.Equal(t, 1, p.store.Count("activity"))
	assert.Equal(t, 1, p.store.Count("contact"))
	assert.Equal(t, 2, p.store.Count("webhook_event"))

	assert.Equal(t, true, p.event(t, r1.EventID).Processed)
	assert.Equal(t, true, p.event(t, r2.EventID).Processed)
}

func TestHandleDelivery_Seen_Cache_Skips_Processed_Event(t *testing.T) {
	p := newProcessorTestWith(nil, seencache.New(1024*1024, 60))
	body := messageEvent("EV01", "MSG01", "hello")

	r1, err := p.deliver(body)
	assert.Equal(t, nil, err)

	r2, err := p.deliver(body)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, r2.Duplicate)
	assert.Equal(t, r1.EventID, r2.EventID)

	assert.Equal(t, 1, p.store.Count("activity"))
	assert.Equal(t, 1, p.store.Count("webhook_event"))
}

func TestHandleDelivery_Unknown_Event_Type(t *testing.T) {
	p := newProcessorTest()

	result, err := p.deliver(`{"id":"EV01","type":"something.unsupported","data":{"object":{}}}`)
	assert.Equal(t, apperr.CodeUnknownEventType, apperr.CodeOf(err))
	assert.Equal(t, KindUnknown, result.Kind)

	event := p.event(t, result.EventID)
	assert.Equal(t, "something.unsupported", event.EventType)
	assert.Equal(t, false, event.Processed)
	assert.Equal(t, true, event.ErrorMessage.Valid)

	assert.Equal(t, 0, p.store.Count("failed_retry"))
}

func TestHandleDelivery_Bad_Signature_Logs_Nothing(t *testing.T) {
	p := newProcessorTest()
	body := []byte(messageEvent("EV01", "MSG01", "hello"))

	_, err := p.processor.HandleDelivery(context.Background(), body, "")
	assert.Equal(t, apperr.CodeMissingSignature, apperr.CodeOf(err))

	_, err = p.processor.HandleDelivery(context.Background(), body, Sign("wrong", body))
	assert.Equal(t, apperr.CodeInvalidSignature, apperr.CodeOf(err))

	assert.Equal(t, 0, p.store.Count("webhook_event"))
	assert.Equal(t, 0, p.store.Count("activity"))
}

func TestHandleDelivery_Invalid_JSON_Logged_Not_Retried(t *testing.T) {
	p := newProcessorTest()

	result, err := p.deliver(`{"id": "EV01", "type": `)
	assert.Equal(t, apperr.CodeInvalidPayload, apperr.CodeOf(err))
	assert.Equal(t, 1, p.store.Count("webhook_event"))
	assert.Equal(t, false, p.event(t, result.EventID).Processed)
	assert.Equal(t, 0, p.store.Count("failed_retry"))
}

func TestHandleDelivery_Missing_Event_ID_Gets_Generated_One(t *testing.T) {
	p := newProcessorTest()

	result, err := p.deliver(`{"type":"token.validated","data":{"object":{}}}`)
	assert.Equal(t, nil, err)

	event := p.event(t, result.EventID)
	assert.Equal(t, 36, len(event.ExternalEventID))
	assert.Equal(t, true, event.Processed)
}

func TestHandleDelivery_Stop_Opts_Out_Contact(t *testing.T) {
	p := newProcessorTest()

	_, err := p.deliver(messageEvent("EV01", "MSG01", "STOP"))
	assert.Equal(t, nil, err)

	a, err := p.repos.Activity.GetActivityByExternalID(p.readonly(), "MSG01")
	assert.Equal(t, nil, err)

	contact, err := p.repos.Contact.GetContact(p.readonly(), a.ContactID.Int64)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, contact.SMSOptOut)
}

func TestHandleDelivery_Processing_Error_Queues_Retry(t *testing.T) {
	ingestor := &IngestorMock{
		IngestMessageFunc: func(ctx context.Context, msg gateway.Message, source string) (ingest.Result, error) {
			return "", errors.New("deadlock found")
		},
	}
	p := newProcessorTestWith(ingestor, nil)
	body := messageEvent("EV01", "MSG01", "hello")

	result, err := p.deliver(body)
	assert.Equal(t, errors.New("deadlock found"), err)

	event := p.event(t, result.EventID)
	assert.Equal(t, false, event.Processed)
	assert.Equal(t, sql.NullString{Valid: true, String: "deadlock found"}, event.ErrorMessage)

	retries := p.retries(t)
	assert.Equal(t, 1, len(retries))
	assert.Equal(t, sql.NullInt64{Valid: true, Int64: result.EventID}, retries[0].WebhookEventID)
	assert.Equal(t, "message.received", retries[0].EventType)
	assert.Equal(t, []byte(body), retries[0].Payload)
	assert.Equal(t, int64(0), retries[0].RetryCount)
	assert.Equal(t, newTime("2022-05-10T12:01:00Z"), retries[0].NextRetryAt)

	calls := ingestor.IngestMessageCalls()
	assert.Equal(t, 1, len(calls))
	assert.Equal(t, "MSG01", calls[0].Msg.ID)
	assert.Equal(t, model.MessageStatusReceived, calls[0].Msg.Status)
	assert.Equal(t, ingest.SourceWebhook, calls[0].Source)
}

func TestHandleDelivery_Validation_Error_Not_Retried(t *testing.T) {
	p := newProcessorTest()

	body := `{"id":"EV01","type":"message.received","data":{"object":{"id":"MSG01","direction":"incoming","from":"abc"}}}`
	_, err := p.deliver(body)
	assert.Equal(t, apperr.CodeMissingContact, apperr.CodeOf(err))
	assert.Equal(t, 0, p.store.Count("failed_retry"))
	assert.Equal(t, 0, p.store.Count("activity"))
}

func TestHandleDelivery_Summary_For_Missing_Call_Is_Retried(t *testing.T) {
	p := newProcessorTest()

	body := `{"id":"EV02","type":"call.summary.completed","data":{"object":{"callId":"CALL01","summary":["hi"]}}}`
	_, err := p.deliver(body)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	assert.Equal(t, 1, len(p.retries(t)))
}

func TestHandleDelivery_Call_Then_AI_Updates(t *testing.T) {
	p := newProcessorTest()

	_, err := p.deliver(`{"id":"EV01","type":"call.completed","data":{"object":{
		"id":"CALL01","direction":"incoming","participants":["+15550001111"],
		"answeredAt":"2022-05-10T11:00:00Z","completedAt":"2022-05-10T11:02:30Z",
		"createdAt":"2022-05-10T10:59:50Z"}}}`)
	assert.Equal(t, nil, err)

	_, err = p.deliver(`{"id":"EV02","type":"call.recording.completed","data":{"object":{
		"callId":"CALL01","media":[{"url":"https://cdn/rec.mp3","duration":150}]}}}`)
	assert.Equal(t, nil, err)

	_, err = p.deliver(`{"id":"EV03","type":"call.transcript.completed","data":{"object":{
		"callId":"CALL01","dialogue":[{"identifier":"+15550001111","content":"hello","start":0.5,"end":1.5}]}}}`)
	assert.Equal(t, nil, err)

	a, err := p.repos.Activity.GetActivityByExternalID(p.readonly(), "CALL01")
	assert.Equal(t, nil, err)
	assert.Equal(t, model.ActivityKindCall, a.Kind)
	assert.Equal(t, "completed", a.Status)
	assert.Equal(t, "https://cdn/rec.mp3", a.Metadata.RecordingURL)
	assert.Equal(t, int64(150), a.Metadata.DurationSeconds)
	assert.Equal(t, []model.TranscriptLine{
		{Speaker: "+15550001111", Content: "hello", Start: 0.5, End: 1.5},
	}, a.Metadata.Transcript)
}

func TestReplay_Marks_Event_Processed(t *testing.T) {
	fail := true
	ingestor := &IngestorMock{
		IngestMessageFunc: func(ctx context.Context, msg gateway.Message, source string) (ingest.Result, error) {
			if fail {
				return "", errors.New("timeout")
			}
			return ingest.ResultCreated, nil
		},
	}
	p := newProcessorTestWith(ingestor, nil)
	body := messageEvent("EV01", "MSG01", "hello")

	result, err := p.deliver(body)
	assert.Equal(t, errors.New("timeout"), err)

	fail = false
	err = p.processor.Replay(context.Background(), sql.NullInt64{Valid: true, Int64: result.EventID}, []byte(body))
	assert.Equal(t, nil, err)

	event := p.event(t, result.EventID)
	assert.Equal(t, true, event.Processed)
	assert.Equal(t, sql.NullString{}, event.ErrorMessage)
}

type racedActivityRepo struct {
	repository.Activity
}

func (r racedActivityRepo) GetActivityByExternalID(ctx context.Context, externalID string) (model.Activity, error) {
	return model.Activity{}, repository.ErrNotFound
}

func (r racedActivityRepo) InsertActivity(ctx context.Context, activity model.Activity) (int64, error) {
	return 0, repository.ErrDuplicate
}

func TestHandleDelivery_Concurrent_Insert_Is_Not_A_Failure(t *testing.T) {
	p := newProcessorTest()

	delivery := bounce.NewService(p.store, p.repos.Membership, p.repos.Activity)
	ingestor := ingest.NewService(p.repos.Contact, p.repos.Conversation, racedActivityRepo{Activity: p.repos.Activity},
		p.repos.Membership, delivery, p.timer, 72*time.Hour)
	p.processor = NewProcessor(p.store, p.repos.WebhookEvent, p.repos.FailedRetry, ingestor, nil, p.timer,
		testSecret, time.Minute)

	result, err := p.deliver(messageEvent("EV01", "MSG01", "hello"))
	assert.Equal(t, nil, err)
	assert.Equal(t, KindMessageReceived, result.Kind)

	event := p.event(t, result.EventID)
	assert.Equal(t, true, event.Processed)
	assert.Equal(t, false, event.ErrorMessage.Valid)

	assert.Equal(t, 0, len(p.retries(t)))
	assert.Equal(t, 0, p.store.Count("failed_retry"))
}

func TestHandleDelivery_Other_Message_And_Call_Subtypes(t *testing.T) {
	p := newProcessorTest()

	_, err := p.deliver(messageEvent("EV01", "MSG01", "hello"))
	assert.Equal(t, nil, err)

	result, err := p.deliver(`{"id":"EV02","type":"message.updated","data":{"object":{
		"id":"MSG01","direction":"incoming","status":"read"}}}`)
	assert.Equal(t, nil, err)
	assert.Equal(t, KindMessageOther, result.Kind)
	assert.Equal(t, true, p.event(t, result.EventID).Processed)

	a, err := p.repos.Activity.GetActivityByExternalID(p.readonly(), "MSG01")
	assert.Equal(t, nil, err)
	assert.Equal(t, "read", a.Status)

	result, err = p.deliver(`{"id":"EV03","type":"call.missed","data":{"object":{
		"id":"CALL01","direction":"incoming","status":"missed","participants":["+15550001111"]}}}`)
	assert.Equal(t, nil, err)
	assert.Equal(t, KindCallOther, result.Kind)

	call, err := p.repos.Activity.GetActivityByExternalID(p.readonly(), "CALL01")
	assert.Equal(t, nil, err)
	assert.Equal(t, model.ActivityKindCall, call.Kind)
	assert.Equal(t, "missed", call.Status)

	assert.Equal(t, 0, p.store.Count("failed_retry"))
}
