package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smsflow/smsflow/config"
	"github.com/smsflow/smsflow/pkg/timer"
	"github.com/stretchr/testify/assert"
)

type clientTest struct {
	server *httptest.Server
	timer  *timer.Fake
	client *Client
	calls  int32
}

func newClientTest(handler func(w http.ResponseWriter, r *http.Request, call int)) *clientTest {
	c := &clientTest{
		timer: timer.NewFake(time.Date(2022, 5, 10, 10, 0, 0, 0, time.UTC)),
	}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := atomic.AddInt32(&c.calls, 1)
		handler(w, r, int(call))
	}))
	c.client = NewClient(config.GatewayConfig{
		BaseURL:        c.server.URL + "/v1/",
		APIKey:         "key-123",
		MaxAttempts:    3,
		BaseBackoff:    time.Second,
		MaxBackoff:     10 * time.Second,
		ConnectTimeout: time.Second,
		RequestTimeout: 5 * time.Second,
	}, WithTimer(c.timer))
	return c
}

func (c *clientTest) close() {
	c.server.Close()
}

func TestClient_ListMessages(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	var gotKey string

	c := newClientTest(func(w http.ResponseWriter, r *http.Request, _ int) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Authorization")
		gotQuery = map[string]string{
			"cursor":        r.URL.Query().Get("cursor"),
			"limit":         r.URL.Query().Get("limit"),
			"created_after": r.URL.Query().Get("created_after"),
		}
		_, _ = io.WriteString(w, `{
			"data": [{"id": "msg-1", "direction": "incoming", "from": "+15550001111", "text": "hi"}],
			"cursor": "c2"
		}`)
	})
	defer c.close()

	page, err := c.client.ListMessages(context.Background(), ListParams{
		Cursor:       "c1",
		Limit:        50,
		CreatedAfter: time.Date(2022, 5, 9, 10, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, nil, err)

	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "key-123", gotKey)
	assert.Equal(t, map[string]string{
		"cursor":        "c1",
		"limit":         "50",
		"created_after": "2022-05-09T10:00:00Z",
	}, gotQuery)

	assert.Equal(t, 1, len(page.Data))
	assert.Equal(t, "msg-1", page.Data[0].ID)
	assert.Equal(t, true, page.Data[0].IsInbound())
	assert.Equal(t, "hi", page.Data[0].Content())
	assert.Equal(t, "c2", *page.Cursor)
}

func TestClient_ListConversations_Null_Cursor(t *testing.T) {
	c := newClientTest(func(w http.ResponseWriter, r *http.Request, _ int) {
		_, _ = io.WriteString(w, `{"data": [{"id": "conv-1", "participants": ["+15550001111"]}], "cursor": null}`)
	})
	defer c.close()

	page, err := c.client.ListConversations(context.Background(), ListParams{})
	assert.Equal(t, nil, err)
	assert.Nil(t, page.Cursor)
	assert.Equal(t, []string{"+15550001111"}, page.Data[0].Participants)
}

func TestClient_SendMessage(t *testing.T) {
	var got SendRequest
	c := newClientTest(func(w http.ResponseWriter, r *http.Request, _ int) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"data": {"id": "msg-9", "status": "queued"}}`)
	})
	defer c.close()

	result, err := c.client.SendMessage(context.Background(), SendRequest{
		To:      []string{"+15550001111"},
		From:    "+15559990000",
		Content: "Hello Alice",
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, SendResult{ID: "msg-9", Status: "queued"}, result)
	assert.Equal(t, SendRequest{
		To:      []string{"+15550001111"},
		From:    "+15559990000",
		Content: "Hello Alice",
	}, got)
}

func TestClient_Retry_Server_Error_Then_Success(t *testing.T) {
	c := newClientTest(func(w http.ResponseWriter, r *http.Request, call int) {
		if call < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"data": [], "cursor": null}`)
	})
	defer c.close()

	_, err := c.client.ListMessages(context.Background(), ListParams{})
	assert.Equal(t, nil, err)
	assert.Equal(t, int32(3), c.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, c.timer.SleepCalls())
}

func TestClient_Retry_After_Header(t *testing.T) {
	c := newClientTest(func(w http.ResponseWriter, r *http.Request, call int) {
		if call == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"data": [], "cursor": null}`)
	})
	defer c.close()

	_, err := c.client.ListMessages(context.Background(), ListParams{})
	assert.Equal(t, nil, err)
	assert.Equal(t, []time.Duration{7 * time.Second}, c.timer.SleepCalls())
}

func TestClient_Retry_After_Capped(t *testing.T) {
	c := newClientTest(func(w http.ResponseWriter, r *http.Request, call int) {
		if call == 1 {
			w.Header().Set("Retry-After", "3600")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"data": [], "cursor": null}`)
	})
	defer c.close()

	_, err := c.client.ListMessages(context.Background(), ListParams{})
	assert.Equal(t, nil, err)
	assert.Equal(t, []time.Duration{10 * time.Second}, c.timer.SleepCalls())
}

func TestClient_Client_Error_Not_Retried(t *testing.T) {
	c := newClientTest(func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message": "invalid destination number"}`)
	})
	defer c.close()

	_, err := c.client.SendMessage(context.Background(), SendRequest{To: []string{"123"}})
	assert.Equal(t, &ProviderError{
		StatusCode: http.StatusBadRequest,
		Message:    "invalid destination number",
	}, err)
	assert.Equal(t, int32(1), c.calls)
	assert.Equal(t, "invalid destination number", ErrorText(err))
	assert.Equal(t, 0, len(c.timer.SleepCalls()))
}

func TestClient_Retries_Exhausted(t *testing.T) {
	c := newClientTest(func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `internal`)
	})
	defer c.close()

	_, err := c.client.ListMessages(context.Background(), ListParams{})

	var perr *ProviderError
	assert.Equal(t, true, errors.As(err, &perr))
	assert.Equal(t, http.StatusInternalServerError, perr.StatusCode)
	assert.Equal(t, "internal", perr.Message)
	assert.Equal(t, int32(3), c.calls)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2022, 5, 10, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, 5*time.Second, parseRetryAfter("5", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-1", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter("Tue, 10 May 2022 10:00:30 GMT", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Tue, 10 May 2022 09:00:00 GMT", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))
}
