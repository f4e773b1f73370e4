package webhook

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/smsflow/smsflow/pkg/apperr"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(p *processorTest) http.Handler {
	r := chi.NewRouter()
	NewHandler(p.processor, "").Register(r)
	return r
}

func postWebhook(router http.Handler, body string, signature string) (*httptest.ResponseRecorder, Response) {
	req := httptest.NewRequest(http.MethodPost, Path, bytes.NewBufferString(body))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestServeWebhook_Success(t *testing.T) {
	p := newProcessorTest()
	router := newTestRouter(p)

	body := messageEvent("EV01", "MSG01", "hello")
	w, resp := postWebhook(router, body, Sign(testSecret, []byte(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, true, resp.Success)
	assert.Equal(t, "processed", resp.Message)
	assert.Equal(t, 1, p.store.Count("activity"))
}

func TestServeWebhook_Status_Codes(t *testing.T) {
	table := []struct {
		name   string
		body   string
		sign   bool
		status int
		code   apperr.Code
	}{
		{
			name:   "missing-signature",
			body:   messageEvent("EV01", "MSG01", "hello"),
			status: http.StatusUnauthorized,
			code:   apperr.CodeMissingSignature,
		},
		{
			name:   "unknown-type",
			body:   `{"id":"EV01","type":"something.unsupported"}`,
			sign:   true,
			status: http.StatusBadRequest,
			code:   apperr.CodeUnknownEventType,
		},
		{
			name:   "missing-call",
			body:   `{"id":"EV01","type":"call.summary.completed","data":{"object":{"callId":"CALL09"}}}`,
			sign:   true,
			status: http.StatusNotFound,
			code:   apperr.CodeNotFound,
		},
		{
			name:   "invalid-payload",
			body:   `{"id":"EV01","type":"message.received","data":{}}`,
			sign:   true,
			status: http.StatusBadRequest,
			code:   apperr.CodeInvalidPayload,
		},
	}

	for _, e := range table {
		tc := e
		t.Run(tc.name, func(t *testing.T) {
			p := newProcessorTest()
			router := newTestRouter(p)

			signature := ""
			if tc.sign {
				signature = Sign(testSecret, []byte(tc.body))
			}
			w, resp := postWebhook(router, tc.body, signature)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, false, resp.Success)
			assert.Equal(t, tc.code, resp.ErrorCode)
		})
	}
}

func TestServeWebhook_Wrong_Method(t *testing.T) {
	p := newProcessorTest()
	router := newTestRouter(p)

	req := httptest.NewRequest(http.MethodGet, Path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
