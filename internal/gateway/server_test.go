package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/history"
	"chat-gateway/internal/llm"
)

const (
	testOrigin = "http://localhost:3000"
	testPrompt = "You're a Turkish speaking assistant! Please write your responses in Turkish."
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubClient struct {
	content string
	err     error
	calls   int
}

func (s *stubClient) Generate(_ context.Context, _ []llm.Message) (llm.Response, error) {
	s.calls++
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Content: s.content, Model: "gemma2:2b"}, nil
}

type fixture struct {
	srv    *Server
	store  *history.Store
	client *stubClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := history.NewStore(filepath.Join(t.TempDir(), "message_history.json"), testPrompt)
	require.NoError(t, err)
	client := &stubClient{content: "Merhaba! Size nasıl yardımcı olabilirim?"}
	svc := chat.NewService(store, client, nil, "gemma2:2b")
	return &fixture{
		srv:    New(svc, Options{Addr: ":3000", CORSOrigin: testOrigin}),
		store:  store,
		client: client,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeHistory(t *testing.T, rr *httptest.ResponseRecorder) []llm.Message {
	t.Helper()
	var msgs []llm.Message
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msgs))
	return msgs
}

func TestHistoryDefault(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/message-history", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"role":"system","content":"`+testPrompt+`"}]`, rr.Body.String())
}

func TestGenerateThenHistory(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/generate", `{"prompt":"hello"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"message":"Merhaba! Size nasıl yardımcı olabilirim?"}`, rr.Body.String())

	rr = f.do(t, http.MethodGet, "/message-history", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	msgs := decodeHistory(t, rr)
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "hello"}, msgs[1])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: f.client.content}, msgs[2])

	// what the API returns is what is on disk
	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.JSONEq(t, string(data), rr.Body.String())
}

func TestGenerateTwiceAppendsInOrder(t *testing.T) {
	f := newFixture(t)

	for _, p := range []string{"first", "second"} {
		rr := f.do(t, http.MethodPost, "/generate", fmt.Sprintf(`{"prompt":%q}`, p), nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	msgs := decodeHistory(t, f.do(t, http.MethodGet, "/message-history", "", nil))
	require.Len(t, msgs, 5)
	assert.Equal(t, "first", msgs[1].Content)
	assert.Equal(t, "second", msgs[3].Content)
}

func TestHistoryReadsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/generate", `{"prompt":"hi"}`, nil).Code)

	a := f.do(t, http.MethodGet, "/message-history", "", nil)
	b := f.do(t, http.MethodGet, "/message-history", "", nil)
	assert.Equal(t, a.Body.String(), b.Body.String())
}

func TestGenerateInferenceUnavailable(t *testing.T) {
	f := newFixture(t)
	f.client.err = fmt.Errorf("%w: dial tcp 127.0.0.1:11434: connection refused", llm.ErrInferenceUnavailable)

	rr := f.do(t, http.MethodPost, "/generate", `{"prompt":"hello"}`, nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), `"error"`)

	msgs := decodeHistory(t, f.do(t, http.MethodGet, "/message-history", "", nil))
	assert.Len(t, msgs, 1, "failed generate must not persist the prompt")
}

func TestMalformedStoreIsServerError(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.store.Path(), []byte("not json"), 0o644))

	rr := f.do(t, http.MethodGet, "/message-history", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = f.do(t, http.MethodPost, "/generate", `{"prompt":"hello"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Zero(t, f.client.calls)
}

func TestGenerateValidation(t *testing.T) {
	cases := map[string]string{
		"invalid json":   `{"prompt":`,
		"missing prompt": `{}`,
		"number prompt":  `{"prompt":42}`,
		"null prompt":    `{"prompt":null}`,
		"blank prompt":   `{"prompt":"   "}`,
		"array body":     `["hello"]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			rr := f.do(t, http.MethodPost, "/generate", body, nil)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Zero(t, f.client.calls)
		})
	}

	t.Run("empty body", func(t *testing.T) {
		f := newFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/generate", http.NoBody)
		rr := httptest.NewRecorder()
		f.srv.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCORSHeadersOnResponses(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/message-history", "", map[string]string{"Origin": testOrigin})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	expose := rr.Header().Get("Access-Control-Expose-Headers")
	assert.Contains(t, expose, "Content-Length")
	assert.Contains(t, expose, "X-Kuma-Revision")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodOptions, "/generate", "", map[string]string{
		"Origin":                         testOrigin,
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "Content-Type",
	})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, testOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", rr.Header().Get("Access-Control-Max-Age"))
	methods := rr.Header().Get("Access-Control-Allow-Methods")
	for _, m := range []string{"POST", "GET", "OPTIONS"} {
		assert.Contains(t, methods, m)
	}
	headers := rr.Header().Get("Access-Control-Allow-Headers")
	assert.Contains(t, headers, "Content-Type")
	assert.Contains(t, headers, "Authorization")
}

func TestCORSHeadersWithoutOrigin(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/message-history", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Content-Length,X-Kuma-Revision", rr.Header().Get("Access-Control-Expose-Headers"))

	rr = f.do(t, http.MethodPost, "/generate", `{"prompt":"hi"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSOtherOriginGetsFixedPolicy(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/message-history", "", map[string]string{"Origin": "http://evil.example"})
	assert.Equal(t, http.StatusOK, rr.Code)
	// the configured origin, never the caller's
	assert.Equal(t, testOrigin, rr.Header().Get("Access-Control-Allow-Origin"))

	rr = f.do(t, http.MethodOptions, "/generate", "", map[string]string{
		"Origin":                        "http://evil.example",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, testOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", rr.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "POST,GET,OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Zero(t, f.client.calls)
}

func TestHTTPServerUsesConfiguredAddr(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, ":3000", f.srv.httpServer().Addr)
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/message-history", "", map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))

	rr = f.do(t, http.MethodGet, "/message-history", "", nil)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(chat.ErrInvalidPrompt))
	assert.Equal(t, http.StatusBadGateway, statusFor(fmt.Errorf("wrap: %w", llm.ErrInferenceUnavailable)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("wrap: %w", history.ErrMalformedStore)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(os.ErrPermission))
}
