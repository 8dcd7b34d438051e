package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/api"
	"github.com/xraph/smsrelay/observability"
	"github.com/xraph/smsrelay/store/memory"
)

const testKey = "secret-key"

type telegramCall struct {
	token, chatID, text, mode string
}

// fakeTelegram mimics the Bot API sendMessage method. Token "BAD" is rejected.
type fakeTelegram struct {
	mu    sync.Mutex
	calls []telegramCall
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	token := strings.TrimPrefix(strings.Split(r.URL.Path, "/")[1], "bot")

	f.mu.Lock()
	f.calls = append(f.calls, telegramCall{
		token:  token,
		chatID: r.PostForm.Get("chat_id"),
		text:   r.PostForm.Get("text"),
		mode:   r.PostForm.Get("parse_mode"),
	})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if token == "BAD" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
		return
	}
	_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`)
}

func (f *fakeTelegram) Calls() []telegramCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]telegramCall(nil), f.calls...)
}

type testEnv struct {
	srv   *httptest.Server
	tg    *fakeTelegram
	store *memory.Store
}

func newEnv(t *testing.T, mutate func(*api.Config), opts ...api.Option) *testEnv {
	t.Helper()

	tg := &fakeTelegram{}
	tgSrv := httptest.NewServer(tg)
	t.Cleanup(tgSrv.Close)

	s := memory.New()
	r, err := smsrelay.New(
		smsrelay.WithStore(s),
		smsrelay.WithTelegramEndpoint(tgSrv.URL+"/bot%s/%s"),
	)
	if err != nil {
		t.Fatal(err)
	}

	cfg := api.DefaultConfig()
	cfg.APIKey = testKey
	if mutate != nil {
		mutate(&cfg)
	}

	srv := httptest.NewServer(api.NewHandler(r, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...))
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, tg: tg, store: s}
}

func (e *testEnv) do(t *testing.T, method, path, key string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.srv.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-Api-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func (e *testEnv) deviceCount(t *testing.T) int {
	t.Helper()
	n, err := e.store.CountDevices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return n
}

type envelope struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	DeviceID string `json:"deviceId"`
	Created  bool   `json:"created"`
	Version  string `json:"version"`
}

func decodeBody(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var v envelope
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func expect(t *testing.T, resp *http.Response, status int, wantStatus, wantMessage string) envelope {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected %d, got %d", status, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body.Status != wantStatus {
		t.Fatalf("status field: got %q, want %q", body.Status, wantStatus)
	}
	if wantMessage != "" && body.Message != wantMessage {
		t.Fatalf("message: got %q, want %q", body.Message, wantMessage)
	}
	return body
}

// --- Public routes ---

func TestPing(t *testing.T) {
	e := newEnv(t, nil)
	expect(t, e.do(t, "GET", "/ping", "", nil), http.StatusOK, "success", "pong")
}

func TestRoot(t *testing.T) {
	e := newEnv(t, nil)
	body := expect(t, e.do(t, "GET", "/", "", nil), http.StatusOK, "success", "")
	if body.Version != smsrelay.Version {
		t.Fatalf("version: got %q, want %q", body.Version, smsrelay.Version)
	}
}

func TestNotFound(t *testing.T) {
	e := newEnv(t, nil)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/foo"},
		{"GET", "/api/sendToTelegram"},
		{"POST", "/ping"},
		{"DELETE", "/"},
		{"POST", "/api/unknown"},
	} {
		resp := e.do(t, tc.method, tc.path, testKey, nil)
		expect(t, resp, http.StatusNotFound, "error", "Route not found")
	}
}

func TestRequestIDHeader(t *testing.T) {
	e := newEnv(t, nil)

	resp := e.do(t, "GET", "/ping", "", nil)
	resp.Body.Close()
	if rid := resp.Header.Get("X-Request-Id"); !strings.HasPrefix(rid, "req_") {
		t.Fatalf("expected generated req_ ID, got %q", rid)
	}

	req, _ := http.NewRequest("GET", e.srv.URL+"/ping", nil)
	req.Header.Set("X-Request-Id", "caller-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if rid := resp.Header.Get("X-Request-Id"); rid != "caller-123" {
		t.Fatalf("expected caller ID to be kept, got %q", rid)
	}
}

// --- Access gate ---

func TestUnauthorized(t *testing.T) {
	e := newEnv(t, nil)

	bodies := map[string]any{
		"/api/sendToTelegram": map[string]any{"botToken": "T", "chatId": "1", "message": "m"},
		"/api/registerDevice": map[string]any{"deviceId": "d", "botToken": "T", "chatId": "1"},
		"/api/processSms":     map[string]any{"deviceId": "d", "sender": "s", "message": "m"},
	}
	for path, body := range bodies {
		for _, key := range []string{"", "wrong", testKey + "x"} {
			resp := e.do(t, "POST", path, key, body)
			expect(t, resp, http.StatusUnauthorized, "error", "Unauthorized: invalid or missing API key")
		}
	}

	if n := e.deviceCount(t); n != 0 {
		t.Fatalf("registry changed: %d devices", n)
	}
	if n := len(e.tg.Calls()); n != 0 {
		t.Fatalf("relay attempted %d times", n)
	}
}

func TestUnauthorizedBeforeValidation(t *testing.T) {
	e := newEnv(t, nil)
	resp := e.do(t, "POST", "/api/registerDevice", "", "{not json")
	expect(t, resp, http.StatusUnauthorized, "error", "")
}

// --- Validation ---

func TestMissingFields(t *testing.T) {
	e := newEnv(t, nil)

	resp := e.do(t, "POST", "/api/registerDevice", testKey, map[string]any{"deviceId": "dev1"})
	expect(t, resp, http.StatusBadRequest, "error", "Missing required fields: botToken, chatId")

	resp = e.do(t, "POST", "/api/sendToTelegram", testKey, map[string]any{"botToken": "T", "chatId": "", "message": ""})
	expect(t, resp, http.StatusBadRequest, "error", "Missing required fields: chatId, message")

	resp = e.do(t, "POST", "/api/processSms", testKey, nil)
	expect(t, resp, http.StatusBadRequest, "error", "Missing required fields: deviceId, sender, message")

	if n := e.deviceCount(t); n != 0 {
		t.Fatalf("registry changed: %d devices", n)
	}
	if n := len(e.tg.Calls()); n != 0 {
		t.Fatalf("relay attempted %d times", n)
	}
}

func TestInvalidJSON(t *testing.T) {
	e := newEnv(t, nil)
	resp := e.do(t, "POST", "/api/registerDevice", testKey, `{"deviceId": "dev1",`)
	expect(t, resp, http.StatusBadRequest, "error", "Invalid JSON body")
}

func TestBodyNotObject(t *testing.T) {
	e := newEnv(t, nil)
	resp := e.do(t, "POST", "/api/registerDevice", testKey, `[1, 2, 3]`)
	expect(t, resp, http.StatusBadRequest, "error", "Request body must be a JSON object")
}

func TestInvalidFieldType(t *testing.T) {
	e := newEnv(t, nil)
	resp := e.do(t, "POST", "/api/sendToTelegram", testKey, map[string]any{"botToken": "T", "chatId": true, "message": "m"})
	expect(t, resp, http.StatusBadRequest, "error", "Invalid value for fields: chatId")
}

func TestBodyTooLarge(t *testing.T) {
	e := newEnv(t, func(c *api.Config) { c.MaxBodyBytes = 64 })
	resp := e.do(t, "POST", "/api/sendToTelegram", testKey, map[string]any{
		"botToken": "T", "chatId": "1", "message": strings.Repeat("x", 200),
	})
	expect(t, resp, http.StatusBadRequest, "error", "Request body too large")
	if n := len(e.tg.Calls()); n != 0 {
		t.Fatalf("relay attempted %d times", n)
	}
}

// --- Registration ---

func TestRegisterTwice(t *testing.T) {
	e := newEnv(t, nil)

	resp := e.do(t, "POST", "/api/registerDevice", testKey, map[string]any{"deviceId": "dev1", "botToken": "T1", "chatId": "111"})
	body := expect(t, resp, http.StatusOK, "success", "")
	if body.DeviceID != "dev1" || !body.Created {
		t.Fatalf("first registration: %+v", body)
	}

	resp = e.do(t, "POST", "/api/registerDevice", testKey, map[string]any{"deviceId": "dev1", "botToken": "T2", "chatId": 222})
	body = expect(t, resp, http.StatusOK, "success", "")
	if body.Created {
		t.Fatal("second registration should update")
	}

	if n := e.deviceCount(t); n != 1 {
		t.Fatalf("expected 1 device, got %d", n)
	}
	dev, err := e.store.GetDevice(context.Background(), "dev1")
	if err != nil {
		t.Fatal(err)
	}
	if dev.BotToken != "T2" || dev.ChatID != "222" {
		t.Fatalf("expected second credentials, got %q/%q", dev.BotToken, dev.ChatID)
	}
}

// --- SMS processing ---

func TestProcessSmsEndToEnd(t *testing.T) {
	e := newEnv(t, nil)

	resp := e.do(t, "POST", "/api/registerDevice", testKey, map[string]any{"deviceId": "dev1", "botToken": "T", "chatId": "123"})
	expect(t, resp, http.StatusOK, "success", "")

	resp = e.do(t, "POST", "/api/processSms", testKey, map[string]any{"deviceId": "dev1", "sender": "+1555", "message": "hello"})
	expect(t, resp, http.StatusOK, "success", "")

	calls := e.tg.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 relay call, got %d", len(calls))
	}
	c := calls[0]
	if c.token != "T" || c.chatID != "123" {
		t.Fatalf("wrong routing %q/%q", c.token, c.chatID)
	}
	if !strings.Contains(c.text, "+1555") || !strings.Contains(c.text, "hello") {
		t.Fatalf("text missing sender or body: %q", c.text)
	}
	if c.mode != "HTML" {
		t.Fatalf("parse_mode: got %q", c.mode)
	}
}

func TestProcessSmsTimestampForms(t *testing.T) {
	e := newEnv(t, nil)
	e.do(t, "POST", "/api/registerDevice", testKey, map[string]any{"deviceId": "dev1", "botToken": "T", "chatId": "123"}).Body.Close()

	ms := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	for _, ts := range []any{ms, "1704067200000"} {
		resp := e.do(t, "POST", "/api/processSms", testKey, map[string]any{
			"deviceId": "dev1", "sender": "+1", "message": "m", "timestamp": ts,
		})
		expect(t, resp, http.StatusOK, "success", "")
	}

	for _, c := range e.tg.Calls() {
		if !strings.Contains(c.text, "1/1/2024, 12:00:00 AM") {
			t.Fatalf("unexpected timestamp rendering: %q", c.text)
		}
	}
}

func TestProcessSmsInvalidTimestamp(t *testing.T) {
	e := newEnv(t, nil)
	resp := e.do(t, "POST", "/api/processSms", testKey, map[string]any{
		"deviceId": "dev1", "sender": "+1", "message": "m", "timestamp": "yesterday",
	})
	expect(t, resp, http.StatusBadRequest, "error", "Invalid value for fields: timestamp")
}

func TestProcessSmsUnknownDevice(t *testing.T) {
	e := newEnv(t, nil)

	resp := e.do(t, "POST", "/api/processSms", testKey, map[string]any{"deviceId": "ghost", "sender": "+1", "message": "m"})
	expect(t, resp, http.StatusNotFound, "error", "")

	if n := len(e.tg.Calls()); n != 0 {
		t.Fatalf("relay attempted %d times", n)
	}
}

func TestProcessSmsTimestampOutOfRange(t *testing.T) {
	e := newEnv(t, nil)
	e.do(t, "POST", "/api/registerDevice", testKey, map[string]any{"deviceId": "dev1", "botToken": "T", "chatId": "123"}).Body.Close()

	for _, body := range []string{
		`{"deviceId":"dev1","sender":"+1","message":"m","timestamp":100000000000000000000}`,
		`{"deviceId":"dev1","sender":"+1","message":"m","timestamp":"100000000000000000000"}`,
		`{"deviceId":"dev1","sender":"+1","message":"m","timestamp":8640000000000001}`,
	} {
		resp := e.do(t, "POST", "/api/processSms", testKey, body)
		expect(t, resp, http.StatusBadRequest, "error", "Invalid value for fields: timestamp")
	}

	// Sixteen digits pass the pattern but exceed the largest valid instant.
	resp := e.do(t, "POST", "/api/processSms", testKey, `{"deviceId":"dev1","sender":"+1","message":"m","timestamp":"9999999999999999"}`)
	expect(t, resp, http.StatusBadRequest, "error", "")

	if n := len(e.tg.Calls()); n != 0 {
		t.Fatalf("relay attempted %d times", n)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRelayFailureHidesStoredToken(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	endpoint := down.URL + "/bot%s/%s"
	down.Close()

	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r, err := smsrelay.New(
		smsrelay.WithStore(memory.New()),
		smsrelay.WithLogger(logger),
		smsrelay.WithTelegramEndpoint(endpoint),
	)
	if err != nil {
		t.Fatal(err)
	}
	cfg := api.DefaultConfig()
	cfg.APIKey = testKey
	srv := httptest.NewServer(api.NewHandler(r, cfg, logger))
	defer srv.Close()

	const token = "STORED-SECRET-TOKEN"
	e := &testEnv{srv: srv}
	e.do(t, "POST", "/api/registerDevice", testKey, map[string]any{"deviceId": "dev1", "botToken": token, "chatId": "123"}).Body.Close()

	resp := e.do(t, "POST", "/api/processSms", testKey, map[string]any{"deviceId": "dev1", "sender": "+1", "message": "m"})
	body := expect(t, resp, http.StatusInternalServerError, "error", "")
	if !strings.HasPrefix(body.Message, "Failed to send message to Telegram: ") {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if strings.Contains(body.Message, token) {
		t.Fatalf("response leaks bot token: %q", body.Message)
	}
	if strings.Contains(logs.String(), token) {
		t.Fatalf("logs leak bot token:\n%s", logs.String())
	}
}

// --- Direct relay ---

func TestSendToTelegram(t *testing.T) {
	e := newEnv(t, nil)

	resp := e.do(t, "POST", "/api/sendToTelegram", testKey, map[string]any{"botToken": "T", "chatId": -100123, "message": "<b>hi</b>"})
	expect(t, resp, http.StatusOK, "success", "")

	calls := e.tg.Calls()
	if len(calls) != 1 || calls[0].chatID != "-100123" || calls[0].text != "<b>hi</b>" {
		t.Fatalf("unexpected calls %+v", calls)
	}
}

func TestSendToTelegramExponentChatID(t *testing.T) {
	e := newEnv(t, nil)

	resp := e.do(t, "POST", "/api/sendToTelegram", testKey, `{"botToken":"T","chatId":1e3,"message":"m"}`)
	expect(t, resp, http.StatusOK, "success", "")

	calls := e.tg.Calls()
	if len(calls) != 1 || calls[0].chatID != "1000" {
		t.Fatalf("unexpected calls %+v", calls)
	}
}

func TestSendToTelegramFractionalChatID(t *testing.T) {
	e := newEnv(t, nil)

	resp := e.do(t, "POST", "/api/sendToTelegram", testKey, `{"botToken":"T","chatId":12.5,"message":"m"}`)
	expect(t, resp, http.StatusBadRequest, "error", "")

	if n := len(e.tg.Calls()); n != 0 {
		t.Fatalf("relay attempted %d times", n)
	}
}

func TestSendToTelegramInvalidToken(t *testing.T) {
	e := newEnv(t, nil)

	resp := e.do(t, "POST", "/api/sendToTelegram", testKey, map[string]any{"botToken": "BAD", "chatId": "1", "message": "m"})
	body := expect(t, resp, http.StatusInternalServerError, "error", "")
	if !strings.HasPrefix(body.Message, "Failed to send message to Telegram: ") {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if !strings.Contains(body.Message, "Unauthorized") {
		t.Fatalf("expected upstream error text in %q", body.Message)
	}
	if n := e.deviceCount(t); n != 0 {
		t.Fatalf("registry changed: %d devices", n)
	}
}

// --- Rate limiting ---

func TestRateLimit(t *testing.T) {
	e := newEnv(t, func(c *api.Config) { c.RateLimitMax = 2 })

	body := map[string]any{"deviceId": "d", "botToken": "T", "chatId": "1"}
	for i := 0; i < 2; i++ {
		resp := e.do(t, "POST", "/api/registerDevice", testKey, body)
		if resp.Header.Get("RateLimit-Limit") != "2" {
			t.Fatalf("RateLimit-Limit: got %q", resp.Header.Get("RateLimit-Limit"))
		}
		expect(t, resp, http.StatusOK, "success", "")
	}

	// The limiter runs before the key gate.
	resp := e.do(t, "POST", "/api/registerDevice", "", body)
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if resp.Header.Get("RateLimit-Remaining") != "0" {
		t.Fatalf("RateLimit-Remaining: got %q", resp.Header.Get("RateLimit-Remaining"))
	}
	expect(t, resp, http.StatusTooManyRequests, "error", "Too many requests, please try again later.")

	// Non-API routes are not limited.
	expect(t, e.do(t, "GET", "/ping", "", nil), http.StatusOK, "success", "pong")
}

func TestRateLimitTrustProxy(t *testing.T) {
	e := newEnv(t, func(c *api.Config) {
		c.RateLimitMax = 1
		c.TrustProxy = true
	})

	post := func(xff string) int {
		req, _ := http.NewRequest("POST", e.srv.URL+"/api/registerDevice",
			strings.NewReader(`{"deviceId":"d","botToken":"T","chatId":"1"}`))
		req.Header.Set("X-Api-Key", testKey)
		req.Header.Set("X-Forwarded-For", xff)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := post("10.0.0.1"); got != http.StatusOK {
		t.Fatalf("first client: %d", got)
	}
	if got := post("10.0.0.1, 192.168.1.1"); got != http.StatusTooManyRequests {
		t.Fatalf("first client again: %d", got)
	}
	if got := post("10.0.0.2"); got != http.StatusOK {
		t.Fatalf("second client: %d", got)
	}
}

// --- Metrics ---

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newEnv(t, func(c *api.Config) { c.RateLimitMax = 1 }, api.WithMetrics(observability.NewMetrics(reg)))

	e.do(t, "GET", "/ping", "", nil).Body.Close()
	e.do(t, "GET", "/nope", "", nil).Body.Close()
	e.do(t, "POST", "/api/registerDevice", testKey, map[string]any{"deviceId": "d", "botToken": "T", "chatId": "1"}).Body.Close()
	e.do(t, "POST", "/api/registerDevice", testKey, map[string]any{"deviceId": "d", "botToken": "T", "chatId": "1"}).Body.Close()

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]float64{}
	var limited float64
	for _, f := range families {
		switch f.GetName() {
		case "smsrelay_http_requests_total":
			for _, m := range f.GetMetric() {
				var route, status string
				for _, lp := range m.GetLabel() {
					switch lp.GetName() {
					case "route":
						route = lp.GetValue()
					case "status":
						status = lp.GetValue()
					}
				}
				seen[route+" "+status] = m.GetCounter().GetValue()
			}
		case "smsrelay_rate_limited_total":
			limited = f.GetMetric()[0].GetCounter().GetValue()
		}
	}

	for key, want := range map[string]float64{
		"GET /ping 200":                1,
		"unmatched 404":                1,
		"POST /api/registerDevice 200": 1,
		"POST /api/registerDevice 429": 1,
	} {
		if seen[key] != want {
			t.Fatalf("%s: got %v, want %v (all: %v)", key, seen[key], want, seen)
		}
	}
	if limited != 1 {
		t.Fatalf("rate limited counter: got %v", limited)
	}
}

type panicSender struct{}

func (panicSender) Send(context.Context, string, string, string) error { panic("boom") }

func TestPanicRecovered(t *testing.T) {
	r, err := smsrelay.New(smsrelay.WithStore(memory.New()), smsrelay.WithSender(panicSender{}))
	if err != nil {
		t.Fatal(err)
	}
	cfg := api.DefaultConfig()
	cfg.APIKey = testKey
	srv := httptest.NewServer(api.NewHandler(r, cfg, slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer srv.Close()

	e := &testEnv{srv: srv}
	resp := e.do(t, "POST", "/api/sendToTelegram", testKey, map[string]any{"botToken": "T", "chatId": "1", "message": "m"})
	expect(t, resp, http.StatusInternalServerError, "error", "Internal server error")
}
