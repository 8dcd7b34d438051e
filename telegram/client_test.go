package telegram_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/smsrelay/telegram"
)

const okBody = `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":123,"type":"private"}}}`

type captured struct {
	path   string
	chatID string
	text   string
	mode   string
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *captured, *int32) {
	t.Helper()
	var calls int32
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got.path = r.URL.Path
		got.chatID = r.PostForm.Get("chat_id")
		got.text = r.PostForm.Get("text")
		got.mode = r.PostForm.Get("parse_mode")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got, &calls
}

func newClient(srv *httptest.Server) *telegram.Client {
	return telegram.NewClient(telegram.WithEndpoint(srv.URL + "/bot%s/%s"))
}

func TestSendNumericChat(t *testing.T) {
	srv, got, calls := newServer(t, http.StatusOK, okBody)

	if err := newClient(srv).Send(context.Background(), "TOKEN", "123", "<b>hi</b>"); err != nil {
		t.Fatal(err)
	}

	if n := atomic.LoadInt32(calls); n != 1 {
		t.Fatalf("expected exactly 1 call, got %d", n)
	}
	if got.path != "/botTOKEN/sendMessage" {
		t.Fatalf("path: got %q", got.path)
	}
	if got.chatID != "123" {
		t.Fatalf("chat_id: got %q", got.chatID)
	}
	if got.text != "<b>hi</b>" {
		t.Fatalf("text: got %q", got.text)
	}
	if got.mode != "HTML" {
		t.Fatalf("parse_mode: got %q", got.mode)
	}
}

func TestSendChannelUsername(t *testing.T) {
	srv, got, _ := newServer(t, http.StatusOK, okBody)

	if err := newClient(srv).Send(context.Background(), "TOKEN", "@alerts", "hello"); err != nil {
		t.Fatal(err)
	}
	if got.chatID != "@alerts" {
		t.Fatalf("chat_id: got %q", got.chatID)
	}
}

func TestSendAPIError(t *testing.T) {
	srv, _, calls := newServer(t, http.StatusUnauthorized,
		`{"ok":false,"error_code":401,"description":"Unauthorized"}`)

	err := newClient(srv).Send(context.Background(), "bad", "123", "hello")
	if err == nil {
		t.Fatal("expected error")
	}

	var sendErr *telegram.SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected *SendError, got %T", err)
	}
	if sendErr.Code != 401 {
		t.Fatalf("code: got %d, want 401", sendErr.Code)
	}
	if !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("expected upstream description in %q", err.Error())
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Fatalf("failed send must not retry, got %d calls", n)
	}
}

func TestSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := telegram.NewClient(telegram.WithEndpoint(url + "/bot%s/%s"))
	err := c.Send(context.Background(), "TOKEN", "123", "hello")

	var sendErr *telegram.SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected *SendError, got %v", err)
	}
	if sendErr.Code != 0 {
		t.Fatalf("transport failure should carry no code, got %d", sendErr.Code)
	}
}

func TestSendTransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	const token = "STORED-SECRET-TOKEN"
	c := telegram.NewClient(telegram.WithEndpoint(url + "/bot%s/%s"))
	err := c.Send(context.Background(), token, "123", "hello")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), token) {
		t.Fatalf("error text leaks bot token: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "sendMessage") {
		t.Fatalf("expected method name in %q", err.Error())
	}
}

func TestSendAPIErrorHidesToken(t *testing.T) {
	const token = "ECHOED-TOKEN"
	srv, _, _ := newServer(t, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"bad token ECHOED-TOKEN"}`)

	err := newClient(srv).Send(context.Background(), token, "123", "hello")
	if err == nil {
		t.Fatal("expected API error")
	}
	if strings.Contains(err.Error(), token) {
		t.Fatalf("error text leaks bot token: %q", err.Error())
	}
}

func TestSendHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := newClient(srv).Send(ctx, "TOKEN", "123", "hello")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
