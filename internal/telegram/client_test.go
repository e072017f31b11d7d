package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientSendMessage(t *testing.T) {
	var got SendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":42,"type":"private"}}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "TOKEN", time.Second)
	err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 42, Text: "hi", ParseMode: ParseModeMarkdownV2})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got.ChatID != 42 || got.Text != "hi" || got.ParseMode != "MarkdownV2" {
		t.Errorf("payload = %+v", got)
	}
}

func TestClientGetUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req getUpdatesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Offset != 5 || req.Timeout != 30 {
			t.Errorf("request = %+v", req)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":[
			{"update_id":5,"message":{"message_id":1,"chat":{"id":42,"type":"private"},"text":"/start"}},
			{"update_id":6,"callback_query":{"id":"q","from":{"id":42,"is_bot":false,"first_name":"a"},"data":"5%"}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "TOKEN", 30*time.Second)
	updates, err := c.GetUpdates(context.Background(), 5, 30*time.Second)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 2 || updates[0].Message.Text != "/start" || updates[1].CallbackQuery.Data != "5%" {
		t.Errorf("updates = %+v", updates)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "TOKEN", time.Second)
	err := c.AnswerCallbackQuery(context.Background(), "q", "")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != 429 || apiErr.RetryAfter != 7*time.Second || !errors.Is(err, ErrAPI) {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestClientHidesTokenOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(base, "SECRET", time.Second)
	err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 1, Text: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "SECRET") {
		t.Errorf("error leaks token: %v", err)
	}
}
