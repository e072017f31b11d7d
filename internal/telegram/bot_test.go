package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/depthbot/internal/domain"
	"github.com/alanyoungcy/depthbot/internal/service"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []SendMessageRequest
	answered []string
	updates  chan []Update
}

func (f *fakeAPI) GetUpdates(ctx context.Context, _ int64, _ time.Duration) ([]Update, error) {
	select {
	case u := <-f.updates:
		return u, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeAPI) SendMessage(_ context.Context, msg SendMessageRequest) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, id, _ string) error {
	f.mu.Lock()
	f.answered = append(f.answered, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) last(t *testing.T) SendMessageRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no message sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeAnalyzer struct {
	mu        sync.Mutex
	analyzed  []string
	analyzeFn func(symbol, depth string) (domain.Report, error)
}

func (f *fakeAnalyzer) Analyze(_ context.Context, symbol, depth string) (domain.Report, error) {
	f.mu.Lock()
	f.analyzed = append(f.analyzed, symbol+"@"+depth)
	f.mu.Unlock()
	if f.analyzeFn != nil {
		return f.analyzeFn(symbol, depth)
	}
	rep := sampleReport()
	rep.Result.Symbol = domain.Symbol(symbol)
	return rep, nil
}

func (f *fakeAnalyzer) ValidateSymbol(_ context.Context, raw string) (domain.Symbol, error) {
	switch strings.ToUpper(raw) {
	case "SOL":
		return "SOL", nil
	case "ETH":
		return "", &service.UserError{Code: service.CodeUnsupportedAsset, Message: "This asset is not supported. Pick another coin.", Err: domain.ErrUnsupportedAsset}
	default:
		return "", &service.UserError{Code: service.CodeNotTradable, Message: "No active USDT market for this coin on Binance.", Err: domain.ErrNotTradable}
	}
}

const (
	allowedChat = int64(42)
	strangerID  = int64(7)
)

func newTestBot() (*Bot, *fakeAPI, *fakeAnalyzer) {
	api := &fakeAPI{updates: make(chan []Update, 4)}
	an := &fakeAnalyzer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := NewBot(api, an, Config{AllowedUsers: []int64{allowedChat}}, logger)
	return b, api, an
}

func text(chatID int64, s string) Update {
	return Update{Message: &Message{Chat: Chat{ID: chatID}, From: &User{ID: chatID}, Text: s}}
}

func press(chatID int64, data string) Update {
	return Update{CallbackQuery: &CallbackQuery{
		ID:      "cb1",
		From:    User{ID: chatID},
		Message: &Message{Chat: Chat{ID: chatID}},
		Data:    data,
	}}
}

func TestDialogueHappyPath(t *testing.T) {
	b, api, an := newTestBot()
	ctx := context.Background()

	b.HandleUpdate(ctx, text(allowedChat, "/start"))
	if got := api.last(t).Text; got != msgAskSymbol {
		t.Fatalf("after /start: %q", got)
	}

	b.HandleUpdate(ctx, text(allowedChat, "sol"))
	msg := api.last(t)
	if msg.Text != "SOL ✅\nChoose depth" {
		t.Fatalf("after symbol: %q", msg.Text)
	}
	if msg.ReplyMarkup == nil || len(msg.ReplyMarkup.InlineKeyboard[0]) != 5 {
		t.Fatalf("keyboard = %+v", msg.ReplyMarkup)
	}
	if btn := msg.ReplyMarkup.InlineKeyboard[0][2]; btn.Text != "8%" || btn.CallbackData != "8%" {
		t.Errorf("third button = %+v", btn)
	}

	b.HandleUpdate(ctx, press(allowedChat, "8%"))
	msg = api.last(t)
	if msg.ParseMode != ParseModeMarkdownV2 || !strings.Contains(msg.Text, "*SOLUSDT*") {
		t.Fatalf("report = %+v", msg)
	}
	if len(an.analyzed) != 1 || an.analyzed[0] != "SOL@8%" {
		t.Errorf("analyzed = %v", an.analyzed)
	}
	if len(api.answered) != 1 {
		t.Errorf("callback not answered")
	}

	// Back to awaiting a symbol.
	b.HandleUpdate(ctx, text(allowedChat, "eth"))
	if got := api.last(t).Text; !strings.HasPrefix(got, "Try again. ") || !strings.HasSuffix(got, "❌") {
		t.Errorf("unsupported asset reply = %q", got)
	}
}

func TestUnauthorisedUser(t *testing.T) {
	b, api, an := newTestBot()
	ctx := context.Background()

	b.HandleUpdate(ctx, text(strangerID, "/start"))
	if got := api.last(t).Text; got != msgNotAllowed {
		t.Errorf("reply = %q", got)
	}
	b.HandleUpdate(ctx, press(strangerID, "5%"))
	if got := api.last(t).Text; got != msgNotAllowed {
		t.Errorf("callback reply = %q", got)
	}
	if len(an.analyzed) != 0 {
		t.Error("unauthorised user reached the analyzer")
	}
}

func TestCallbackWithoutSession(t *testing.T) {
	b, api, _ := newTestBot()
	b.HandleUpdate(context.Background(), press(allowedChat, "5%"))
	if got := api.last(t).Text; got != msgSessionExpired {
		t.Errorf("reply = %q", got)
	}
}

func TestCancelResetsDialogue(t *testing.T) {
	b, api, _ := newTestBot()
	ctx := context.Background()

	b.HandleUpdate(ctx, text(allowedChat, "/start"))
	b.HandleUpdate(ctx, text(allowedChat, "sol"))
	b.HandleUpdate(ctx, text(allowedChat, "/cancel@depth_bot"))
	if got := api.last(t).Text; got != msgCancelled {
		t.Fatalf("reply = %q", got)
	}
	b.HandleUpdate(ctx, press(allowedChat, "5%"))
	if got := api.last(t).Text; got != msgSessionExpired {
		t.Errorf("callback after cancel = %q", got)
	}
}

func TestTypedDepthAndFailures(t *testing.T) {
	b, api, an := newTestBot()
	ctx := context.Background()

	an.analyzeFn = func(_, depth string) (domain.Report, error) {
		if depth == "0" {
			return domain.Report{}, &service.UserError{Code: service.CodeInvalidDepth, Message: "Depth must be a percentage greater than 0, e.g. 5.", Err: domain.ErrInvalidDepth}
		}
		return domain.Report{}, &service.UserError{Code: service.CodeRateLimited, Message: "The exchange is throttling requests. Try again in a minute.", Err: domain.ErrRateLimited}
	}

	b.HandleUpdate(ctx, text(allowedChat, "/start"))
	b.HandleUpdate(ctx, text(allowedChat, "SOL"))

	b.HandleUpdate(ctx, text(allowedChat, "0"))
	if got := api.last(t).Text; !strings.HasPrefix(got, "Try again. Depth") {
		t.Fatalf("invalid depth reply = %q", got)
	}
	if st := b.sessions.get(allowedChat).stage; st != stageAwaitDepth {
		t.Fatalf("stage after invalid depth = %s", st)
	}

	b.HandleUpdate(ctx, press(allowedChat, "5%"))
	if got := api.last(t).Text; got != "The exchange is throttling requests. Try again in a minute." {
		t.Errorf("rate limit reply = %q", got)
	}
	if st := b.sessions.get(allowedChat).stage; st != stageAwaitSymbol {
		t.Errorf("stage after failure = %s", st)
	}
}

func TestFailureTextForUnknownError(t *testing.T) {
	if got := failureText(errors.New("boom")); got != "Something went wrong. Try again later" {
		t.Errorf("failureText = %q", got)
	}
}

func TestSessionsExpire(t *testing.T) {
	s := newSessions(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.set(1, stageAwaitDepth, "SOL")
	s.set(2, stageAwaitSymbol, "")
	now = now.Add(2 * time.Minute)
	s.set(3, stageAwaitSymbol, "")

	if got := s.get(1); got.stage != stageStart {
		t.Errorf("idle session stage = %s", got.stage)
	}
	if n := s.prune(); n != 1 {
		t.Errorf("prune removed %d, want 1", n)
	}
	if got := s.get(3); got.stage != stageAwaitSymbol {
		t.Errorf("fresh session stage = %s", got.stage)
	}
}

func TestRunProcessesUpdatesAndStops(t *testing.T) {
	b, api, _ := newTestBot()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- []Update{
		{UpdateID: 10, Message: &Message{Chat: Chat{ID: allowedChat}, Text: "/help"}},
		{UpdateID: 11, Message: &Message{Chat: Chat{ID: strangerID}, Text: "hi"}},
	}

	deadline := time.After(2 * time.Second)
	for api.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d messages sent", api.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}
}
