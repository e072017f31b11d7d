package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/alanyoungcy/depthbot/internal/domain"
	"github.com/alanyoungcy/depthbot/internal/service"
)

// Replies sent outside of reports.
const (
	msgNotAllowed     = "Action not allowed"
	msgAskSymbol      = "Enter Binance spot token"
	msgCancelled      = "Cancelled. Enter /start to check order book"
	msgSessionExpired = "Session expired. Enter /start to check order book"
	msgUnknown        = "Unable to handle the message. Type /help to see the usage."
	msgPlainText      = "Send me plain text."
	msgHelp           = "/start - check an order book\n/help - show this message\n/cancel - abort the current request"
)

// DefaultDepthOptions are the depth buttons offered after a valid symbol.
var DefaultDepthOptions = []string{"3", "5", "8", "10", "15"}

// API is the subset of the Bot API the bot uses.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	SendMessage(ctx context.Context, msg SendMessageRequest) error
	AnswerCallbackQuery(ctx context.Context, id, text string) error
}

// Analyzer answers depth queries.
type Analyzer interface {
	Analyze(ctx context.Context, rawSymbol, rawDepth string) (domain.Report, error)
	ValidateSymbol(ctx context.Context, raw string) (domain.Symbol, error)
}

var (
	_ API      = (*Client)(nil)
	_ Analyzer = (*service.DepthService)(nil)
)

// Config controls the bot's polling and dialogue.
type Config struct {
	// AllowedUsers holds chat or user IDs permitted to use the bot.
	AllowedUsers   []int64
	DepthOptions   []string
	PollTimeout    time.Duration
	MaxConcurrent  int
	RequestTimeout time.Duration
	SessionIdle    time.Duration
	TopN           int
}

// Bot runs the long-poll loop and the per-chat dialogue.
type Bot struct {
	api      API
	analyzer Analyzer
	cfg      Config
	allowed  map[int64]struct{}
	sessions *sessions
	logger   *slog.Logger
	now      func() time.Time
}

// NewBot creates a Bot. Zero config values fall back to defaults.
func NewBot(api API, analyzer Analyzer, cfg Config, logger *slog.Logger) *Bot {
	if len(cfg.DepthOptions) == 0 {
		cfg.DepthOptions = DefaultDepthOptions
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.SessionIdle <= 0 {
		cfg.SessionIdle = time.Hour
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}

	allowed := make(map[int64]struct{}, len(cfg.AllowedUsers))
	for _, id := range cfg.AllowedUsers {
		allowed[id] = struct{}{}
	}

	return &Bot{
		api:      api,
		analyzer: analyzer,
		cfg:      cfg,
		allowed:  allowed,
		sessions: newSessions(cfg.SessionIdle),
		logger:   logger.With(slog.String("component", "telegram_bot")),
		now:      time.Now,
	}
}

// Run polls for updates until ctx is cancelled. Updates are handled
// concurrently, bounded by MaxConcurrent; Run waits for in-flight handlers
// before returning.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.InfoContext(ctx, "telegram: bot started",
		slog.Int("allowed_users", len(b.allowed)),
		slog.Int("max_concurrent", b.cfg.MaxConcurrent),
	)

	sem := make(chan struct{}, b.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	defer wg.Wait()

	retry := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: true}
	pruneTicker := time.NewTicker(b.cfg.SessionIdle)
	defer pruneTicker.Stop()

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pruneTicker.C:
			if n := b.sessions.prune(); n > 0 {
				b.logger.DebugContext(ctx, "telegram: pruned idle sessions", slog.Int("count", n))
			}
		default:
		}

		updates, err := b.api.GetUpdates(ctx, offset, b.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := retry.Duration()
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > wait {
				wait = apiErr.RetryAfter
			}
			b.logger.WarnContext(ctx, "telegram: get updates failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", wait),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			wg.Add(1)
			go func(u Update) {
				defer wg.Done()
				defer func() { <-sem }()
				b.HandleUpdate(ctx, u)
			}(u)
		}
	}
}

// HandleUpdate dispatches a single update.
func (b *Bot) HandleUpdate(ctx context.Context, u Update) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()

	switch {
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	}
}

func (b *Bot) authorized(chatID int64, from *User) bool {
	if _, ok := b.allowed[chatID]; ok {
		return true
	}
	if from != nil {
		_, ok := b.allowed[from.ID]
		return ok
	}
	return false
}

func (b *Bot) handleMessage(ctx context.Context, m *Message) {
	chatID := m.Chat.ID
	if !b.authorized(chatID, m.From) {
		b.logger.WarnContext(ctx, "telegram: unauthorised message", slog.Int64("chat_id", chatID))
		b.reply(ctx, chatID, msgNotAllowed)
		return
	}

	text := strings.TrimSpace(m.Text)
	if text == "" {
		b.reply(ctx, chatID, msgPlainText)
		return
	}

	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, chatID, text)
		return
	}

	sess := b.sessions.get(chatID)
	switch sess.stage {
	case stageStart:
		b.start(ctx, chatID)
	case stageAwaitSymbol:
		b.receiveSymbol(ctx, chatID, text)
	case stageAwaitDepth:
		// A typed number is a custom depth.
		b.analyze(ctx, chatID, sess.symbol, text)
	}
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, text string) {
	cmd := strings.Fields(text)[0]
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}

	switch strings.ToLower(cmd) {
	case "/start":
		b.start(ctx, chatID)
	case "/help":
		b.reply(ctx, chatID, msgHelp)
	case "/cancel":
		b.sessions.reset(chatID)
		b.reply(ctx, chatID, msgCancelled)
	default:
		b.reply(ctx, chatID, msgUnknown)
	}
}

func (b *Bot) start(ctx context.Context, chatID int64) {
	b.sessions.set(chatID, stageAwaitSymbol, "")
	b.reply(ctx, chatID, msgAskSymbol)
}

func (b *Bot) receiveSymbol(ctx context.Context, chatID int64, text string) {
	sym, err := b.analyzer.ValidateSymbol(ctx, text)
	if err != nil {
		b.reply(ctx, chatID, failureText(err))
		return
	}

	b.sessions.set(chatID, stageAwaitDepth, sym)
	b.send(ctx, SendMessageRequest{
		ChatID:      chatID,
		Text:        fmt.Sprintf("%s ✅\nChoose depth", sym),
		ReplyMarkup: b.depthKeyboard(),
	})
}

func (b *Bot) handleCallback(ctx context.Context, q *CallbackQuery) {
	if err := b.api.AnswerCallbackQuery(ctx, q.ID, ""); err != nil {
		b.logger.WarnContext(ctx, "telegram: answer callback failed", slog.String("error", err.Error()))
	}

	chatID := q.From.ID
	if q.Message != nil {
		chatID = q.Message.Chat.ID
	}
	if !b.authorized(chatID, &q.From) {
		b.reply(ctx, chatID, msgNotAllowed)
		return
	}

	sess := b.sessions.get(chatID)
	if sess.stage != stageAwaitDepth {
		b.reply(ctx, chatID, msgSessionExpired)
		return
	}
	b.analyze(ctx, chatID, sess.symbol, q.Data)
}

func (b *Bot) analyze(ctx context.Context, chatID int64, symbol domain.Symbol, rawDepth string) {
	rep, err := b.analyzer.Analyze(ctx, symbol.String(), rawDepth)
	if err != nil {
		var ue *service.UserError
		if errors.As(err, &ue) && ue.Code == service.CodeInvalidDepth {
			// Stay on the depth question.
			b.reply(ctx, chatID, failureText(err))
			return
		}
		b.sessions.set(chatID, stageAwaitSymbol, "")
		b.reply(ctx, chatID, failureText(err))
		return
	}

	b.sessions.set(chatID, stageAwaitSymbol, "")
	b.send(ctx, SendMessageRequest{
		ChatID:    chatID,
		Text:      FormatReport(rep, b.cfg.TopN, b.now()),
		ParseMode: ParseModeMarkdownV2,
	})
}

func (b *Bot) depthKeyboard() *InlineKeyboardMarkup {
	row := make([]InlineKeyboardButton, 0, len(b.cfg.DepthOptions))
	for _, opt := range b.cfg.DepthOptions {
		label := strings.TrimSuffix(opt, "%") + "%"
		row = append(row, InlineKeyboardButton{Text: label, CallbackData: label})
	}
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{row}}
}

// failureText renders an orchestrator error for the user.
func failureText(err error) string {
	var ue *service.UserError
	if !errors.As(err, &ue) {
		return "Something went wrong. Try again later"
	}
	if ue.Input() {
		return fmt.Sprintf("Try again. %s ❌", ue.Message)
	}
	return ue.Message
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.send(ctx, SendMessageRequest{ChatID: chatID, Text: text})
}

func (b *Bot) send(ctx context.Context, msg SendMessageRequest) {
	if err := b.api.SendMessage(ctx, msg); err != nil {
		b.logger.ErrorContext(ctx, "telegram: send message failed",
			slog.Int64("chat_id", msg.ChatID),
			slog.String("error", err.Error()),
		)
	}
}
