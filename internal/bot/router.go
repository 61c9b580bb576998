package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"coursepay-bot-backend/internal/common/logger"
	"coursepay-bot-backend/internal/features/catalog"
	paymentsvc "coursepay-bot-backend/internal/features/payment/service"
	"coursepay-bot-backend/internal/features/stats"
	usersvc "coursepay-bot-backend/internal/features/user/service"
	"coursepay-bot-backend/internal/platform/telegram"
)

// Transport is the Telegram client surface the bot consumes.
type Transport interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, p telegram.SendMessageParams) error
	EditMessageText(ctx context.Context, chatID, messageID int64, text, parseMode string, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// Bot is the conversational transport: it long-polls updates and dispatches
// them to the onboarding and purchase services.
type Bot struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	tg       Transport
	users    *usersvc.Service
	payments *paymentsvc.Service
	stats    *stats.Service
	catalog  *catalog.Catalog

	adminPassword string
	pollTimeout   time.Duration
	offset        int64
}

func New(tg Transport, users *usersvc.Service, payments *paymentsvc.Service, statsSvc *stats.Service, cat *catalog.Catalog, adminPassword string, pollTimeout time.Duration) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		ctx:           ctx,
		cancel:        cancel,
		tg:            tg,
		users:         users,
		payments:      payments,
		stats:         statsSvc,
		catalog:       cat,
		adminPassword: adminPassword,
		pollTimeout:   pollTimeout,
	}
}

// Start launches the long-poll loop.
func (b *Bot) Start() {
	logger.Info().Msg("Starting bot long-poll loop")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.ctx.Done():
				return
			default:
			}

			updates, err := b.tg.GetUpdates(b.ctx, b.offset, b.pollTimeout)
			if err != nil {
				if b.ctx.Err() != nil {
					return
				}
				logger.Error().Err(err).Msg("Failed to get updates")
				time.Sleep(3 * time.Second)
				continue
			}

			for _, update := range updates {
				if update.UpdateID >= b.offset {
					b.offset = update.UpdateID + 1
				}
				b.HandleUpdate(b.ctx, update)
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight update to finish.
func (b *Bot) Stop() {
	logger.Info().Msg("Stopping bot")
	b.cancel()
	b.wg.Wait()
	logger.Info().Msg("Bot stopped")
}

// HandleUpdate routes one update. A handler's failure is logged and never
// affects other users' sessions or the poll loop.
func (b *Bot) HandleUpdate(ctx context.Context, update telegram.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Interface("panic", rec).
				Int64("update_id", update.UpdateID).
				Msg("Panic while handling update")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil {
		return
	}

	if msg.Contact != nil {
		b.handleContact(ctx, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case text == "/start":
		b.handleStart(ctx, msg)
	case text == "/buy":
		b.handleBuy(ctx, msg)
	case strings.HasPrefix(text, "/stats"):
		b.handleStats(ctx, msg)
	case strings.HasPrefix(text, "/users"):
		b.handleUsers(ctx, msg)
	case text != "":
		b.handleText(ctx, msg)
	}
}

// commandArgs splits "/cmd arg1 arg2" into its arguments.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}
