package bot

import (
	"context"

	apperrors "coursepay-bot-backend/internal/common/errors"
	"coursepay-bot-backend/internal/common/logger"
	usermodels "coursepay-bot-backend/internal/features/user/models"
	"coursepay-bot-backend/internal/platform/telegram"
)

const maxMessageLength = 4000

func (b *Bot) handleStart(ctx context.Context, msg *telegram.Message) {
	user, err := b.users.Register(ctx, msg.From.ID, msg.From.Username)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Failed to register user")
		b.send(ctx, msg.Chat.ID, tryAgainText, "", nil)
		return
	}

	// Re-entering /start re-announces the welcome but never regresses a
	// user who already provided email or phone.
	state := user.OnboardingState()
	b.send(ctx, msg.Chat.ID, welcomeMessage+"\n"+promptForState(state), "Markdown", b.markupForState(state))
}

func (b *Bot) handleText(ctx context.Context, msg *telegram.Message) {
	user, err := b.users.Register(ctx, msg.From.ID, msg.From.Username)
	if err != nil {
		b.send(ctx, msg.Chat.ID, tryAgainText, "", nil)
		return
	}

	// Free text is only meaningful as an email candidate.
	if user.OnboardingState() != usermodels.StateNeedsEmail {
		b.send(ctx, msg.Chat.ID, unknownInputText, "", nil)
		return
	}

	updated, err := b.users.SubmitEmail(ctx, msg.From.ID, msg.Text)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.IsValidation() {
			b.send(ctx, msg.Chat.ID, emailInvalid, "", nil)
			return
		}
		logger.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Failed to save email")
		b.send(ctx, msg.Chat.ID, tryAgainText, "", nil)
		return
	}

	b.send(ctx, msg.Chat.ID, emailAcceptedText, "", b.markupForState(updated.OnboardingState()))
}

func (b *Bot) handleContact(ctx context.Context, msg *telegram.Message) {
	user, err := b.users.Register(ctx, msg.From.ID, msg.From.Username)
	if err != nil {
		b.send(ctx, msg.Chat.ID, tryAgainText, "", nil)
		return
	}
	if user.OnboardingState() == usermodels.StateNeedsEmail {
		b.send(ctx, msg.Chat.ID, contactTooEarly, "", nil)
		return
	}

	_, err = b.users.SubmitContact(ctx, msg.From.ID, msg.Contact.UserID, msg.Contact.PhoneNumber)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.IsValidation() {
			b.send(ctx, msg.Chat.ID, contactNotOwnText, "", nil)
			return
		}
		logger.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Failed to save phone")
		b.send(ctx, msg.Chat.ID, tryAgainText, "", nil)
		return
	}

	b.send(ctx, msg.Chat.ID, readyText, "", telegram.ReplyKeyboardRemove{RemoveKeyboard: true})
}

func (b *Bot) handleBuy(ctx context.Context, msg *telegram.Message) {
	user, err := b.users.Eligibility(ctx, msg.From.ID)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok {
			switch appErr.Code {
			case apperrors.ErrCodeNotEligible:
				b.send(ctx, msg.Chat.ID, missingFieldsMessage(user.MissingFields()), "", b.markupForState(user.OnboardingState()))
				return
			case apperrors.ErrCodeNotFound:
				b.send(ctx, msg.Chat.ID, "Нажмите /start, чтобы начать.", "", nil)
				return
			}
		}
		b.send(ctx, msg.Chat.ID, tryAgainText, "", nil)
		return
	}

	var rows [][]telegram.InlineKeyboardButton
	for _, product := range b.catalog.All() {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         productButtonLabel(product),
			CallbackData: "product_" + product.ID,
		}})
	}
	b.send(ctx, msg.Chat.ID, chooseProductText, "", telegram.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}

	const prefix = "product_"
	if len(cb.Data) <= len(prefix) || cb.Data[:len(prefix)] != prefix {
		b.answerCallback(ctx, cb.ID, "")
		return
	}
	productID := cb.Data[len(prefix):]

	product, ok := b.catalog.Get(productID)
	if !ok {
		// Stale keyboard from an older catalog.
		b.answerCallback(ctx, cb.ID, productNotFound)
		return
	}

	redirectURL, err := b.payments.InitiatePurchase(ctx, cb.From.ID, productID, cb.Message.Chat.ID)
	if err != nil {
		switch apperrors.CodeOf(err) {
		case apperrors.ErrCodeNotEligible:
			b.answerCallback(ctx, cb.ID, "")
			b.send(ctx, cb.Message.Chat.ID, missingFieldsMessage(missingFieldsOf(err)), "", nil)
		case apperrors.ErrCodeUnknownProduct:
			b.answerCallback(ctx, cb.ID, productNotFound)
		default:
			logger.Error().Err(err).Int64("user_id", cb.From.ID).Msg("Failed to initiate purchase")
			b.answerCallback(ctx, cb.ID, "")
			b.send(ctx, cb.Message.Chat.ID, tryAgainText, "", nil)
		}
		return
	}

	markup := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: payButtonText, URL: redirectURL}},
	}}
	if err := b.tg.EditMessageText(ctx, cb.Message.Chat.ID, cb.Message.MessageID, productCard(product), "Markdown", markup); err != nil {
		logger.Error().Err(err).Int64("chat_id", cb.Message.Chat.ID).Msg("Failed to edit message")
	}
	b.answerCallback(ctx, cb.ID, "")
}

func (b *Bot) handleStats(ctx context.Context, msg *telegram.Message) {
	if !b.checkAdminPassword(ctx, msg) {
		return
	}

	s, err := b.stats.Stats(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load stats")
		b.send(ctx, msg.Chat.ID, tryAgainText, "", nil)
		return
	}
	b.send(ctx, msg.Chat.ID, statsMessage(s), "Markdown", nil)
}

func (b *Bot) handleUsers(ctx context.Context, msg *telegram.Message) {
	if !b.checkAdminPassword(ctx, msg) {
		return
	}

	rows, err := b.stats.UserRows(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load user rows")
		b.send(ctx, msg.Chat.ID, tryAgainText, "", nil)
		return
	}
	if len(rows) == 0 {
		b.send(ctx, msg.Chat.ID, noUsersText, "", nil)
		return
	}

	for _, chunk := range chunkMessage(userRowsMessage(rows), maxMessageLength) {
		b.send(ctx, msg.Chat.ID, chunk, "HTML", nil)
	}
}

func (b *Bot) checkAdminPassword(ctx context.Context, msg *telegram.Message) bool {
	args := commandArgs(msg.Text)
	if len(args) == 0 || args[0] != b.adminPassword {
		b.send(ctx, msg.Chat.ID, wrongPasswordText, "", nil)
		return false
	}
	return true
}

// markupForState attaches the contact-request keyboard while the phone is
// still missing.
func (b *Bot) markupForState(state usermodels.OnboardingState) any {
	if state != usermodels.StateNeedsPhone {
		return nil
	}
	return telegram.ReplyKeyboardMarkup{
		Keyboard: [][]telegram.KeyboardButton{
			{{Text: shareContactButton, RequestContact: true}},
		},
		ResizeKeyboard: true,
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text, parseMode string, markup any) {
	err := b.tg.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   parseMode,
		ReplyMarkup: markup,
	})
	if err != nil {
		logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) answerCallback(ctx context.Context, callbackID, text string) {
	if err := b.tg.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		logger.Error().Err(err).Msg("Failed to answer callback query")
	}
}

// missingFieldsOf pulls the missing-field list off a NOT_ELIGIBLE error.
func missingFieldsOf(err error) []string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		if missing, ok := appErr.Details["missing"].([]string); ok {
			return missing
		}
	}
	return []string{"email", "phone"}
}
