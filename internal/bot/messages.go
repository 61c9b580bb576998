package bot

import (
	"fmt"
	"strings"

	"coursepay-bot-backend/internal/features/catalog"
	"coursepay-bot-backend/internal/features/stats"
	usermodels "coursepay-bot-backend/internal/features/user/models"
)

const (
	welcomeMessage = `
🌟 *Добро пожаловать в бот для оплаты курса* 🌟

*«Как встретить Свою любовь?»*

> _"Любовь — это не поиск идеального человека, а создание идеальных отношений."_
> — © Джон Готтман

Этот бот предназначен исключительно для оплаты курса. После успешной оплаты с вами свяжутся организаторы курса для предоставления доступа.
`

	emailPrompt        = "📧 Для оформления чека отправьте ваш email:"
	emailInvalid       = "❌ Неверный формат email. Пример: name@example.com\nПопробуйте еще раз."
	emailAcceptedText  = "✅ Email сохранен!\n\nТеперь поделитесь своим номером телефона:"
	phonePromptText    = "Для продолжения поделитесь своим номером телефона:"
	shareContactButton = "📱 Поделиться номером"
	contactNotOwnText  = "Пожалуйста, поделитесь своим номером телефона."
	contactTooEarly    = "Сначала отправьте ваш email."
	readyText          = "✅ Спасибо! Теперь вы можете оформить доступ к курсу.\n\nЧтобы получить доступ к курсу, нажмите /buy"
	chooseProductText  = "🎁 Выберите товар для покупки:"
	productNotFound    = "Товар не найден"
	payButtonText      = "💳 Оплатить"
	tryAgainText       = "⚠️ Не удалось создать платеж. Попробуйте позже."
	wrongPasswordText  = "Неверный пароль!"
	noUsersText        = "Нет данных о пользователях."
	unknownInputText   = "Не понимаю. Нажмите /start, чтобы начать."
)

// missingFieldsMessage names what onboarding still has to collect.
func missingFieldsMessage(missing []string) string {
	labels := make([]string, 0, len(missing))
	for _, field := range missing {
		switch field {
		case "email":
			labels = append(labels, "email")
		case "phone":
			labels = append(labels, "номер телефона")
		}
	}
	return fmt.Sprintf("Сначала укажите: %s!", strings.Join(labels, " и "))
}

func productCard(p catalog.Product) string {
	return fmt.Sprintf(
		"🔹 *%s*\n\n*Цена:* %d₽\n*Описание:* %s\n\nСсылка для оплаты:",
		p.Name, p.Price, p.Description,
	)
}

func productButtonLabel(p catalog.Product) string {
	return fmt.Sprintf("%s - %d₽", p.Name, p.Price)
}

func statsMessage(s *stats.Stats) string {
	return fmt.Sprintf(
		"📊 *Статистика*\n\n👥 Всего пользователей: %d\n💰 Оплативших курс: %d\n📈 Конверсия: %.2f%%",
		s.TotalUsers, s.PaidUsers, s.Conversion,
	)
}

func userRowsMessage(rows []stats.UserRow) string {
	var b strings.Builder
	b.WriteString("📋 <b>Список пользователей</b>\n\n")
	for _, row := range rows {
		amount := "—"
		if row.PaymentAmount > 0 {
			amount = fmt.Sprintf("%d", row.PaymentAmount)
		}
		b.WriteString(fmt.Sprintf(
			"👤 <b>ID:</b> %d\n├ <b>Логин:</b> @%s\n├ <b>Email:</b> %s\n├ <b>Телефон:</b> %s\n├ <b>Сумма:</b> %s руб.\n└ <b>Статус:</b> %s\n\n",
			row.UserID,
			orDash(row.Username),
			orDash(row.Email),
			orDash(row.Phone),
			amount,
			orDash(row.PaymentStatus),
		))
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// chunkMessage splits long admin dumps to stay under Telegram's message
// size limit.
func chunkMessage(text string, size int) []string {
	if size <= 0 || len(text) <= size {
		return []string{text}
	}
	var chunks []string
	for len(text) > size {
		cut := size
		// Don't split a multi-byte rune.
		for cut > 0 && !isRuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// promptForState returns what to ask the user for next.
func promptForState(state usermodels.OnboardingState) string {
	switch state {
	case usermodels.StateNeedsEmail:
		return emailPrompt
	case usermodels.StateNeedsPhone:
		return phonePromptText
	default:
		return readyText
	}
}
