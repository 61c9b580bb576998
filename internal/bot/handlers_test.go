package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursepay-bot-backend/internal/features/catalog"
	paymentmodels "coursepay-bot-backend/internal/features/payment/models"
	paymentrepo "coursepay-bot-backend/internal/features/payment/repository"
	paymentsvc "coursepay-bot-backend/internal/features/payment/service"
	"coursepay-bot-backend/internal/features/stats"
	usermodels "coursepay-bot-backend/internal/features/user/models"
	userrepo "coursepay-bot-backend/internal/features/user/repository"
	usersvc "coursepay-bot-backend/internal/features/user/service"
	"coursepay-bot-backend/internal/platform/telegram"
	"coursepay-bot-backend/internal/platform/yookassa"
)

// fakeTransport records every outbound Telegram call.
type fakeTransport struct {
	sent    []telegram.SendMessageParams
	edits   []editCall
	answers []answerCall
}

type editCall struct {
	chatID    int64
	messageID int64
	text      string
	markup    *telegram.InlineKeyboardMarkup
}

type answerCall struct {
	callbackID string
	text       string
}

func (f *fakeTransport) GetUpdates(context.Context, int64, time.Duration) ([]telegram.Update, error) {
	return nil, nil
}

func (f *fakeTransport) SendMessage(_ context.Context, p telegram.SendMessageParams) error {
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeTransport) EditMessageText(_ context.Context, chatID, messageID int64, text, _ string, markup *telegram.InlineKeyboardMarkup) error {
	f.edits = append(f.edits, editCall{chatID: chatID, messageID: messageID, text: text, markup: markup})
	return nil
}

func (f *fakeTransport) AnswerCallbackQuery(_ context.Context, callbackID, text string) error {
	f.answers = append(f.answers, answerCall{callbackID: callbackID, text: text})
	return nil
}

func (f *fakeTransport) lastText() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Text
}

// In-memory user repository.
type memUserRepo struct {
	users map[int64]*usermodels.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[int64]*usermodels.User{}}
}

func (m *memUserRepo) CreateIfAbsent(_ context.Context, user *usermodels.User) error {
	if _, ok := m.users[user.ID]; !ok {
		clone := *user
		m.users[user.ID] = &clone
	}
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id int64) (*usermodels.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, userrepo.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (m *memUserRepo) SetEmail(_ context.Context, id int64, email string) error {
	user, ok := m.users[id]
	if !ok {
		return userrepo.ErrUserNotFound
	}
	user.Email = email
	return nil
}

func (m *memUserRepo) SetPhone(_ context.Context, id int64, phone string) error {
	user, ok := m.users[id]
	if !ok {
		return userrepo.ErrUserNotFound
	}
	user.Phone = phone
	return nil
}

func (m *memUserRepo) List(_ context.Context) ([]*usermodels.User, error) {
	out := make([]*usermodels.User, 0, len(m.users))
	for _, u := range m.users {
		clone := *u
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

// In-memory payment repository.
type memPaymentRepo struct {
	payments map[string]*paymentmodels.Payment
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: map[string]*paymentmodels.Payment{}}
}

func (m *memPaymentRepo) Create(_ context.Context, p *paymentmodels.Payment) error {
	clone := *p
	m.payments[p.Ref] = &clone
	return nil
}

func (m *memPaymentRepo) GetByRef(_ context.Context, ref string) (*paymentmodels.Payment, error) {
	p, ok := m.payments[ref]
	if !ok {
		return nil, paymentrepo.ErrPaymentNotFound
	}
	return p, nil
}

func (m *memPaymentRepo) ListPendingRefs(context.Context) ([]string, error) { return nil, nil }

func (m *memPaymentRepo) TransitionFromPending(context.Context, string, paymentmodels.Status) (bool, error) {
	return false, nil
}

func (m *memPaymentRepo) LatestByOwner(_ context.Context, ownerID int64) (*paymentmodels.Payment, error) {
	for _, p := range m.payments {
		if p.OwnerID == ownerID {
			return p, nil
		}
	}
	return nil, paymentrepo.ErrPaymentNotFound
}

func (m *memPaymentRepo) CountByStatus(_ context.Context, status paymentmodels.Status) (int64, error) {
	var n int64
	for _, p := range m.payments {
		if p.Status == status {
			n++
		}
	}
	return n, nil
}

// Scripted gateway.
type memGateway struct {
	createCalls int
	createErr   error
}

func (g *memGateway) CreatePayment(context.Context, yookassa.CreatePaymentRequest) (*yookassa.CreatePaymentResult, error) {
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &yookassa.CreatePaymentResult{
		PaymentRef:  "p1",
		Status:      "pending",
		RedirectURL: "https://pay.example/redirect",
	}, nil
}

func (g *memGateway) GetPayment(_ context.Context, ref string) (*yookassa.PaymentInfo, error) {
	return &yookassa.PaymentInfo{PaymentRef: ref, Status: "pending"}, nil
}

type testEnv struct {
	bot      *Bot
	tg       *fakeTransport
	users    *memUserRepo
	payments *memPaymentRepo
	gateway  *memGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tg := &fakeTransport{}
	users := newMemUserRepo()
	payments := newMemPaymentRepo()
	gateway := &memGateway{}

	userService := usersvc.NewService(users)
	cat := catalog.Default()
	paymentService := paymentsvc.NewService(payments, gateway, userService, cat)
	statsService := stats.NewService(users, payments)

	b := New(tg, userService, paymentService, statsService, cat, "secret", time.Second)
	return &testEnv{bot: b, tg: tg, users: users, payments: payments, gateway: gateway}
}

func message(userID, chatID int64, text string) telegram.Update {
	return telegram.Update{Message: &telegram.Message{
		From: &telegram.User{ID: userID, Username: "alice"},
		Chat: telegram.Chat{ID: chatID},
		Text: text,
	}}
}

func contact(userID, chatID, ownerID int64, phone string) telegram.Update {
	return telegram.Update{Message: &telegram.Message{
		From:    &telegram.User{ID: userID, Username: "alice"},
		Chat:    telegram.Chat{ID: chatID},
		Contact: &telegram.Contact{PhoneNumber: phone, UserID: ownerID},
	}}
}

func callback(userID, chatID int64, data string) telegram.Update {
	return telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:   "cb1",
		From: &telegram.User{ID: userID},
		Message: &telegram.Message{
			MessageID: 7,
			Chat:      telegram.Chat{ID: chatID},
		},
		Data: data,
	}}
}

func TestStartRegistersAndWelcomes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bot.HandleUpdate(ctx, message(100, 42, "/start"))

	require.Len(t, env.tg.sent, 1)
	assert.Contains(t, env.tg.sent[0].Text, "Добро пожаловать")
	assert.Contains(t, env.tg.sent[0].Text, emailPrompt)
	_, err := env.users.GetByID(ctx, 100)
	assert.NoError(t, err)
}

func TestOnboardingFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bot.HandleUpdate(ctx, message(100, 42, "/start"))

	// Bad email is rejected, state stays NeedsEmail.
	env.bot.HandleUpdate(ctx, message(100, 42, "not-an-email"))
	assert.Equal(t, emailInvalid, env.tg.lastText())

	// Good email advances to the contact keyboard.
	env.bot.HandleUpdate(ctx, message(100, 42, "a@b.co"))
	assert.Equal(t, emailAcceptedText, env.tg.lastText())
	markup, ok := env.tg.sent[len(env.tg.sent)-1].ReplyMarkup.(telegram.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, markup.Keyboard[0][0].RequestContact)

	// Foreign contact card is rejected.
	env.bot.HandleUpdate(ctx, contact(100, 42, 200, "+79001234567"))
	assert.Equal(t, contactNotOwnText, env.tg.lastText())

	// Own contact completes onboarding.
	env.bot.HandleUpdate(ctx, contact(100, 42, 100, "+79001234567"))
	assert.Equal(t, readyText, env.tg.lastText())

	user, err := env.users.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, usermodels.StateReady, user.OnboardingState())
}

func TestContactBeforeEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bot.HandleUpdate(ctx, message(100, 42, "/start"))
	env.bot.HandleUpdate(ctx, contact(100, 42, 100, "+79001234567"))
	assert.Equal(t, contactTooEarly, env.tg.lastText())
}

func TestBuyBeforeReady(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bot.HandleUpdate(ctx, message(100, 42, "/start"))
	env.bot.HandleUpdate(ctx, message(100, 42, "a@b.co"))

	env.bot.HandleUpdate(ctx, message(100, 42, "/buy"))
	assert.Contains(t, env.tg.lastText(), "номер телефона")
	assert.Zero(t, env.gateway.createCalls)
}

func TestBuyShowsProducts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bot.HandleUpdate(ctx, message(100, 42, "/start"))
	env.bot.HandleUpdate(ctx, message(100, 42, "a@b.co"))
	env.bot.HandleUpdate(ctx, contact(100, 42, 100, "+79001234567"))

	env.bot.HandleUpdate(ctx, message(100, 42, "/buy"))
	assert.Equal(t, chooseProductText, env.tg.lastText())

	markup, ok := env.tg.sent[len(env.tg.sent)-1].ReplyMarkup.(telegram.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "product_basic", markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "product_individual", markup.InlineKeyboard[1][0].CallbackData)
}

func TestProductCallbackCreatesPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bot.HandleUpdate(ctx, message(100, 42, "/start"))
	env.bot.HandleUpdate(ctx, message(100, 42, "a@b.co"))
	env.bot.HandleUpdate(ctx, contact(100, 42, 100, "+79001234567"))

	env.bot.HandleUpdate(ctx, callback(100, 42, "product_basic"))

	assert.Equal(t, 1, env.gateway.createCalls)
	payment, err := env.payments.GetByRef(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, paymentmodels.StatusPending, payment.Status)
	assert.Equal(t, int64(6000), payment.Amount)

	require.Len(t, env.tg.edits, 1)
	edit := env.tg.edits[0]
	assert.Equal(t, int64(42), edit.chatID)
	assert.Equal(t, int64(7), edit.messageID)
	require.NotNil(t, edit.markup)
	assert.Equal(t, "https://pay.example/redirect", edit.markup.InlineKeyboard[0][0].URL)
}

func TestStaleProductCallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bot.HandleUpdate(ctx, message(100, 42, "/start"))
	env.bot.HandleUpdate(ctx, callback(100, 42, "product_deluxe"))

	require.Len(t, env.tg.answers, 1)
	assert.Equal(t, productNotFound, env.tg.answers[0].text)
	assert.Zero(t, env.gateway.createCalls)
}

func TestAdminCommands(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bot.HandleUpdate(ctx, message(100, 42, "/start"))

	env.bot.HandleUpdate(ctx, message(100, 42, "/stats wrong"))
	assert.Equal(t, wrongPasswordText, env.tg.lastText())

	env.bot.HandleUpdate(ctx, message(100, 42, "/stats secret"))
	assert.Contains(t, env.tg.lastText(), "Статистика")
	assert.Contains(t, env.tg.lastText(), "Всего пользователей: 1")

	env.bot.HandleUpdate(ctx, message(100, 42, "/users secret"))
	assert.Contains(t, env.tg.lastText(), "alice")
}

func TestChunkMessage(t *testing.T) {
	long := strings.Repeat("строка пользователя\n", 500)
	chunks := chunkMessage(long, maxMessageLength)
	assert.Greater(t, len(chunks), 1)

	var rebuilt strings.Builder
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), maxMessageLength)
		rebuilt.WriteString(chunk)
	}
	assert.Equal(t, long, rebuilt.String())
}

func TestMissingFieldsMessage(t *testing.T) {
	assert.Equal(t, "Сначала укажите: email!", missingFieldsMessage([]string{"email"}))
	assert.Equal(t, "Сначала укажите: email и номер телефона!", missingFieldsMessage([]string{"email", "phone"}))
}
