package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client provides the minimal Telegram Bot API surface used by the bot:
// long-poll updates, message delivery and callback answers.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

const apiBase = "https://api.telegram.org"

func NewClient(token string) *Client {
	return &Client{
		// Timeout must exceed the long-poll timeout passed to getUpdates.
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    fmt.Sprintf("%s/bot%s", apiBase, token),
	}
}

// NewClientWithBaseURL is used by tests to point the client at a fake server.
func NewClientWithBaseURL(token, base string) *Client {
	c := NewClient(token)
	c.baseURL = fmt.Sprintf("%s/bot%s", strings.TrimRight(base, "/"), token)
	return c
}

type tgResponse[T any] struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	Result      T      `json:"result"`
}

// Update is a single entry from getUpdates.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type Message struct {
	MessageID int64    `json:"message_id"`
	From      *User    `json:"from,omitempty"`
	Chat      Chat     `json:"chat"`
	Text      string   `json:"text,omitempty"`
	Contact   *Contact `json:"contact,omitempty"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type Contact struct {
	PhoneNumber string `json:"phone_number"`
	UserID      int64  `json:"user_id,omitempty"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// Keyboard markup types, marshaled into the reply_markup parameter.

type ReplyKeyboardMarkup struct {
	Keyboard       [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard,omitempty"`
}

type KeyboardButton struct {
	Text           string `json:"text"`
	RequestContact bool   `json:"request_contact,omitempty"`
}

type ReplyKeyboardRemove struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := url.Values{
		"offset":  {strconv.FormatInt(offset, 10)},
		"timeout": {strconv.Itoa(int(timeout.Seconds()))},
	}

	var result tgResponse[[]Update]
	if err := c.call(ctx, "getUpdates", params, &result); err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}
	if !result.Ok {
		return nil, fmt.Errorf("telegram API error: %s", result.Description)
	}
	return result.Result, nil
}

// SendMessageParams carries the optional pieces of a sendMessage call.
type SendMessageParams struct {
	ChatID      int64
	Text        string
	ParseMode   string
	ReplyMarkup any
}

func (c *Client) SendMessage(ctx context.Context, p SendMessageParams) error {
	params := url.Values{
		"chat_id": {strconv.FormatInt(p.ChatID, 10)},
		"text":    {p.Text},
	}
	if p.ParseMode != "" {
		params.Set("parse_mode", p.ParseMode)
	}
	if p.ReplyMarkup != nil {
		markup, err := json.Marshal(p.ReplyMarkup)
		if err != nil {
			return fmt.Errorf("marshal reply_markup: %w", err)
		}
		params.Set("reply_markup", string(markup))
	}

	var result tgResponse[json.RawMessage]
	if err := c.call(ctx, "sendMessage", params, &result); err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	if !result.Ok {
		return fmt.Errorf("telegram API error: %s", result.Description)
	}
	return nil
}

// EditMessageText replaces the text and markup of a previously sent message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text, parseMode string, markup *InlineKeyboardMarkup) error {
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"message_id": {strconv.FormatInt(messageID, 10)},
		"text":       {text},
	}
	if parseMode != "" {
		params.Set("parse_mode", parseMode)
	}
	if markup != nil {
		b, err := json.Marshal(markup)
		if err != nil {
			return fmt.Errorf("marshal reply_markup: %w", err)
		}
		params.Set("reply_markup", string(b))
	}

	var result tgResponse[json.RawMessage]
	if err := c.call(ctx, "editMessageText", params, &result); err != nil {
		return fmt.Errorf("editMessageText: %w", err)
	}
	if !result.Ok {
		return fmt.Errorf("telegram API error: %s", result.Description)
	}
	return nil
}

// AnswerCallbackQuery acknowledges a callback, optionally with a toast text.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	params := url.Values{"callback_query_id": {callbackID}}
	if text != "" {
		params.Set("text", text)
	}

	var result tgResponse[bool]
	if err := c.call(ctx, "answerCallbackQuery", params, &result); err != nil {
		return fmt.Errorf("answerCallbackQuery: %w", err)
	}
	if !result.Ok {
		return fmt.Errorf("telegram API error: %s", result.Description)
	}
	return nil
}

// Deliver sends a plain confirmation message. It satisfies the payment
// reconciler's Notifier contract.
func (c *Client) Deliver(ctx context.Context, chatID int64, text string) error {
	return c.SendMessage(ctx, SendMessageParams{ChatID: chatID, Text: text, ParseMode: "Markdown"})
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}
