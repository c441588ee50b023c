// Package telegram - минимальный клиент Bot API: отправка сообщений
// с inline клавиатурой, long-poll обновлений, ответы на callback.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sniper/internal/models"
	"sniper/pkg/httpclient"
	"sniper/pkg/ratelimit"
)

// Update - элемент ответа getUpdates
type Update struct {
	UpdateID int64          `json:"update_id"`
	Message  *Message       `json:"message"`
	Callback *CallbackQuery `json:"callback_query"`
}

// Message - входящее сообщение
type Message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      Chat   `json:"chat"`
}

// Chat - чат откуда пришло сообщение
type Chat struct {
	ID int64 `json:"id"`
}

// CallbackQuery - нажатие inline кнопки
type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	Message *Message `json:"message"`
}

// Client - клиент Telegram Bot API
type Client struct {
	baseURL string // https://api.telegram.org/bot<token>
	http    *httpclient.Client
	limiter *ratelimit.RateLimiter
	logger  *zap.Logger
}

// New создаёт клиент для бота с указанным токеном
func New(token string, http *httpclient.Client, logger *zap.Logger) *Client {
	return &Client{
		baseURL: "https://api.telegram.org/bot" + token,
		http:    http,
		limiter: ratelimit.NewRateLimiter(20, 30),
		logger:  logger.Named("telegram"),
	}
}

// NewWithBaseURL создаёт клиент с произвольным базовым URL (для тестов)
func NewWithBaseURL(baseURL string, http *httpclient.Client, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    http,
		limiter: ratelimit.NewRateLimiter(20, 30),
		logger:  logger.Named("telegram"),
	}
}

type apiResponse struct {
	OK          bool     `json:"ok"`
	Description string   `json:"description"`
	Result      []Update `json:"result"`
}

type sendMessageRequest struct {
	ChatID      int64        `json:"chat_id"`
	Text        string       `json:"text"`
	ParseMode   string       `json:"parse_mode,omitempty"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
	DisablePrev bool         `json:"disable_web_page_preview"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Send отправляет HTML сообщение с опциональной клавиатурой
//
// Если Bot API отверг разметку (ошибка парсинга HTML сущностей),
// сообщение отправляется ровно один раз повторно как plain text:
// потерять алерт хуже чем потерять форматирование.
func (c *Client) Send(ctx context.Context, chatID int64, text string, keyboard models.Keyboard) error {
	err := c.send(ctx, chatID, text, "HTML", keyboard)
	if err != nil && isParseError(err) {
		c.logger.Warn("HTML rejected, resending as plain text", zap.Error(err))
		return c.send(ctx, chatID, stripTags(text), "", keyboard)
	}
	return err
}

func (c *Client) send(ctx context.Context, chatID int64, text, parseMode string, keyboard models.Keyboard) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req := sendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   parseMode,
		DisablePrev: true,
	}
	if len(keyboard) > 0 {
		req.ReplyMarkup = toReplyMarkup(keyboard)
	}

	var resp apiResponse
	if err := c.http.PostJSON(ctx, c.baseURL+"/sendMessage", req, &resp); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if !resp.OK {
		return &APIError{Description: resp.Description}
	}
	return nil
}

// Updates возвращает обновления через long-poll начиная с offset
func (c *Client) Updates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	url := fmt.Sprintf("%s/getUpdates?offset=%d&timeout=%d", c.baseURL, offset, int(timeout.Seconds()))

	var resp apiResponse
	if err := c.http.GetJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}
	if !resp.OK {
		return nil, &APIError{Description: resp.Description}
	}
	return resp.Result, nil
}

// AnswerCallback подтверждает нажатие кнопки (убирает "часики" в UI)
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	req := map[string]string{"callback_query_id": callbackID}
	if text != "" {
		req["text"] = text
	}

	var resp apiResponse
	if err := c.http.PostJSON(ctx, c.baseURL+"/answerCallbackQuery", req, &resp); err != nil {
		return fmt.Errorf("telegram answerCallbackQuery: %w", err)
	}
	if !resp.OK {
		return &APIError{Description: resp.Description}
	}
	return nil
}

// APIError - ответ Bot API с ok=false
type APIError struct {
	Description string
}

func (e *APIError) Error() string {
	return "telegram api: " + e.Description
}

// isParseError распознаёт отказ из-за разметки
func isParseError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	desc := strings.ToLower(apiErr.Description)
	return strings.Contains(desc, "parse") || strings.Contains(desc, "entity")
}

func toReplyMarkup(keyboard models.Keyboard) *replyMarkup {
	rm := &replyMarkup{}
	for _, row := range keyboard {
		var line []inlineButton
		for _, b := range row {
			line = append(line, inlineButton{Text: b.Text, CallbackData: b.Data})
		}
		rm.InlineKeyboard = append(rm.InlineKeyboard, line)
	}
	return rm
}

// stripTags убирает HTML теги из текста для plain text повтора
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
