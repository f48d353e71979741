package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client issues raw Bot API calls. The library predates forum topics, so
// topic creation and message_thread_id go through MakeRequest directly.
type Client struct {
	api *tgbotapi.BotAPI
}

func NewClient(api *tgbotapi.BotAPI) *Client {
	return &Client{api: api}
}

type apiResult struct {
	resp *tgbotapi.APIResponse
	err  error
}

// do runs a blocking library call and gives up when ctx ends. The call itself
// keeps running in the background until the HTTP client returns.
func (c *Client) do(ctx context.Context, fn func() (*tgbotapi.APIResponse, error)) (json.RawMessage, error) {
	ch := make(chan apiResult, 1)
	go func() {
		resp, err := fn()
		ch <- apiResult{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return r.resp.Result, nil
	}
}

func (c *Client) call(ctx context.Context, endpoint string, params tgbotapi.Params) (json.RawMessage, error) {
	return c.do(ctx, func() (*tgbotapi.APIResponse, error) {
		return c.api.MakeRequest(endpoint, params)
	})
}

func (c *Client) SendMessage(ctx context.Context, chatID string, threadID int, text string, markup interface{}) (int, error) {
	params := tgbotapi.Params{}
	params.AddNonEmpty("chat_id", chatID)
	params.AddNonZero("message_thread_id", threadID)
	params.AddNonEmpty("text", text)
	params.AddNonEmpty("parse_mode", tgbotapi.ModeHTML)
	params.AddBool("disable_web_page_preview", true)
	if err := params.AddInterface("reply_markup", markup); err != nil {
		return 0, err
	}

	raw, err := c.call(ctx, "sendMessage", params)
	if err != nil {
		return 0, fmt.Errorf("sendMessage: %w", err)
	}
	return messageID(raw)
}

func (c *Client) Reply(ctx context.Context, chatID int64, replyTo int, text string) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("reply_to_message_id", replyTo)
	params.AddNonEmpty("text", text)
	params.AddNonEmpty("parse_mode", tgbotapi.ModeHTML)

	if _, err := c.call(ctx, "sendMessage", params); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

func (c *Client) EditMessage(ctx context.Context, chatID string, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	params := tgbotapi.Params{}
	params.AddNonEmpty("chat_id", chatID)
	params.AddNonZero("message_id", messageID)
	params.AddNonEmpty("text", text)
	params.AddNonEmpty("parse_mode", tgbotapi.ModeHTML)
	params.AddBool("disable_web_page_preview", true)
	if err := params.AddInterface("reply_markup", markup); err != nil {
		return err
	}

	_, err := c.call(ctx, "editMessageText", params)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("editMessageText: %w", err)
	}
	return nil
}

func (c *Client) CreateForumTopic(ctx context.Context, chatID, name string) (int, error) {
	params := tgbotapi.Params{}
	params.AddNonEmpty("chat_id", chatID)
	params.AddNonEmpty("name", truncate(name, 128))

	raw, err := c.call(ctx, "createForumTopic", params)
	if err != nil {
		return 0, fmt.Errorf("createForumTopic: %w", err)
	}

	var topic struct {
		MessageThreadID int `json:"message_thread_id"`
	}
	if err := json.Unmarshal(raw, &topic); err != nil {
		return 0, fmt.Errorf("decode forum topic: %w", err)
	}
	return topic.MessageThreadID, nil
}

func (c *Client) SendDocument(ctx context.Context, chatID string, threadID int, fileName string, data []byte, caption string) error {
	params := tgbotapi.Params{}
	params.AddNonEmpty("chat_id", chatID)
	params.AddNonZero("message_thread_id", threadID)
	params.AddNonEmpty("caption", caption)

	files := []tgbotapi.RequestFile{{
		Name: "document",
		Data: tgbotapi.FileBytes{Name: fileName, Bytes: data},
	}}

	_, err := c.do(ctx, func() (*tgbotapi.APIResponse, error) {
		return c.api.UploadFiles("sendDocument", params, files)
	})
	if err != nil {
		return fmt.Errorf("sendDocument: %w", err)
	}
	return nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}

	_, err := c.do(ctx, func() (*tgbotapi.APIResponse, error) {
		return c.api.Request(cfg)
	})
	return err
}

func messageID(raw json.RawMessage) (int, error) {
	var msg tgbotapi.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, fmt.Errorf("decode message: %w", err)
	}
	return msg.MessageID, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
