package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "operator-dispatch.com/operator-dispatch/internal/errors"
	"operator-dispatch.com/operator-dispatch/internal/services"
)

const longPollSeconds = 30

// Bot receives operator button presses and evidence replies and hands them to
// the dispatcher. Evidence is only read from the chat mapped to the sending
// operator; deal groups and direct messages are ignored.
type Bot struct {
	api      *tgbotapi.BotAPI
	client   *Client
	dispatch *services.DispatchService
	channels map[string]string
}

func NewBot(api *tgbotapi.BotAPI, client *Client, dispatch *services.DispatchService, channels map[string]string) *Bot {
	return &Bot{
		api:      api,
		client:   client,
		dispatch: dispatch,
		channels: channels,
	}
}

// Run blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = longPollSeconds
	cfg.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(cfg)
	log.Printf("telegram: receiving updates as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			log.Println("telegram: update receiver stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handle(update)
		}
	}
}

func (b *Bot) handle(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(update.Message)
	}
}

func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	taskID, action, err := ParseCallbackData(cq.Data)
	if err != nil {
		b.answer(cq.ID, "Unknown button", true)
		return
	}

	accepted := b.dispatch.Submit(services.InboundEvent{
		Key:        "callback:" + cq.ID,
		Kind:       services.InboundAction,
		OperatorID: strconv.FormatInt(cq.From.ID, 10),
		TaskID:     taskID,
		Action:     action,
		Reply: func(ctx context.Context, outcome services.InboundOutcome) {
			text, alert := callbackAnswer(outcome)
			if err := b.client.AnswerCallback(ctx, cq.ID, text, alert); err != nil {
				log.Printf("telegram: answer callback %s: %v", cq.ID, err)
			}
		},
	})
	if !accepted {
		b.answer(cq.ID, "Busy, try again", false)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot || msg.IsCommand() {
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	operatorID := strconv.FormatInt(msg.From.ID, 10)
	if !operatorChat(b.channels, operatorID, msg.Chat) {
		return
	}

	chatID := msg.Chat.ID
	messageID := msg.MessageID

	b.dispatch.Submit(services.InboundEvent{
		Key:        fmt.Sprintf("message:%d:%d", chatID, messageID),
		Kind:       services.InboundEvidence,
		OperatorID: operatorID,
		Text:       text,
		Reply: func(ctx context.Context, outcome services.InboundOutcome) {
			reply := evidenceReply(outcome)
			if reply == "" {
				return
			}
			if err := b.client.Reply(ctx, chatID, messageID, reply); err != nil {
				log.Printf("telegram: reply to message %d: %v", messageID, err)
			}
		},
	})
}

func (b *Bot) answer(callbackID, text string, alert bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.client.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		log.Printf("telegram: answer callback %s: %v", callbackID, err)
	}
}

// callbackAnswer turns an action outcome into the toast (or alert) shown to
// the operator who pressed the button.
func callbackAnswer(outcome services.InboundOutcome) (string, bool) {
	if outcome.Err != nil {
		return apperrors.PublicMessage(outcome.Err), true
	}
	if outcome.Action == nil {
		return "", false
	}
	if !outcome.Action.Changed {
		return "Already done", false
	}
	if outcome.Action.Degraded {
		return "Saved, but the card could not be updated", false
	}
	return "Done", false
}

// operatorChat reports whether chat is the channel configured for operatorID.
// Channels are configured either as numeric chat ids or as @usernames.
func operatorChat(channels map[string]string, operatorID string, chat *tgbotapi.Chat) bool {
	if chat == nil {
		return false
	}
	want, ok := channels[operatorID]
	if !ok {
		return false
	}
	if want == strconv.FormatInt(chat.ID, 10) {
		return true
	}
	return chat.UserName != "" && strings.EqualFold(want, "@"+chat.UserName)
}

// evidenceReply is only non-empty when the operator would otherwise get no
// feedback: a mismatch or completion normally arrives as a card, so a reply is
// sent when that card could not be delivered.
func evidenceReply(outcome services.InboundOutcome) string {
	if outcome.Err != nil {
		return "Could not check this message: " + apperrors.PublicMessage(outcome.Err)
	}

	ev := outcome.Evidence
	switch {
	case ev == nil || !ev.Evidence:
		return ""
	case ev.Reason == services.ReasonNoActiveTask:
		return "You have no active task to attach this to."
	case !ev.Degraded:
		return ""
	case ev.Matched:
		return fmt.Sprintf("Task #%d verified and completed.", ev.Task.ID)
	}

	text := "Not accepted: " + reasonLabel(ev.Reason) + "."
	if ev.Task != nil && ev.Task.ExpectedAmount.Valid {
		text += " Expected " + ev.Task.ExpectedAmount.Decimal.String() + "."
	}
	return text
}
