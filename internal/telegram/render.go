package telegram

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"operator-dispatch.com/operator-dispatch/internal/constants"
	"operator-dispatch.com/operator-dispatch/internal/services"
)

const callbackPrefix = "task"

var ErrBadCallback = errors.New("malformed callback data")

var actionLabels = map[constants.Action]string{
	constants.ActionAccept:          "Accept",
	constants.ActionPause:           "Pause",
	constants.ActionResume:          "Resume",
	constants.ActionCompleteRequest: "Complete",
	constants.ActionClaim:           "Take task",
}

var statusLabels = map[constants.TaskStatus]string{
	constants.StatusPending:   "waiting for accept",
	constants.StatusActive:    "in progress",
	constants.StatusPaused:    "paused",
	constants.StatusCompleted: "completed",
}

var reasonLabels = map[services.MismatchReason]string{
	services.ReasonAmountMismatch:   "the amount does not match the calculation",
	services.ReasonUnparseable:      "no amount found in the message",
	services.ReasonNoExpectedAmount: "the calculation has not been reported yet",
}

// CallbackData encodes a card button as task:<id>:<action>.
func CallbackData(taskID uint, action constants.Action) string {
	return fmt.Sprintf("%s:%d:%s", callbackPrefix, taskID, action)
}

func ParseCallbackData(data string) (uint, constants.Action, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != callbackPrefix {
		return 0, "", ErrBadCallback
	}

	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || id == 0 {
		return 0, "", ErrBadCallback
	}

	action, ok := constants.ParseAction(parts[2])
	if !ok {
		return 0, "", ErrBadCallback
	}
	return uint(id), action, nil
}

func topicName(card services.Card) string {
	return fmt.Sprintf("Task #%d", card.TaskID)
}

func renderCard(card services.Card) string {
	var b strings.Builder

	switch card.Kind {
	case services.CardEvidencePrompt:
		fmt.Fprintf(&b, "<b>Task #%d</b>\nReply with the transaction link and the amount sent.", card.TaskID)
		if card.Expected != "" {
			fmt.Fprintf(&b, "\nExpected: <b>%s</b>", html.EscapeString(card.Expected))
		}
		return b.String()

	case services.CardAmountMismatch:
		fmt.Fprintf(&b, "<b>Task #%d: evidence rejected</b>\n", card.TaskID)
		b.WriteString(reasonLabel(card.Reason))
		if card.Expected != "" {
			fmt.Fprintf(&b, "\nExpected: <b>%s</b>", html.EscapeString(card.Expected))
		}
		if card.Received != "" {
			fmt.Fprintf(&b, "\nReceived: <b>%s</b>", html.EscapeString(card.Received))
		}
		return b.String()

	case services.CardPromotionOffer:
		fmt.Fprintf(&b, "<b>Queued task #%d is waiting</b>\nTake it if you are free.", card.TaskID)
		return b.String()
	}

	if card.Kind == services.CardCompleted {
		fmt.Fprintf(&b, "<b>Task #%d completed</b>", card.TaskID)
	} else {
		fmt.Fprintf(&b, "<b>NEW CALCULATION TASK #%d</b>\nStatus: %s", card.TaskID, statusLabel(card.Status))
	}
	if card.Expected != "" {
		fmt.Fprintf(&b, "\nAmount: <b>%s</b>", html.EscapeString(card.Expected))
	}
	return b.String()
}

// replyMarkup returns the controls for card, or nil when it has none.
func replyMarkup(card services.Card) interface{} {
	if card.Kind == services.CardEvidencePrompt {
		return tgbotapi.ForceReply{ForceReply: true, InputFieldPlaceholder: "link and amount"}
	}
	if kb := inlineKeyboard(card); kb != nil {
		return kb
	}
	return nil
}

func inlineKeyboard(card services.Card) *tgbotapi.InlineKeyboardMarkup {
	if card.Kind == services.CardAmountMismatch {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton

	var links []tgbotapi.InlineKeyboardButton
	if card.TrackedURL != "" && card.Kind != services.CardCompleted {
		links = append(links, tgbotapi.NewInlineKeyboardButtonURL("Open form", card.TrackedURL))
	}
	if card.OriginURL != "" {
		links = append(links, tgbotapi.NewInlineKeyboardButtonURL("Open chat", card.OriginURL))
	}
	if len(links) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(links...))
	}

	var buttons []tgbotapi.InlineKeyboardButton
	for _, action := range card.Actions {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(actionLabels[action], CallbackData(card.TaskID, action)))
	}
	if len(buttons) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}

	if len(rows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func statusLabel(status constants.TaskStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

func reasonLabel(reason services.MismatchReason) string {
	if label, ok := reasonLabels[reason]; ok {
		return label
	}
	return string(reason)
}
