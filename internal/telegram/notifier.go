package telegram

import (
	"context"
	"log"

	apperrors "operator-dispatch.com/operator-dispatch/internal/errors"
	"operator-dispatch.com/operator-dispatch/internal/services"
)

// Notifier delivers operator cards to each operator's forum chat. Every task
// gets its own topic there; later cards for the task land in the same topic.
type Notifier struct {
	client   *Client
	channels map[string]string
}

func NewNotifier(client *Client, channels map[string]string) *Notifier {
	return &Notifier{
		client:   client,
		channels: channels,
	}
}

func (n *Notifier) Notify(ctx context.Context, operatorID string, card services.Card) (services.Delivery, error) {
	chatID, ok := n.channels[operatorID]
	if !ok {
		return services.Delivery{}, apperrors.ErrOperatorUnmapped
	}

	var delivery services.Delivery
	threadID := 0
	if card.ThreadID != nil {
		threadID = *card.ThreadID
	} else if card.Kind == services.CardTask {
		id, err := n.client.CreateForumTopic(ctx, chatID, topicName(card))
		if err != nil {
			log.Printf("telegram: no topic for task %d in %s, posting to the chat: %v", card.TaskID, chatID, err)
		} else {
			threadID = id
			delivery.ThreadID = &id
		}
	}

	text := renderCard(card)

	if card.MessageID != nil {
		err := n.client.EditMessage(ctx, chatID, *card.MessageID, text, inlineKeyboard(card))
		if err == nil {
			delivery.MessageID = card.MessageID
			return delivery, nil
		}
		log.Printf("telegram: edit of task %d card failed, sending a new one: %v", card.TaskID, err)
	}

	messageID, err := n.client.SendMessage(ctx, chatID, threadID, text, replyMarkup(card))
	if err != nil {
		return services.Delivery{}, err
	}
	delivery.MessageID = &messageID
	return delivery, nil
}

// LogNotifier stands in for the chat platform when no bot token is set.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, operatorID string, card services.Card) (services.Delivery, error) {
	log.Printf("notify %s: %s card for task %d (%s)", operatorID, card.Kind, card.TaskID, card.Status)
	return services.Delivery{}, nil
}
