package telegram

import (
	"context"
	"log"
)

// Messenger posts into deal group chats.
type Messenger struct {
	client *Client
}

func NewMessenger(client *Client) *Messenger {
	return &Messenger{client: client}
}

func (m *Messenger) CreateTopic(ctx context.Context, chatID, name string) (int, error) {
	return m.client.CreateForumTopic(ctx, chatID, name)
}

func (m *Messenger) SendText(ctx context.Context, chatID string, threadID int, html string) error {
	_, err := m.client.SendMessage(ctx, chatID, threadID, html, nil)
	return err
}

func (m *Messenger) SendDocument(ctx context.Context, chatID string, threadID int, fileName string, data []byte, caption string) error {
	return m.client.SendDocument(ctx, chatID, threadID, fileName, data, caption)
}

// LogMessenger stands in for the chat platform when no bot token is set.
type LogMessenger struct{}

func (LogMessenger) CreateTopic(ctx context.Context, chatID, name string) (int, error) {
	log.Printf("messenger: create topic %q in %s", name, chatID)
	return 0, nil
}

func (LogMessenger) SendText(ctx context.Context, chatID string, threadID int, html string) error {
	log.Printf("messenger: %s/%d: %s", chatID, threadID, html)
	return nil
}

func (LogMessenger) SendDocument(ctx context.Context, chatID string, threadID int, fileName string, data []byte, caption string) error {
	log.Printf("messenger: %s/%d: document %s (%d bytes)", chatID, threadID, fileName, len(data))
	return nil
}
