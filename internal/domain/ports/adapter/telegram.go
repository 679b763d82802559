package adapter

import "context"

// Notifier pushes a message to a chat outside the request/reply cycle, for
// example when a background reindex finishes.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}
