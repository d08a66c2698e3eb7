package adapter

import "context"

// NotifierBot is the boundary to the chat layer. Every call is best-effort
// UX: a delivery failure is logged by callers and never rolls back any
// financial state already committed.
type NotifierBot interface {
	SendMessage(ctx context.Context, telegramID int64, text string) error
}
