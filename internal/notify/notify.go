package notify

import "context"

// Notifier delivers a refresh digest to a chat or channel. Body is HTML.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}
