package notifier

import (
	"context"
)

// Notification is one message to one user.
type Notification struct {
	UserID    string `json:"user_id"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	ProductID string `json:"product_id,omitempty"`
}

// Sender delivers notifications. A Send error affects only the one
// notification being sent; callers must not let it abort a batch.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}
