// Package mock provides a logging notification sender for development and an
// in-memory recorder for tests.
package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ecomstack/storefront/internal/notifier"
)

// Sender logs every notification instead of delivering it.
type Sender struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []notifier.Notification
}

// New creates a logging sender.
func New(logger *slog.Logger) *Sender {
	return &Sender{logger: logger}
}

// Send records and logs the notification.
func (s *Sender) Send(ctx context.Context, n notifier.Notification) error {
	s.mu.Lock()
	s.sent = append(s.sent, n)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "notification sent",
		slog.String("user_id", n.UserID),
		slog.String("subject", n.Subject),
		slog.String("product_id", n.ProductID),
	)
	return nil
}

// Sent returns a copy of everything sent so far.
func (s *Sender) Sent() []notifier.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notifier.Notification, len(s.sent))
	copy(out, s.sent)
	return out
}
