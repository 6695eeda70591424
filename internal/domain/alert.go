package domain

import (
	"time"
)

// StockAlertSubscription registers a user's interest in a restock of a
// product, optionally narrowed to one size. Notified flips to true exactly
// once per restock cycle; the subscription stays dormant until the user
// re-subscribes, which resets the flag.
type StockAlertSubscription struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	ProductID  string     `json:"product_id"`
	Size       *string    `json:"size,omitempty"`
	Notified   bool       `json:"notified"`
	CreatedAt  time.Time  `json:"created_at"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
}

// Matches reports whether the subscription applies to a restock of the given
// sizes. A size-agnostic subscription matches any restock of its product.
func (s *StockAlertSubscription) Matches(restockedSizes []string) bool {
	if s.Size == nil || *s.Size == "" {
		return true
	}
	for _, size := range restockedSizes {
		if size == *s.Size {
			return true
		}
	}
	return false
}
