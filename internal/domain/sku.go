package domain

import (
	"fmt"
	"strings"
	"time"
)

// SKUKey identifies a purchasable variant of a product. Color and material are
// optional; plain-size products leave them empty. The empty string is the
// canonical "not applicable" value so the tuple stays usable as a unique key.
type SKUKey struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color,omitempty"`
	Material  string `json:"material,omitempty"`
	Size      string `json:"size"`
}

// String returns a canonical representation, e.g. "p-1/blue/cotton/M".
func (k SKUKey) String() string {
	return strings.Join([]string{k.ProductID, k.Color, k.Material, k.Size}, "/")
}

// Label returns the variant part of the key without the product id, for
// user-facing messages.
func (k SKUKey) Label() string {
	parts := make([]string, 0, 3)
	if k.Color != "" {
		parts = append(parts, k.Color)
	}
	if k.Material != "" {
		parts = append(parts, k.Material)
	}
	parts = append(parts, k.Size)
	return strings.Join(parts, "/")
}

// SKU is the stock ledger entry for one variant. QuantityOnHand never goes
// negative; it is mutated only through the ledger's conditional updates.
type SKU struct {
	ID                string    `json:"id"`
	ProductID         string    `json:"product_id"`
	Color             string    `json:"color,omitempty"`
	Material          string    `json:"material,omitempty"`
	Size              string    `json:"size"`
	QuantityOnHand    int       `json:"quantity_on_hand"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Key returns the identifying tuple of the SKU.
func (s *SKU) Key() SKUKey {
	return SKUKey{ProductID: s.ProductID, Color: s.Color, Material: s.Material, Size: s.Size}
}

// IsLow reports whether the SKU is at or below its low stock threshold.
func (s *SKU) IsLow() bool {
	return s.QuantityOnHand <= s.LowStockThreshold
}

// InsufficientStockError is returned by a ledger decrement that would take the
// quantity below zero. It carries the quantity actually available so callers
// can surface "only N left" directly.
type InsufficientStockError struct {
	Key       SKUKey
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Key, e.Requested, e.Available)
}
