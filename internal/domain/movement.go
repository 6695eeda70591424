package domain

import (
	"time"
)

// Movement types.
const (
	MovementInbound    = "inbound"
	MovementOutbound   = "outbound"
	MovementAdjustment = "adjustment"
	MovementSale       = "sale"
	MovementReturn     = "return"
)

// ValidMovementTypes returns the set of valid movement types.
func ValidMovementTypes() []string {
	return []string{MovementInbound, MovementOutbound, MovementAdjustment, MovementSale, MovementReturn}
}

// IsValidMovementType checks whether the given type is a valid movement type.
func IsValidMovementType(t string) bool {
	for _, v := range ValidMovementTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// StockMovement is one immutable audit record of a ledger mutation. Rows are
// append-only: never updated, never deleted. PreviousQuantity and NewQuantity
// snapshot the ledger transition the movement describes.
type StockMovement struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	Color            string    `json:"color,omitempty"`
	Material         string    `json:"material,omitempty"`
	Size             string    `json:"size"`
	Type             string    `json:"type"`
	QuantityDelta    int       `json:"quantity_delta"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	Reason           string    `json:"reason"`
	RelatedOrderID   *string   `json:"related_order_id,omitempty"`
	ActorUserID      *string   `json:"actor_user_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Key returns the SKU tuple the movement belongs to.
func (m *StockMovement) Key() SKUKey {
	return SKUKey{ProductID: m.ProductID, Color: m.Color, Material: m.Material, Size: m.Size}
}

// MovementFilter narrows a movement log query.
type MovementFilter struct {
	Type string     `json:"type,omitempty"`
	Size string     `json:"size,omitempty"`
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}
