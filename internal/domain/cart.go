package domain

// CartLine is one item of a checkout request. PriceSnapshot is the unit price
// the client saw; the server recomputes the authoritative total from these
// snapshots and never trusts a client-submitted sum.
type CartLine struct {
	ProductID     string `json:"product_id"`
	Color         string `json:"color,omitempty"`
	Material      string `json:"material,omitempty"`
	Size          string `json:"size"`
	Quantity      int    `json:"quantity"`
	PriceSnapshot int64  `json:"price_snapshot"`
}

// Key returns the SKU tuple of the line.
func (l *CartLine) Key() SKUKey {
	return SKUKey{ProductID: l.ProductID, Color: l.Color, Material: l.Material, Size: l.Size}
}

// Subtotal computes the server-side subtotal of the given lines.
func Subtotal(lines []CartLine) int64 {
	var total int64
	for i := range lines {
		total += lines[i].PriceSnapshot * int64(lines[i].Quantity)
	}
	return total
}
