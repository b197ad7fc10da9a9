package domain

// Box is an inventory location (retail kiosk). Inventory counts live in a
// separate box_inventory table and are mutated only through relative updates
// inside the same transaction that writes the order or booking.
type Box struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	Currency  string `json:"currency"`
	Address   string `json:"address"`
	OpenHours string `json:"open_hours"`
	CreatedOn string `json:"created_on"`
	UpdatedOn string `json:"updated_on"`
}

// BoxInventory is one (box, item) stock row. Quantity never drops below zero;
// the repository enforces that with conditional decrements.
type BoxInventory struct {
	BoxID    int64 `json:"box_id"`
	ItemID   int64 `json:"item_id"`
	Quantity int64 `json:"quantity"`
}
