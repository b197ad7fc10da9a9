package domain

// Product is a sellable item. Price and name are snapshotted onto the order
// line at creation time, so later edits never change existing orders.
type Product struct {
	ID         int64             `json:"id"`
	Active     bool              `json:"active"`
	PriceCents int64             `json:"price_cents"`
	Currency   string            `json:"currency"`
	Names      map[string]string `json:"names"` // language -> localized name
	CreatedOn  string            `json:"created_on"`
	UpdatedOn  string            `json:"updated_on"`
}

// Name returns the localized name for lang, falling back to any available one
func (p *Product) Name(lang string) string {
	if n, ok := p.Names[lang]; ok {
		return n
	}
	if n, ok := p.Names["en"]; ok {
		return n
	}
	for _, n := range p.Names {
		return n
	}
	return ""
}

// RentalItem is a rentable unit secured by a deposit authorization. The
// deposit amount is snapshotted onto the booking at creation time.
type RentalItem struct {
	ID           int64             `json:"id"`
	Active       bool              `json:"active"`
	DepositCents int64             `json:"deposit_cents"`
	BaseFeeCents int64             `json:"base_fee_cents"`
	Currency     string            `json:"currency"`
	Names        map[string]string `json:"names"`
	CreatedOn    string            `json:"created_on"`
	UpdatedOn    string            `json:"updated_on"`
}

func (ri *RentalItem) Name(lang string) string {
	if n, ok := ri.Names[lang]; ok {
		return n
	}
	if n, ok := ri.Names["en"]; ok {
		return n
	}
	for _, n := range ri.Names {
		return n
	}
	return ""
}
