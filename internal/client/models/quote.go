package models

// QuoteStatus tracks a quote through its life.
type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
)

// QuoteItem is one priced line of a quote.
type QuoteItem struct {
	Name      string     `json:"name"`
	SKU       string     `json:"sku,omitempty"`
	Qty       float64    `json:"qty"`
	Unit      string     `json:"unit,omitempty"`
	UnitPrice float64    `json:"unit_price"`
	Source    ItemSource `json:"source,omitempty"`
	ProductID string     `json:"product_id,omitempty"`
}

// Quote is a customer estimate.
type Quote struct {
	Name       string      `json:"name"`
	ClientName string      `json:"client_name,omitempty"`
	Status     QuoteStatus `json:"status"`
	Items      []QuoteItem `json:"items"`
	Notes      string      `json:"notes,omitempty"`
}

// Total sums qty × unit price over all lines.
func (q Quote) Total() float64 {
	var total float64
	for _, it := range q.Items {
		total += it.Qty * it.UnitPrice
	}
	return total
}
