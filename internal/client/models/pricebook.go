package models

// PricebookItem is one entry of the user's private price list.
type PricebookItem struct {
	Name      string  `json:"name"`
	SKU       string  `json:"sku,omitempty"`
	Unit      string  `json:"unit,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Category  string  `json:"category,omitempty"`
}

// PricebookEntry pairs a price-list payload with its record ID, which is
// what assemblies and match results refer to.
type PricebookEntry struct {
	ID string `json:"id"`
	PricebookItem
}

// PricebookEntries decodes live (non-deleted) pricebook records.
// Records that fail to decode are skipped and returned as errors.
func PricebookEntries(records []Record) ([]PricebookEntry, []error) {
	var (
		out  = make([]PricebookEntry, 0, len(records))
		errs []error
	)
	for _, r := range records {
		if r.IsDeleted() {
			continue
		}
		item, err := Unwrap[PricebookItem](r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, PricebookEntry{ID: r.ID, PricebookItem: item})
	}
	return out, errs
}
