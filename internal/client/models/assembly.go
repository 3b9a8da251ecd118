package models

// ItemSource says where an assembly item's product lives.
type ItemSource string

const (
	SourceCatalog   ItemSource = "catalog"
	SourcePricebook ItemSource = "pricebook"
)

// AssemblyItem references a product from the shared catalog or the user's
// price list. Name is a cached display name so the item still renders when
// its reference later turns out to be dangling.
type AssemblyItem struct {
	ProductID string     `json:"product_id"`
	Source    ItemSource `json:"source"`
	Name      string     `json:"name,omitempty"`
	Qty       Quantity   `json:"qty"`
}

// Assembly is a reusable bundle of items (e.g. "Bathroom rough-in").
type Assembly struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Items       []AssemblyItem `json:"items"`

	// HasUnresolvedItems is set by the repair pass when at least one item
	// references a product that could not be found or re-linked.
	HasUnresolvedItems bool `json:"has_unresolved_items,omitempty"`
}
