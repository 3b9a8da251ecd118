package models

// TemplateItem is one line of a shared/community template.
type TemplateItem struct {
	Name      string   `json:"name" yaml:"name"`
	SKU       string   `json:"sku,omitempty" yaml:"sku,omitempty"`
	Qty       float64  `json:"qty,omitempty" yaml:"qty,omitempty"`
	Unit      string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	UnitPrice *float64 `json:"unit_price,omitempty" yaml:"unit_price,omitempty"`
}

// Query returns the matching lookup for this line.
func (t TemplateItem) Query() MatchQuery {
	return MatchQuery{Name: t.Name, SKU: t.SKU}
}

// Template is a shared assembly/quote template imported into a private price list.
type Template struct {
	Name  string         `json:"name" yaml:"name"`
	Trade string         `json:"trade,omitempty" yaml:"trade,omitempty"`
	Items []TemplateItem `json:"items" yaml:"items"`
}
