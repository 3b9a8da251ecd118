package services

import (
	"context"

	"github.com/dmitrijs2005/quotekeeper/internal/client/matching"
	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
)

// ImportResult reports a template import.
type ImportResult struct {
	// AssemblyID is the assembly created from the template.
	AssemblyID string
	// Created lists pricebook items added for lines without a usable match.
	Created []string
	// Results are the match results, sorted for review.
	Results []models.MatchResult
}

// TemplateService matches shared templates against the user's price list.
// Only the local price list is consulted.
type TemplateService struct {
	records *RecordService
	opts    []matching.Option
}

func NewTemplateService(records *RecordService, opts ...matching.Option) *TemplateService {
	return &TemplateService{records: records, opts: opts}
}

func (s *TemplateService) matcher(ctx context.Context) (*matching.Matcher, error) {
	recs, err := s.records.List(ctx, models.EntityPricebook)
	if err != nil {
		return nil, err
	}
	entries, _ := models.PricebookEntries(recs)
	return matching.NewMatcher(entries, s.opts...), nil
}

func queries(t models.Template) []models.MatchQuery {
	out := make([]models.MatchQuery, len(t.Items))
	for i, it := range t.Items {
		out[i] = it.Query()
	}
	return out
}

// Preview matches every template line without writing anything.
func (s *TemplateService) Preview(ctx context.Context, t models.Template) ([]models.MatchResult, error) {
	m, err := s.matcher(ctx)
	if err != nil {
		return nil, err
	}
	results := m.MatchAll(queries(t))
	matching.SortForReview(results)
	return results, nil
}

// usable reports whether a match is trusted without review.
func usable(r models.MatchResult) bool {
	return r.MatchedItem != nil && (r.MatchType == models.MatchExact || r.HighConfidence)
}

// Import links every template line to a price-list item, creating items
// for lines without an exact or high-confidence match, and saves the
// template as a new assembly.
func (s *TemplateService) Import(ctx context.Context, t models.Template) (ImportResult, error) {
	var res ImportResult

	m, err := s.matcher(ctx)
	if err != nil {
		return res, err
	}
	results := m.MatchAll(queries(t))

	a := models.Assembly{Name: t.Name, Description: t.Trade, Items: make([]models.AssemblyItem, 0, len(t.Items))}
	for i, it := range t.Items {
		productID := ""
		name := it.Name
		if r := results[i]; usable(r) {
			productID = r.MatchedItem.ID
			name = r.MatchedItem.Name
		} else {
			item := models.PricebookItem{Name: it.Name, SKU: it.SKU, Unit: it.Unit, Category: t.Trade}
			if it.UnitPrice != nil {
				item.UnitPrice = *it.UnitPrice
			}
			rec, err := s.records.Save(ctx, models.EntityPricebook, "", item)
			if err != nil {
				return res, err
			}
			productID = rec.ID
			res.Created = append(res.Created, rec.ID)
		}

		qty := it.Qty
		if qty == 0 {
			qty = 1
		}
		a.Items = append(a.Items, models.AssemblyItem{
			ProductID: productID,
			Source:    models.SourcePricebook,
			Name:      name,
			Qty:       models.FixedQty(qty),
		})
	}

	rec, err := s.records.Save(ctx, models.EntityAssemblies, "", a)
	if err != nil {
		return res, err
	}
	res.AssemblyID = rec.ID

	matching.SortForReview(results)
	res.Results = results
	return res, nil
}
