package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
)

// QuoteService builds quotes out of assemblies and the local price list.
type QuoteService struct {
	records   *RecordService
	evaluator models.Evaluator
}

func NewQuoteService(records *RecordService, ev models.Evaluator) *QuoteService {
	return &QuoteService{records: records, evaluator: ev}
}

// Create starts an empty draft quote.
func (s *QuoteService) Create(ctx context.Context, name, client, notes string) (models.Record, error) {
	return s.records.Save(ctx, models.EntityQuotes, "", models.Quote{
		Name:       name,
		ClientName: client,
		Status:     models.QuoteDraft,
		Items:      []models.QuoteItem{},
		Notes:      notes,
	})
}

func (s *QuoteService) Get(ctx context.Context, id string) (models.Quote, error) {
	rec, err := s.records.Get(ctx, models.EntityQuotes, id)
	if err != nil {
		return models.Quote{}, err
	}
	return models.Unwrap[models.Quote](rec)
}

// Expand turns an assembly into quote lines. Computed quantities are
// evaluated with vars; pricebook items take name, unit and price from the
// current price list, other items keep their cached name at price zero.
func (s *QuoteService) Expand(ctx context.Context, a models.Assembly, vars map[string]float64) ([]models.QuoteItem, error) {
	prices, err := s.priceList(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]models.QuoteItem, 0, len(a.Items))
	for _, it := range a.Items {
		qty, err := it.Qty.Resolve(ctx, s.evaluator, vars)
		if err != nil {
			return nil, fmt.Errorf("%w: item %q: %w", common.ErrValidation, it.Name, err)
		}
		line := models.QuoteItem{
			Name:      it.Name,
			Qty:       qty,
			Source:    it.Source,
			ProductID: it.ProductID,
		}
		if p, ok := prices[it.ProductID]; ok && it.Source == models.SourcePricebook {
			line.Name = p.Name
			line.SKU = p.SKU
			line.Unit = p.Unit
			line.UnitPrice = p.UnitPrice
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// AddAssembly appends the expansion of assemblyID to quoteID and saves the
// quote. Nothing is saved if any quantity fails to evaluate.
func (s *QuoteService) AddAssembly(ctx context.Context, quoteID, assemblyID string, vars map[string]float64) (models.Quote, error) {
	q, err := s.Get(ctx, quoteID)
	if err != nil {
		return q, err
	}
	arec, err := s.records.Get(ctx, models.EntityAssemblies, assemblyID)
	if err != nil {
		return q, err
	}
	a, err := models.Unwrap[models.Assembly](arec)
	if err != nil {
		return q, fmt.Errorf("%w: %w", common.ErrCorruptPayload, err)
	}

	lines, err := s.Expand(ctx, a, vars)
	if err != nil {
		return q, err
	}
	q.Items = append(q.Items, lines...)
	if _, err := s.records.Save(ctx, models.EntityQuotes, quoteID, q); err != nil {
		return q, err
	}
	return q, nil
}

func (s *QuoteService) priceList(ctx context.Context) (map[string]models.PricebookEntry, error) {
	recs, err := s.records.List(ctx, models.EntityPricebook)
	if err != nil {
		return nil, err
	}
	entries, _ := models.PricebookEntries(recs)
	out := make(map[string]models.PricebookEntry, len(entries))
	for _, e := range entries {
		out[e.ID] = e
	}
	return out, nil
}
