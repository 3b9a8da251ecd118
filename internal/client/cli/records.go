package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
)

func entityArg(args []string, n int, usage string) (models.EntityType, error) {
	if len(args) < n {
		return "", fmt.Errorf("%w: %s", errUsage, usage)
	}
	return models.ParseEntityType(args[0])
}

// List prints the live records of an entity.
func (a *App) List(ctx context.Context, args []string) error {
	entity, err := entityArg(args, 1, "list <quotes|assemblies|pricebook>")
	if err != nil {
		return err
	}
	recs, err := a.Records.List(ctx, entity)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDETAIL\tUPDATED")
	for _, r := range recs {
		name, detail := summarize(entity, r)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, name, detail, r.UpdatedAt.Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	a.printf("%d %s\n", len(recs), entity)
	return nil
}

func summarize(entity models.EntityType, r models.Record) (string, string) {
	switch entity {
	case models.EntityPricebook:
		if it, err := models.Unwrap[models.PricebookItem](r); err == nil {
			return it.Name, fmt.Sprintf("%.2f/%s", it.UnitPrice, orDash(it.Unit))
		}
	case models.EntityAssemblies:
		if as, err := models.Unwrap[models.Assembly](r); err == nil {
			d := fmt.Sprintf("%d items", len(as.Items))
			if as.HasUnresolvedItems {
				d += ", needs attention"
			}
			return as.Name, d
		}
	case models.EntityQuotes:
		if q, err := models.Unwrap[models.Quote](r); err == nil {
			return q.Name, fmt.Sprintf("%s, %.2f", q.Status, q.Total())
		}
	}
	return "?", "unreadable"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Show prints one record as indented JSON.
func (a *App) Show(ctx context.Context, args []string) error {
	entity, err := entityArg(args, 2, "show <entity> <id>")
	if err != nil {
		return err
	}
	rec, err := a.Records.Get(ctx, entity, args[1])
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	a.printf("%s\n", b)
	return nil
}

// Delete removes a record locally and queues the remote delete.
func (a *App) Delete(ctx context.Context, args []string) error {
	entity, err := entityArg(args, 2, "delete <entity> <id>")
	if err != nil {
		return err
	}
	if err := a.Records.Delete(ctx, entity, args[1]); err != nil {
		return err
	}
	a.printf("Deleted %s %s\n", entity, args[1])
	return nil
}

// AddItem prompts for a price-list item and saves it.
func (a *App) AddItem(ctx context.Context) error {
	var it models.PricebookItem
	var err error
	if it.Name, err = getSimpleText(a.scanner, "Item name", a.out); err != nil {
		return err
	}
	if it.Name == "" {
		return fmt.Errorf("%w: name is required", errUsage)
	}
	if it.SKU, err = getSimpleText(a.scanner, "SKU (optional)", a.out); err != nil {
		return err
	}
	if it.Unit, err = getSimpleText(a.scanner, "Unit (optional)", a.out); err != nil {
		return err
	}
	if it.UnitPrice, err = GetNumber(a.scanner, "Unit price", 0, a.out); err != nil {
		return err
	}
	if it.Category, err = getSimpleText(a.scanner, "Category (optional)", a.out); err != nil {
		return err
	}

	rec, err := a.Records.Save(ctx, models.EntityPricebook, "", it)
	if err != nil {
		return err
	}
	a.printf("Saved %s\n", rec.ID)
	return nil
}
