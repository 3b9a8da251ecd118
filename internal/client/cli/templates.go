package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/templates"
)

func (a *App) loadTemplate(args []string, usage string) (models.Template, error) {
	if len(args) < 1 {
		return models.Template{}, fmt.Errorf("%w: %s", errUsage, usage)
	}
	return templates.LoadFile(args[0])
}

func (a *App) printMatches(results []models.MatchResult) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tMATCH\tCONFIDENCE\tPRICE LIST ITEM")
	for _, r := range results {
		matched := "-"
		if r.MatchedItem != nil {
			matched = fmt.Sprintf("%s (%s)", r.MatchedItem.Name, r.MatchedItem.ID)
		}
		kind := string(r.MatchType)
		if r.MatchType == models.MatchFuzzy && !r.HighConfidence {
			kind += " (low)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.QueryItem.Name, kind, r.Confidence, matched)
	}
	return w.Flush()
}

// Preview matches a template file against the price list.
func (a *App) Preview(ctx context.Context, args []string) error {
	t, err := a.loadTemplate(args, "preview <file.json|yaml|xlsx|csv>")
	if err != nil {
		return err
	}
	results, err := a.Templates.Preview(ctx, t)
	if err != nil {
		return err
	}
	a.printf("Template %q, %d items\n", t.Name, len(t.Items))
	return a.printMatches(results)
}

// Import saves a template as an assembly, adding missing price-list items.
func (a *App) Import(ctx context.Context, args []string) error {
	t, err := a.loadTemplate(args, "import <file.json|yaml|xlsx|csv>")
	if err != nil {
		return err
	}
	res, err := a.Templates.Import(ctx, t)
	if err != nil {
		return err
	}
	if err := a.printMatches(res.Results); err != nil {
		return err
	}
	a.printf("Imported assembly %s, %d new price list items\n", res.AssemblyID, len(res.Created))
	return nil
}
