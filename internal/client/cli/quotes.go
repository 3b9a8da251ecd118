package cli

import (
	"context"
	"fmt"
)

// NewQuote prompts for a quote header and creates a draft.
func (a *App) NewQuote(ctx context.Context) error {
	name, err := getSimpleText(a.scanner, "Quote name", a.out)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: name is required", errUsage)
	}
	client, err := getSimpleText(a.scanner, "Client (optional)", a.out)
	if err != nil {
		return err
	}

	notes, err := GetMultiline(a.scanner, "Notes", a.out)
	if err != nil {
		return err
	}

	rec, err := a.Quotes.Create(ctx, name, client, notes)
	if err != nil {
		return err
	}
	a.printf("Created quote %s\n", rec.ID)
	return nil
}

// AddAssembly expands an assembly into a quote. Extra arguments bind
// formula variables, e.g. "addassembly q1 a1 sqft=320".
func (a *App) AddAssembly(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: addassembly <quote> <assembly> [var=value...]", errUsage)
	}
	vars, err := parseVars(args[2:])
	if err != nil {
		return err
	}
	q, err := a.Quotes.AddAssembly(ctx, args[0], args[1], vars)
	if err != nil {
		return err
	}
	a.printf("Quote %s now has %d lines, total %.2f\n", args[0], len(q.Items), q.Total())
	return nil
}
