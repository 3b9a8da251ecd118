package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// QuantityKind tags the Quantity variant.
type QuantityKind string

const (
	QuantityFixed    QuantityKind = "fixed"
	QuantityComputed QuantityKind = "computed"
)

var ErrUnknownQuantityKind = errors.New("unknown quantity kind")

// Evaluator computes a formula against variable bindings. Implementations
// must be sandboxed: a formula is data, never executable host code.
type Evaluator interface {
	Evaluate(ctx context.Context, formula string, vars map[string]float64) (float64, error)
}

// Quantity is either a fixed number or a formula evaluated at expansion time
// (e.g. "sqft / 32" sheets of drywall for a room).
type Quantity struct {
	Kind    QuantityKind `json:"kind"`
	Value   float64      `json:"value,omitempty"`
	Formula string       `json:"formula,omitempty"`
}

func FixedQty(n float64) Quantity { return Quantity{Kind: QuantityFixed, Value: n} }

func ComputedQty(formula string) Quantity { return Quantity{Kind: QuantityComputed, Formula: formula} }

func (q Quantity) IsComputed() bool { return q.Kind == QuantityComputed }

// Resolve returns the fixed value or evaluates the formula with ev.
func (q Quantity) Resolve(ctx context.Context, ev Evaluator, vars map[string]float64) (float64, error) {
	switch q.Kind {
	case QuantityFixed, "":
		return q.Value, nil
	case QuantityComputed:
		if ev == nil {
			return 0, fmt.Errorf("no evaluator for formula %q", q.Formula)
		}
		return ev.Evaluate(ctx, q.Formula, vars)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownQuantityKind, q.Kind)
	}
}

// UnmarshalJSON accepts the tagged object form and, for older payloads, a
// bare number meaning a fixed quantity.
func (q *Quantity) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*q = FixedQty(n)
		return nil
	}

	type plain Quantity
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	switch p.Kind {
	case QuantityFixed, QuantityComputed:
	case "":
		p.Kind = QuantityFixed
	default:
		return fmt.Errorf("%w: %q", ErrUnknownQuantityKind, p.Kind)
	}
	*q = Quantity(p)
	return nil
}
