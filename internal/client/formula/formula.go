// Package formula evaluates computed assembly quantities in a tengo
// sandbox. A formula is a single expression over numeric variables, e.g.
// "math.ceil(sqft / 32)". Only the tengo math module can be imported and
// every run is bounded by a timeout and an allocation cap.
package formula

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/dmitrijs2005/quotekeeper/internal/common"
)

const (
	DefaultTimeout   = 100 * time.Millisecond
	DefaultMaxAllocs = 10000

	resultVar = "__qty"
)

var (
	ErrInvalidFormula = errors.New("invalid formula")
	ErrNotANumber     = errors.New("formula result is not a finite number")
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Evaluator struct {
	timeout   time.Duration
	maxAllocs int64

	mu    sync.Mutex
	cache map[string]*tengo.Compiled
}

type Option func(*Evaluator)

func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

func WithMaxAllocs(n int64) Option {
	return func(e *Evaluator) { e.maxAllocs = n }
}

func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		timeout:   DefaultTimeout,
		maxAllocs: DefaultMaxAllocs,
		cache:     make(map[string]*tengo.Compiled),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func invalid(formula string, err error) error {
	return fmt.Errorf("%w: %w: %q: %w", common.ErrValidation, ErrInvalidFormula, formula, err)
}

func sortedNames(vars map[string]float64) []string {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// compiled returns a private copy of the program for formula over names.
func (e *Evaluator) compiled(formula string, names []string) (*tengo.Compiled, error) {
	key := formula + "\x00" + strings.Join(names, ",")

	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.cache[key]; ok {
		return c.Clone(), nil
	}

	if strings.TrimSpace(formula) == "" {
		return nil, invalid(formula, errors.New("empty"))
	}
	if strings.ContainsAny(formula, "\n\r;") {
		return nil, invalid(formula, errors.New("must be a single expression"))
	}
	for _, n := range names {
		if !identRe.MatchString(n) || n == "math" || n == resultVar {
			return nil, invalid(formula, fmt.Errorf("bad variable name %q", n))
		}
	}

	src := "math := import(\"math\")\n" + resultVar + " := (" + formula + ")\n"
	s := tengo.NewScript([]byte(src))
	s.SetImports(stdlib.GetModuleMap("math"))
	s.SetMaxAllocs(e.maxAllocs)
	for _, n := range names {
		if err := s.Add(n, 0.0); err != nil {
			return nil, invalid(formula, err)
		}
	}
	c, err := s.Compile()
	if err != nil {
		return nil, invalid(formula, err)
	}
	e.cache[key] = c
	return c.Clone(), nil
}

// Validate compiles formula against the variable names it may use.
func (e *Evaluator) Validate(formula string, names ...string) error {
	vars := make(map[string]float64, len(names))
	for _, n := range names {
		vars[n] = 0
	}
	_, err := e.compiled(formula, sortedNames(vars))
	return err
}

// Evaluate runs formula with vars bound.
func (e *Evaluator) Evaluate(ctx context.Context, formula string, vars map[string]float64) (float64, error) {
	c, err := e.compiled(formula, sortedNames(vars))
	if err != nil {
		return 0, err
	}
	for n, v := range vars {
		if err := c.Set(n, v); err != nil {
			return 0, invalid(formula, err)
		}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if err := c.RunContext(ctx); err != nil {
		return 0, fmt.Errorf("%w: evaluate %q: %w", common.ErrValidation, formula, err)
	}

	var out float64
	switch v := c.Get(resultVar).Value().(type) {
	case int64:
		out = float64(v)
	case float64:
		out = v
	default:
		return 0, fmt.Errorf("%w: %w: %q gave %T", common.ErrValidation, ErrNotANumber, formula, v)
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("%w: %w: %q gave %v", common.ErrValidation, ErrNotANumber, formula, out)
	}
	return out, nil
}
