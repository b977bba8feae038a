// Package strategy implements the precedence-ordered extraction cascades
// for variant/price/stock signals: a fixed sequence of independent
// strategies, each returning a candidate result plus diagnostic notes, run
// until the first non-null result wins. A strategy that panics is
// recovered at its own boundary and folded into that strategy's notes so
// the cascade always continues to the next candidate.
package strategy

import (
	"context"
	"fmt"

	"github.com/lattani/trackwright/internal/htmldom"
	"github.com/lattani/trackwright/internal/jsonval"
)

// CascadeInput is the shared context every strategy extracts from.
type CascadeInput struct {
	DOM       *htmldom.DomHandle
	RawHTML   []byte
	JSONBlobs []jsonval.Value
}

// Result is the candidate produced by a winning strategy, tagged with the
// name of the strategy that produced it so callers never need to parse
// provenance out of free-form notes.
type Result struct {
	Strategy string
	Value    any
	Score    float64
	Raw      string
}

// Strategy is a single candidate-producing extraction attempt.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, in *CascadeInput) (*Result, []string)
}

// Cascade runs a fixed, precedence-ordered list of strategies and returns
// the first non-null result, concatenating every strategy's notes.
type Cascade struct {
	Strategies []Strategy
}

// Run executes each strategy in order, recovering a panicking strategy
// into its own notes rather than aborting the cascade.
func (c *Cascade) Run(ctx context.Context, in *CascadeInput) (*Result, []string) {
	var notes []string
	for _, s := range c.Strategies {
		res, sNotes := runOne(ctx, s, in)
		notes = append(notes, sNotes...)
		if res != nil {
			return res, notes
		}
	}
	return nil, notes
}

func runOne(ctx context.Context, s Strategy, in *CascadeInput) (res *Result, notes []string) {
	defer func() {
		if r := recover(); r != nil {
			notes = append(notes, fmt.Sprintf("%s: panic recovered: %v", s.Name(), r))
			res = nil
		}
	}()
	return s.Extract(ctx, in)
}
