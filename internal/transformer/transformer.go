// Package transformer defines the contract for in-memory table transforms and
// an ordered Chain that applies them.
//
// A Transformer receives the table produced by the previous step and returns
// the table for the next one. Transformers may mutate and return their input;
// callers that need the original keep a Clone. Any error aborts the chain and
// is returned unchanged (wrapped with the transformer's name) so validation
// failures keep their typed diagnostic payloads for errors.As.
package transformer

import (
	"fmt"

	"github.com/samvalverde/PAAA/internal/table"
)

// Transformer is one step of the transform stage.
type Transformer interface {
	Name() string
	Apply(t *table.Table) (*table.Table, error)
}

// Func adapts a function to Transformer.
type Func struct {
	Label string
	Fn    func(t *table.Table) (*table.Table, error)
}

func (f Func) Name() string                               { return f.Label }
func (f Func) Apply(t *table.Table) (*table.Table, error) { return f.Fn(t) }

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs each transformer in order and stops at the first error.
func (c Chain) Apply(in *table.Table) (*table.Table, error) {
	out := in
	for _, tr := range c {
		next, err := tr.Apply(out)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tr.Name(), err)
		}
		out = next
	}
	return out, nil
}

// Names lists the transformer names in order, for logging.
func (c Chain) Names() []string {
	out := make([]string, len(c))
	for i, tr := range c {
		out[i] = tr.Name()
	}
	return out
}
