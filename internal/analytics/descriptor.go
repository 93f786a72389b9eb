// Package analytics computes KPIs, composition tables and value
// distributions over a filtered core survey table. Three report variants
// share one filter engine: general summary, population profile and
// question detail.
package analytics

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Descriptor selects the population an analysis runs over.
type Descriptor struct {
	Dataset  string  `json:"dataset" validate:"required"`
	Programa *string `json:"programa,omitempty"`

	// Filtros maps a column to a scalar (equality), a list (membership) or
	// an operator object {eq, neq, gte, lte, gt, lt, in}.
	Filtros map[string]any `json:"filtros,omitempty"`

	// N is back-filled with the filtered row count when nil.
	N *int `json:"n,omitempty"`
}

// Validate reports a *ConfigError for a descriptor without a dataset.
func (d *Descriptor) Validate() error {
	if d == nil {
		return &ConfigError{Field: "poblacion", Reason: "missing"}
	}
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ConfigError{Field: "poblacion.dataset", Reason: verrs[0].Tag()}
		}
		return err
	}
	return nil
}

func (d *Descriptor) backfill(n int) {
	if d.N == nil {
		d.N = &n
	}
}

// ConfigError reports an analysis request that cannot run.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("analytics: %s: %s", e.Field, e.Reason)
}

// ColumnNotFoundError reports a question-detail variable that the dataset
// does not have.
type ColumnNotFoundError struct {
	Dataset string
	Column  string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("analytics: column %q not found in dataset %q", e.Column, e.Dataset)
}
