package pivot

import (
	"github.com/google/uuid"

	"github.com/pivotlens/pivotlens/internal/table"
)

// View is a materialized pivot bound to its source dataset. A changed spec
// produces a new View; views are deleted explicitly, never mutated.
type View struct {
	ID     string
	Name   string
	Source string // source dataset ID
	Spec   Spec
	Result *table.Table
}

// NewView computes the pivot and wraps the result. The spec must already be
// valid for the source table; Compute re-checks and reports otherwise.
func NewView(name, sourceID string, tbl *table.Table, spec Spec) (*View, error) {
	result, err := Compute(tbl, spec)
	if err != nil {
		return nil, err
	}
	return &View{
		ID:     uuid.NewString(),
		Name:   name,
		Source: sourceID,
		Spec:   spec,
		Result: result,
	}, nil
}
