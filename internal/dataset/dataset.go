// Package dataset holds ingested tables and their derived metadata for one
// session, and supports set-union joins across datasets with identical
// column sets.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/pivotlens/pivotlens/internal/table"
)

// Dataset is an immutable-after-ingest table plus derived column kinds and a
// free-text description. Joins produce new datasets; nothing is mutated in
// place.
type Dataset struct {
	ID          string
	Name        string
	Table       *table.Table
	Kinds       map[string]table.Kind
	Description string
}

// NumericColumns returns the numeric column names in table order.
func (d *Dataset) NumericColumns() []string { return d.columnsOfKind(table.Numeric) }

// DateColumns returns the date column names in table order.
func (d *Dataset) DateColumns() []string { return d.columnsOfKind(table.Date) }

// CategoricalColumns returns the categorical column names in table order.
func (d *Dataset) CategoricalColumns() []string { return d.columnsOfKind(table.Categorical) }

func (d *Dataset) columnsOfKind(k table.Kind) []string {
	var out []string
	for _, c := range d.Table.Columns() {
		if d.Kinds[c] == k {
			out = append(out, c)
		}
	}
	return out
}

// Registry is the per-session set of datasets, in insertion order.
type Registry struct {
	order []string
	byID  map[string]*Dataset
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Dataset)}
}

// Ingest classifies raw rows and registers the resulting dataset.
func (r *Registry) Ingest(name string, raw *table.Raw) (*Dataset, error) {
	tbl, err := table.Classify(raw)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", name, err)
	}
	d := &Dataset{
		ID:    uuid.NewString(),
		Name:  name,
		Table: tbl,
		Kinds: tbl.Kinds(),
	}
	r.add(d)
	return d, nil
}

func (r *Registry) add(d *Dataset) {
	r.order = append(r.order, d.ID)
	r.byID[d.ID] = d
}

// Put registers an already-built dataset, preserving its ID. Used when
// restoring a session snapshot.
func (r *Registry) Put(d *Dataset) {
	if _, ok := r.byID[d.ID]; ok {
		return
	}
	r.add(d)
}

// Get returns a dataset by ID.
func (r *Registry) Get(id string) (*Dataset, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Lookup resolves a dataset by ID or, failing that, by name.
func (r *Registry) Lookup(ref string) (*Dataset, bool) {
	if d, ok := r.byID[ref]; ok {
		return d, true
	}
	for _, id := range r.order {
		if r.byID[id].Name == ref {
			return r.byID[id], true
		}
	}
	return nil, false
}

// Remove deletes a dataset from the registry.
func (r *Registry) Remove(id string) {
	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// List returns datasets in insertion order.
func (r *Registry) List() []*Dataset {
	out := make([]*Dataset, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Join unions the given datasets: every column set must match the first
// dataset's (order ignored); rows concatenate in argument order; kinds and
// description are inherited from the first dataset. The joined dataset is
// registered under name.
func (r *Registry) Join(name string, datasets ...*Dataset) (*Dataset, error) {
	if len(datasets) < 2 {
		return nil, fmt.Errorf("join requires at least two datasets, got %d", len(datasets))
	}
	first := datasets[0]
	firstCols := columnSet(first.Table.Columns())
	for _, d := range datasets[1:] {
		if err := matchColumns(firstCols, d); err != nil {
			return nil, err
		}
	}

	joined := first.Table
	var err error
	for _, d := range datasets[1:] {
		joined, err = joined.Append(d.Table)
		if err != nil {
			return nil, fmt.Errorf("join %s: %w", d.Name, err)
		}
	}

	out := &Dataset{
		ID:          uuid.NewString(),
		Name:        name,
		Table:       joined,
		Kinds:       first.Kinds,
		Description: first.Description,
	}
	r.add(out)
	return out, nil
}

func columnSet(cols []string) map[string]bool {
	out := make(map[string]bool, len(cols))
	for _, c := range cols {
		out[c] = true
	}
	return out
}

// matchColumns reports a descriptive error naming the columns d is missing
// and the extra columns it carries relative to the first dataset.
func matchColumns(firstCols map[string]bool, d *Dataset) error {
	dCols := columnSet(d.Table.Columns())
	var missing, extra []string
	for c := range firstCols {
		if !dCols[c] {
			missing = append(missing, c)
		}
	}
	for c := range dCols {
		if !firstCols[c] {
			extra = append(extra, c)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	msg := fmt.Sprintf("column mismatch in dataset %s.", d.Name)
	if len(missing) > 0 {
		msg += fmt.Sprintf(" Missing columns: %s.", strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		msg += fmt.Sprintf(" Extra columns: %s.", strings.Join(extra, ", "))
	}
	return errors.New(msg)
}
