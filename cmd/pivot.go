package cmd

import (
	"fmt"
	"strings"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pivotlens/pivotlens/internal/pivot"
	"github.com/pivotlens/pivotlens/internal/session"
	"github.com/pivotlens/pivotlens/internal/table"
)

var (
	pivotDataset string
	pivotRows    []string
	pivotValues  []string
	pivotAgg     string
	pivotFilters []string
)

var pivotCmd = &cobra.Command{
	Use:   "pivot",
	Short: "Create, show, and delete pivot tables",
}

var pivotCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Build a pivot table over a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pivotDataset == "" {
			return fmt.Errorf("--dataset is required")
		}
		if len(pivotRows) == 0 {
			return fmt.Errorf("--rows is required: a pivot needs at least one group-by column")
		}
		agg, err := pivot.ParseAggregation(pivotAgg)
		if err != nil {
			return err
		}
		filters, err := parseFilters(pivotFilters)
		if err != nil {
			return err
		}
		spec := pivot.Spec{
			GroupBy: pivotRows,
			Values:  pivotValues,
			Filters: filters,
			Agg:     agg,
		}
		return withSession(nil, func(s *session.Session) error {
			view, err := s.CreatePivot(args[0], pivotDataset, spec)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Pivot created: %s (%s)\n", view.Name, shortID(view.ID))
			fmt.Println(renderResult(view.Result))
			return nil
		})
	},
}

var pivotShowCmd = &cobra.Command{
	Use:   "show <name|id>",
	Short: "Print a pivot table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, closeStore, err := loadSession(nil)
		if err != nil {
			return err
		}
		defer closeStore()
		view, ok := s.View(args[0])
		if !ok {
			return fmt.Errorf("pivot %q not found", args[0])
		}
		fmt.Println(view.Spec.Describe())
		fmt.Println(renderResult(view.Result))
		return nil
	},
}

var pivotDeleteCmd = &cobra.Command{
	Use:   "delete <name|id>",
	Short: "Delete a pivot table and its conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(nil, func(s *session.Session) error {
			view, ok := s.View(args[0])
			if !ok {
				return fmt.Errorf("pivot %q not found", args[0])
			}
			s.DeletePivot(view.ID)
			fmt.Printf("✓ Pivot deleted: %s\n", view.Name)
			return nil
		})
	},
}

// parseFilters turns repeated "column=v1,v2" flags into the filter map.
func parseFilters(raw []string) (map[string][]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string][]string, len(raw))
	for _, f := range raw {
		col, vals, ok := strings.Cut(f, "=")
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid filter %q (expected column=value[,value...])", f)
		}
		out[col] = append(out[col], strings.Split(vals, ",")...)
	}
	return out, nil
}

func renderResult(tbl *table.Table) string {
	t := prettytable.NewWriter()
	header := make(prettytable.Row, 0, tbl.NumCols())
	for _, c := range tbl.Columns() {
		header = append(header, c)
	}
	t.AppendHeader(header)
	for r := 0; r < tbl.NumRows(); r++ {
		row := make(prettytable.Row, 0, tbl.NumCols())
		for c := 0; c < tbl.NumCols(); c++ {
			row = append(row, tbl.CellString(r, c))
		}
		t.AppendRow(row)
	}
	return t.Render()
}

func init() {
	rootCmd.AddCommand(pivotCmd)
	pivotCmd.AddCommand(pivotCreateCmd)
	pivotCmd.AddCommand(pivotShowCmd)
	pivotCmd.AddCommand(pivotDeleteCmd)
	pivotCreateCmd.Flags().StringVarP(&pivotDataset, "dataset", "d", "", "source dataset name or ID")
	pivotCreateCmd.Flags().StringSliceVarP(&pivotRows, "rows", "r", nil, "group-by columns")
	pivotCreateCmd.Flags().StringSliceVarP(&pivotValues, "values", "v", nil, "numeric value columns")
	pivotCreateCmd.Flags().StringVarP(&pivotAgg, "agg", "a", "sum", "aggregation: "+strings.Join(aggNames(), ", "))
	pivotCreateCmd.Flags().StringArrayVarP(&pivotFilters, "filter", "f", nil, "filter as column=value[,value...] (repeatable)")
}

func aggNames() []string {
	aggs := pivot.Aggregations()
	out := make([]string, len(aggs))
	for i, a := range aggs {
		out[i] = string(a)
	}
	return out
}
