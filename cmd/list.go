package cmd

import (
	"fmt"
	"strings"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pivotlens/pivotlens/internal/session"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets and pivot tables in the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, closeStore, err := loadSession(nil)
		if err != nil {
			return err
		}
		defer closeStore()
		printDatasets(s)
		fmt.Println()
		printPivots(s)
		return nil
	},
}

func printDatasets(s *session.Session) {
	datasets := s.Registry.List()
	if len(datasets) == 0 {
		fmt.Println("No datasets. Use 'pivotlens ingest <file.csv>' to add one.")
		return
	}
	t := prettytable.NewWriter()
	t.AppendHeader(prettytable.Row{"ID", "Name", "Rows", "Columns"})
	for _, ds := range datasets {
		t.AppendRow(prettytable.Row{shortID(ds.ID), ds.Name, ds.Table.NumRows(), ds.Table.NumCols()})
	}
	fmt.Println("Datasets:")
	fmt.Println(t.Render())
}

func printPivots(s *session.Session) {
	views := s.Views()
	if len(views) == 0 {
		fmt.Println("No pivot tables. Use 'pivotlens pivot create' to build one.")
		return
	}
	t := prettytable.NewWriter()
	t.AppendHeader(prettytable.Row{"ID", "Name", "Group by", "Values", "Agg"})
	for _, v := range views {
		t.AppendRow(prettytable.Row{shortID(v.ID), v.Name, strings.Join(v.Spec.GroupBy, ", "), strings.Join(v.Spec.Values, ", "), string(v.Spec.Agg)})
	}
	fmt.Println("Pivot tables:")
	fmt.Println(t.Render())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
