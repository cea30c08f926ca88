package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pivotlens/pivotlens/internal/ai"
	"github.com/pivotlens/pivotlens/internal/dataset"
	"github.com/pivotlens/pivotlens/internal/query"
	"github.com/pivotlens/pivotlens/internal/schema"
	"github.com/pivotlens/pivotlens/internal/session"
	"github.com/pivotlens/pivotlens/internal/storage"
	"github.com/pivotlens/pivotlens/internal/table"
)

var (
	ingestName     string
	ingestSheet    string
	ingestDescribe bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Load a CSV, TSV, or XLSX file into the session as a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]
		name := ingestName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}

		origBytes, err := os.ReadFile(file)
		if err != nil {
			return err
		}

		var raw *table.Raw
		if strings.EqualFold(filepath.Ext(file), ".xlsx") {
			raw, err = table.ReadXLSXFile(file, ingestSheet)
		} else {
			raw, err = table.ReadCSVFile(file)
		}
		if err != nil {
			return err
		}

		llm := maybeCompleter()
		return withSessionStore(llm, func(s *session.Session, store storage.BlobStore) error {
			ds, err := s.Registry.Ingest(name, raw)
			if err != nil {
				return err
			}
			if err := session.SaveRaw(store, ds.ID, origBytes); err != nil {
				return fmt.Errorf("store raw upload: %w", err)
			}
			if ingestDescribe {
				if llm == nil {
					return fmt.Errorf("--describe needs an API key")
				}
				describeDataset(cmd.Context(), llm, ds)
			}
			fmt.Printf("✓ Dataset ingested: %s (%d rows, %d columns)\n", ds.Name, ds.Table.NumRows(), ds.Table.NumCols())
			fmt.Println(renderColumnKinds(ds))
			if ds.Description != "" {
				fmt.Println()
				fmt.Println(ds.Description)
			}
			return nil
		})
	},
}

func describeDataset(ctx context.Context, llm ai.Completer, ds *dataset.Dataset) {
	sch := schema.Describe(ds.Table)
	rows := ds.Table.Rows()
	if len(rows) > 5 {
		rows = rows[:5]
	}
	desc, err := query.DescribeTable(ctx, llm, ds.Name, sch, rows, ds.Table.Columns())
	if err != nil {
		fmt.Printf("⚠ Warning: description generation failed: %v\n", err)
		return
	}
	ds.Description = desc
}

func renderColumnKinds(ds *dataset.Dataset) string {
	t := prettytable.NewWriter()
	t.AppendHeader(prettytable.Row{"Column", "Kind"})
	for _, c := range ds.Table.Columns() {
		t.AppendRow(prettytable.Row{c, string(ds.Kinds[c])})
	}
	return t.Render()
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestName, "name", "n", "", "dataset name (default: file basename)")
	ingestCmd.Flags().StringVar(&ingestSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	ingestCmd.Flags().BoolVar(&ingestDescribe, "describe", false, "generate an AI description of the dataset")
}
