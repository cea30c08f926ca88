package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pivotlens/pivotlens/internal/dataset"
	"github.com/pivotlens/pivotlens/internal/session"
)

var joinName string

var joinCmd = &cobra.Command{
	Use:   "join <dataset> <dataset> [dataset...]",
	Short: "Concatenate datasets with identical columns into a new dataset",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(nil, func(s *session.Session) error {
			parts := make([]*dataset.Dataset, 0, len(args))
			for _, ref := range args {
				ds, ok := s.Registry.Lookup(ref)
				if !ok {
					return fmt.Errorf("dataset %q not found", ref)
				}
				parts = append(parts, ds)
			}
			name := joinName
			if name == "" {
				name = "joined"
			}
			joined, err := s.Registry.Join(name, parts...)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Datasets joined: %s (%d rows, %d columns)\n", joined.Name, joined.Table.NumRows(), joined.Table.NumCols())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
	joinCmd.Flags().StringVarP(&joinName, "name", "n", "", "name for the joined dataset")
}
