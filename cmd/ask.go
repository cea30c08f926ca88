package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pivotlens/pivotlens/internal/session"
)

var askPivot string

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a natural-language question about a pivot table",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		llm, err := newCompleter()
		if err != nil {
			return err
		}
		return withSession(llm, func(s *session.Session) error {
			ref, err := resolvePivotRef(s, askPivot)
			if err != nil {
				return err
			}
			msg, err := s.Ask(cmd.Context(), ref, question)
			// A failed question is kept in the conversation; still persist it.
			if msg.Content != "" {
				fmt.Println(msg.Content)
			}
			if err != nil && debug {
				fmt.Printf("(debug) %v\n", err)
			}
			return nil
		})
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-ask the last question with a fresh computation",
	RunE: func(cmd *cobra.Command, args []string) error {
		llm, err := newCompleter()
		if err != nil {
			return err
		}
		return withSession(llm, func(s *session.Session) error {
			ref, err := resolvePivotRef(s, askPivot)
			if err != nil {
				return err
			}
			msg, err := s.ReAsk(cmd.Context(), ref)
			if msg.Content != "" {
				fmt.Println(msg.Content)
			}
			if err != nil && debug {
				fmt.Printf("(debug) %v\n", err)
			}
			return nil
		})
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Explain in plain English how the last answer was computed",
	RunE: func(cmd *cobra.Command, args []string) error {
		llm, err := newCompleter()
		if err != nil {
			return err
		}
		s, _, closeStore, err := loadSession(llm)
		if err != nil {
			return err
		}
		defer closeStore()
		ref, err := resolvePivotRef(s, askPivot)
		if err != nil {
			return err
		}
		explanation, err := s.Explain(cmd.Context(), ref)
		if err != nil {
			return err
		}
		fmt.Println(explanation)
		return nil
	},
}

// resolvePivotRef defaults to the only pivot when --pivot is omitted.
func resolvePivotRef(s *session.Session, ref string) (string, error) {
	if ref != "" {
		return ref, nil
	}
	views := s.Views()
	switch len(views) {
	case 0:
		return "", fmt.Errorf("no pivot tables yet; create one with 'pivotlens pivot create'")
	case 1:
		return views[0].ID, nil
	default:
		return "", fmt.Errorf("multiple pivot tables exist; pick one with --pivot")
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(explainCmd)
	for _, c := range []*cobra.Command{askCmd, retryCmd, explainCmd} {
		c.Flags().StringVarP(&askPivot, "pivot", "p", "", "pivot table name or ID")
	}
}
