package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"av1conv/internal/dirs"
	"av1conv/internal/history"
	"av1conv/internal/util/format"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "history",
		Short:         "List recent runs from the history database",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			limit, _ := cmd.Flags().GetInt("limit")
			items, _ := cmd.Flags().GetBool("items")

			path := a.cfg.History.Path
			if path == "" {
				p, err := dirs.HistoryPath()
				if err != nil {
					return &ExitError{Code: ExitCLIError, Err: err}
				}
				path = p
			}
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded yet")
				return nil
			}
			st, err := history.Open(path, a.log)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			defer st.Close()

			runs, err := st.Recent(limit)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), runsTable(runs))
			if items {
				for _, r := range runs {
					fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", r.ID)
					for _, it := range r.Items {
						fmt.Fprintf(cmd.OutOrStdout(), "  %-9s %s%s\n", it.Outcome, it.Source, itemDetail(it))
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 10, "Number of runs to show")
	cmd.Flags().Bool("items", false, "Also list the files of each run")
	cmd.Flags().String("history-db", "", "History database path")
	return cmd
}

func runsTable(runs []history.Run) string {
	header := lipgloss.NewStyle().Bold(true)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == 0 {
				return header.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("STARTED", "ENCODER", "CONVERTED", "SKIPPED", "FAILED", "DELETED", "SAVED")
	for _, r := range runs {
		t.Row(
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Encoder,
			strconv.Itoa(r.Converted),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Deleted),
			format.HumanizeBytes(r.BytesSaved),
		)
	}
	return t.Render()
}

func itemDetail(it history.Item) string {
	s := ""
	if it.VMAF != nil {
		s += fmt.Sprintf(" vmaf=%.2f", *it.VMAF)
	}
	if it.Decision != "" {
		s += " " + it.Decision
	}
	if it.Detail != "" {
		s += " (" + it.Detail + ")"
	}
	return s
}
