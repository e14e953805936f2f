package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/solatis/mailrules/internal/core/db"
	"github.com/solatis/mailrules/internal/types"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recent rule runs, or the action outcomes of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().Int("limit", db.DefaultRunLimit, "number of runs to list")
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := rt.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	if len(args) == 1 {
		runID, err := types.ParseRunID(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", args[0], err)
		}
		outcomes, err := store.ListOutcomes(ctx, runID)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "#\tRULE\tMESSAGE\tACTION\tRESULT")
		for _, o := range outcomes {
			result := "ok"
			if o.Error.Valid {
				result = o.Error.String
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", o.Position, o.RuleName, o.RecordID, o.Action, result)
		}
		return w.Flush()
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tRECORDS\tMATCHED\tOK\tFAILED\tNOTE")
	for _, r := range runs {
		note := ""
		switch {
		case r.Interrupted:
			note = "interrupted"
		case r.DryRun:
			note = "dry run"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Records, r.Matched, r.ActionsOK, r.ActionsFailed+r.PairFailures, note)
	}
	return w.Flush()
}
