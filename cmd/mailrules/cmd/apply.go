package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/solatis/mailrules/internal/core/db"
	"github.com/solatis/mailrules/internal/core/mailbox"
	"github.com/solatis/mailrules/internal/rules"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the rules to every stored message",
	Long: `Loads the rule document and the stored messages, evaluates every rule
against every message and performs the actions of matching rules through
IMAP. The run report is saved to the run log.

With --dry-run the actions are logged instead of sent. Label names are still
resolved against the server when IMAP is configured.`,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().Bool("dry-run", false, "log actions instead of performing them")
	applyCmd.Flags().String("rules", "", "rule document path (overrides rules.file)")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("dry-run") {
		rt.cfg.Engine.DryRun, _ = cmd.Flags().GetBool("dry-run")
	}
	if cmd.Flags().Changed("rules") {
		rt.cfg.RulesFile, _ = cmd.Flags().GetString("rules")
	}

	store, closeStore, err := rt.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var mutator rules.Mutator
	if !rt.cfg.Engine.DryRun || rt.cfg.IMAP.Host != "" {
		session, err := mailbox.Dial(ctx, rt.cfg.IMAP, rt.log)
		if err != nil {
			return err
		}
		defer session.Close()
		mutator = mailbox.NewMutator(session, rt.cfg.IMAP.Mailbox)
	}
	if rt.cfg.Engine.DryRun {
		mutator = mailbox.NewDryRunMutator(mutator, rt.log)
	}

	engine, err := rules.NewEngine(ctx, rules.FileLoader{Path: rt.cfg.RulesFile}, store, mutator, rules.Options{
		ActionTimeout: rt.cfg.Engine.ActionTimeout,
		Logger:        rt.log,
	})
	if err != nil {
		return err
	}

	report, runErr := engine.ApplyRules(ctx)
	if report == nil {
		return runErr
	}

	// Persist even an interrupted run; the report is what was attempted.
	flags := db.RunFlags{Interrupted: runErr != nil, DryRun: rt.cfg.Engine.DryRun}
	saveCtx := ctx
	if runErr != nil {
		saveCtx = cmd.Context()
	}
	if err := store.SaveRun(saveCtx, report, flags); err != nil {
		return errors.Join(runErr, err)
	}

	printReport(cmd.OutOrStdout(), report, flags)
	if runErr != nil {
		return runErr
	}
	if report.HasFailures() {
		return fmt.Errorf("run %s finished with %d failed actions and %d failed pairs",
			report.RunID, report.ActionsFailed(), len(report.PairFailures))
	}
	return nil
}

func printReport(w io.Writer, r *rules.Report, flags db.RunFlags) {
	mode := ""
	if flags.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "Run %s%s\n", r.RunID, mode)
	fmt.Fprintf(w, "  rules: %d  records: %d  evaluated: %d  matched: %d\n",
		r.Rules, r.Records, r.Evaluated, r.Matched)
	fmt.Fprintf(w, "  actions: %d ok, %d failed  pair failures: %d\n",
		r.ActionsOK(), r.ActionsFailed(), len(r.PairFailures))
	for _, o := range r.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "  FAILED %s on %s (%s): %v\n", o.Action, o.RecordID, o.RuleName, o.Err)
		}
	}
	for _, pf := range r.PairFailures {
		fmt.Fprintf(w, "  FAILED rule %s on %s: %v\n", pf.RuleName, pf.RecordID, pf.Err)
	}
}
