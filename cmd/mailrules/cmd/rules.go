package cmd

import (
	"fmt"
	"strings"

	"github.com/solatis/mailrules/internal/rules"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect rule documents",
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a rule document and print the compiled rules",
	Long: `Loads and compiles a rule document without touching the store or the
mailbox. Each condition is shown with its evaluation cost; cheaper
conditions run first. Defaults to rules.file from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRulesCheck,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	path := rt.cfg.RulesFile
	if len(args) == 1 {
		path = args[0]
	}

	docs, err := rules.FileLoader{Path: path}.LoadRules(ctx)
	if err != nil {
		return err
	}
	compiled, err := rules.CompileAll(docs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d rules OK\n", path, len(compiled))
	for _, r := range compiled {
		fmt.Fprintf(out, "\n%s (%s)\n", r.Name, r.Combinator)
		for _, c := range r.Conditions {
			fmt.Fprintf(out, "  if %s %s %q  [cost %d]\n", c.FieldName, c.PredicateName, c.Value, c.Cost)
		}
		actions := make([]string, len(r.Actions))
		for i, a := range r.Actions {
			actions[i] = a.String()
		}
		fmt.Fprintf(out, "  then %s\n", strings.Join(actions, ", "))
	}
	return nil
}
