package cmd

import (
	"fmt"

	"github.com/solatis/mailrules/internal/core/mailbox"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the newest inbox messages into the record store",
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().Int("limit", 0, "number of newest messages to fetch (overrides imap.fetch_limit)")
	fetchCmd.Flags().String("mailbox", "", "mailbox to fetch from (overrides imap.mailbox)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("limit") {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			return fmt.Errorf("--limit must be positive, got %d", limit)
		}
		rt.cfg.IMAP.FetchLimit = limit
	}
	if cmd.Flags().Changed("mailbox") {
		rt.cfg.IMAP.Mailbox, _ = cmd.Flags().GetString("mailbox")
	}

	store, closeStore, err := rt.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	session, err := mailbox.Dial(ctx, rt.cfg.IMAP, rt.log)
	if err != nil {
		return err
	}
	defer session.Close()

	records, err := mailbox.NewSource(session, rt.cfg.IMAP.Mailbox, rt.cfg.IMAP.FetchLimit).Fetch(ctx)
	if err != nil {
		return err
	}

	n, err := store.SaveRecords(ctx, records)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d messages from %s\n", n, rt.cfg.IMAP.Mailbox)
	return nil
}
