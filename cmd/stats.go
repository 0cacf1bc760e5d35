package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wxledgerhq/wxledger/internal/config"
	"github.com/wxledgerhq/wxledger/internal/history"
)

// statsCmd prints per-conversation delivery statistics from the local
// history database.
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-conversation delivery statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if cfg.History.Disabled {
				return fmt.Errorf("history is disabled in the config")
			}

			store, err := history.OpenSQLite(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("query stats: %w", err)
			}
			if len(stats) == 0 {
				cmd.Println("no history yet")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CONVERSATION\tADMITTED\tDELIVERED\tFAILED")
			for _, st := range stats {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", st.Conversation, st.Admitted, st.Delivered, st.Failed)
			}
			return w.Flush()
		},
	}
}
