package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wxledgerhq/wxledger/internal/config"
	"github.com/wxledgerhq/wxledger/internal/ledger"
)

// loginCmd verifies the stored credentials against the ledger service and
// lists the subject's account books so the operator can pick a book ID for
// the config.
func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify ledger credentials and list account books",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if cfg.Ledger.ServerURL == "" || cfg.Ledger.Username == "" || cfg.Ledger.Password == "" {
				return fmt.Errorf("ledger.server_url, ledger.username and WXLEDGER_PASSWORD are required")
			}

			client := ledger.NewClient(cfg.Ledger.ServerURL, cfg.Ledger.Timeout())
			res, err := client.Login(cmd.Context(), cfg.Ledger.Username, cfg.Ledger.Password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			cmd.Printf("logged in as %s (%s)\n", res.User.Name, res.User.Email)

			books, err := client.AccountBooks(cmd.Context(), res.Token)
			if err != nil {
				return fmt.Errorf("list account books: %w", err)
			}
			if len(books) == 0 {
				cmd.Println("no account books found")
				return nil
			}

			cmd.Println("\naccount books:")
			for _, b := range books {
				marker := " "
				if b.IsDefault {
					marker = "*"
				}
				cmd.Printf("  %s %s  %s\n", marker, b.ID, b.Name)
			}
			cmd.Println("\nset ledger.account_book_id in the config to one of the IDs above")
			return nil
		},
	}
}
