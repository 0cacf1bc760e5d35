package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/wxledgerhq/wxledger/internal/config"
	"github.com/wxledgerhq/wxledger/internal/ledger"
	"github.com/wxledgerhq/wxledger/internal/wechat"
)

// doctorCmd checks every external dependency the pipeline needs at runtime.
func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check bridge and ledger connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			check := func(name string, err error) {
				if err != nil {
					cmd.Printf("FAIL  %s: %v\n", name, err)
				} else {
					cmd.Printf("ok    %s\n", name)
				}
			}

			driver := wechat.NewBridgeClient(cfg.Bridge.BaseURL, cfg.Bridge.Timeout())
			check("automation bridge "+cfg.Bridge.BaseURL, driver.Ping(ctx))

			if cfg.Ledger.ServerURL == "" || cfg.Ledger.Username == "" || cfg.Ledger.Password == "" {
				cmd.Println("skip  ledger login (credentials not configured)")
			} else {
				client := ledger.NewClient(cfg.Ledger.ServerURL, cfg.Ledger.Timeout())
				_, err := client.Login(ctx, cfg.Ledger.Username, cfg.Ledger.Password)
				check("ledger login "+cfg.Ledger.ServerURL, err)
			}

			// Filter self-check: the reply template must trip its own echo
			// detector, or sent replies would loop back through the pipeline.
			sample := "✅ 记账成功！\n📝 明细：午饭\n💰 金额：20元"
			if wechat.IsReplyEcho(sample) {
				cmd.Println("ok    self-echo filter recognizes the reply template")
			} else {
				cmd.Println("FAIL  self-echo filter does not recognize the reply template")
			}

			if len(cfg.Monitor.Conversations) == 0 {
				cmd.Println("warn  monitor.conversations is empty")
			} else {
				cmd.Printf("ok    %d conversation(s) configured\n", len(cfg.Monitor.Conversations))
			}
			return nil
		},
	}
}
