package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func createAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Ledger account commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "balance [address]",
		Short: "Show an account's ether balance (default: the caller)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			c := newClient()

			var addr string
			if len(args) == 1 {
				addr = args[0]
			} else {
				var err error
				if addr, err = whoAmI(ctx, c); err != nil {
					return err
				}
			}

			bal, err := c.Balance(ctx, addr)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(map[string]string{"address": addr, "balance": bal})
			}
			fmt.Printf("%s: %s\n", addr, formatEther(bal))
			return nil
		},
	})

	return cmd
}

func createWhoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the address requests act as",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := newClient().WhoAmI(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(id)
			}
			if id.KeyName != "" {
				fmt.Printf("%s (key %s)\n", id.Address, id.KeyName)
			} else {
				fmt.Println(id.Address)
			}
			return nil
		},
	}
}
