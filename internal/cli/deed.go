package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nomadhouse/nomadhouse/pkg/client"
)

func createDeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deed",
		Short: "Deed queries and transfers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <deed-id>",
		Short: "Show a deed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			deed, err := newClient().GetDeed(context.Background(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(deed)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Deed:\t%d\n", deed.ID)
			fmt.Fprintf(w, "Title:\t%s\n", deed.TitleID)
			fmt.Fprintf(w, "Owner:\t%s\n", deed.Owner)
			fmt.Fprintf(w, "URI:\t%s\n", orUnset(deed.URI))
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "balance <owner> <deed-id>",
		Short: "Show how many units of a deed an address holds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			n, err := newClient().BalanceOf(context.Background(), args[0], id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(map[string]uint64{"balance": n})
			}
			fmt.Println(n)
			return nil
		},
	})

	var revoke bool
	approve := &cobra.Command{
		Use:   "approve <operator>",
		Short: "Approve an operator (such as the marketplace) to move your deeds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().SetApprovalForAll(context.Background(), args[0], !revoke); err != nil {
				return err
			}
			if revoke {
				fmt.Printf("✅ Revoked approval for %s\n", args[0])
			} else {
				fmt.Printf("✅ Approved %s\n", args[0])
			}
			return nil
		},
	}
	approve.Flags().BoolVar(&revoke, "revoke", false, "revoke the approval instead")
	cmd.AddCommand(approve)

	cmd.AddCommand(&cobra.Command{
		Use:   "approved <owner> <operator>",
		Short: "Check whether an operator may move an owner's deeds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := newClient().IsApprovedForAll(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(map[string]bool{"approved": ok})
			}
			fmt.Println(ok)
			return nil
		},
	})

	var from string
	transfer := &cobra.Command{
		Use:   "transfer <to> <deed-id>",
		Short: "Transfer a deed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			ctx := context.Background()
			c := newClient()
			if from == "" {
				if from, err = whoAmI(ctx, c); err != nil {
					return err
				}
			}
			if err := c.Transfer(ctx, from, args[0], id); err != nil {
				return err
			}
			fmt.Printf("✅ Deed %d transferred to %s\n", id, args[0])
			return nil
		},
	}
	transfer.Flags().StringVar(&from, "from", "", "current owner (default: the caller)")
	cmd.AddCommand(transfer)

	return cmd
}

func whoAmI(ctx context.Context, c *client.Client) (string, error) {
	id, err := c.WhoAmI(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving caller: %w", err)
	}
	return id.Address, nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
