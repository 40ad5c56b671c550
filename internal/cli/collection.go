package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nomadhouse/nomadhouse/pkg/client"
)

func createCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"col"},
		Short:   "Deed collection commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show collection state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showCollection(context.Background(), newClient(), os.Stdout)
		},
	})

	// Owner-only settings
	cmd.AddCommand(ownerCmd("set-token-uri <uri>", "Set the deed metadata base URI", 1,
		func(ctx context.Context, c *client.Client, args []string) error { return c.SetTokenURI(ctx, args[0]) }))
	cmd.AddCommand(ownerCmd("set-title-search-uri <uri>", "Set the title search base URI used by the oracle", 1,
		func(ctx context.Context, c *client.Client, args []string) error { return c.SetTitleSearchURI(ctx, args[0]) }))
	cmd.AddCommand(ownerCmd("set-marketplace <address>", "Set the marketplace allowed to move deeds", 1,
		func(ctx context.Context, c *client.Client, args []string) error { return c.SetMarketplace(ctx, args[0]) }))
	cmd.AddCommand(ownerCmd("pause", "Pause title verification and minting", 0,
		func(ctx context.Context, c *client.Client, args []string) error { return c.PauseCollection(ctx) }))
	cmd.AddCommand(ownerCmd("unpause", "Resume title verification and minting", 0,
		func(ctx context.Context, c *client.Client, args []string) error { return c.UnpauseCollection(ctx) }))
	cmd.AddCommand(ownerCmd("authorize <wallet>", "Authorize a wallet to verify titles and mint deeds", 1,
		func(ctx context.Context, c *client.Client, args []string) error { return c.AuthorizeWallet(ctx, args[0]) }))
	cmd.AddCommand(ownerCmd("revoke <wallet>", "Revoke a wallet's authorization", 1,
		func(ctx context.Context, c *client.Client, args []string) error { return c.RevokeWallet(ctx, args[0]) }))

	cmd.AddCommand(&cobra.Command{
		Use:   "authorized <wallet>",
		Short: "Check whether a wallet is authorized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := newClient().IsAuthorized(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(map[string]bool{"authorized": ok})
			}
			fmt.Println(ok)
			return nil
		},
	})

	return cmd
}

// ownerCmd builds a command that performs one write and reports success
func ownerCmd(use, short string, nargs int, fn func(context.Context, *client.Client, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := fn(context.Background(), newClient(), args); err != nil {
				return err
			}
			fmt.Println("✅ Done")
			return nil
		},
	}
}

func showCollection(ctx context.Context, c *client.Client, out io.Writer) error {
	col, err := c.Collection(ctx)
	if err != nil {
		return fmt.Errorf("failed to get collection: %w", err)
	}
	if jsonOutput {
		return printJSON(col)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Collection:\t%s (%s)\n", col.Name, col.Symbol)
	fmt.Fprintf(w, "Address:\t%s\n", col.Address)
	fmt.Fprintf(w, "Owner:\t%s\n", col.Owner)
	fmt.Fprintf(w, "Paused:\t%v\n", col.Paused)
	fmt.Fprintf(w, "Marketplace:\t%s\n", col.Marketplace)
	fmt.Fprintf(w, "Token URI:\t%s\n", orUnset(col.TokenURI))
	fmt.Fprintf(w, "Title search URI:\t%s\n", orUnset(col.TitleSearchURI))
	fmt.Fprintf(w, "Oracle:\t%s (job %s, fee %s)\n", col.Oracle, col.JobID, formatEther(col.OracleFee))
	fmt.Fprintf(w, "Requests:\t%d\n", col.RequestCount)
	fmt.Fprintf(w, "Deeds:\t%d\n", col.DeedCount)
	return w.Flush()
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
