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

func createMarketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Marketplace commands",
		Long: `Post, buy and settle deed listings.

Amounts accept wei or a unit suffix: 1000, 1.5eth, 20gwei.

EXAMPLES:
  # Approve the marketplace, then list deed 1 for one ether
  nomadhouse deed approve $(nomadhouse market info --json | jq -r .address)
  nomadhouse market post 1 1eth

  # Buy it
  nomadhouse market buy 1 1eth --as 0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC

  # Seller collects the proceeds
  nomadhouse market collect 1
`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show marketplace state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMarket(context.Background(), newClient(), os.Stdout)
		},
	})
	cmd.AddCommand(createMarketListCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "show <listing-id>",
		Short: "Show a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			l, err := newClient().GetListing(context.Background(), id)
			if err != nil {
				return err
			}
			return printListing(os.Stdout, l)
		},
	})
	cmd.AddCommand(createMarketPostCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "buy <listing-id> <value>",
		Short: "Buy an active listing, paying exactly its price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			value, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			l, err := newClient().Buy(context.Background(), id, value)
			if err != nil {
				return fmt.Errorf("failed to buy: %w", err)
			}
			return printListing(os.Stdout, l)
		},
	})
	cmd.AddCommand(listingActionCmd("pause", "Pause an active listing", (*client.Client).PauseListing))
	cmd.AddCommand(listingActionCmd("unpause", "Reactivate a paused listing", (*client.Client).UnpauseListing))
	cmd.AddCommand(listingActionCmd("cancel", "Cancel a listing", (*client.Client).CancelListing))
	cmd.AddCommand(createMarketCollectCmd())
	cmd.AddCommand(createMarketCollectFeesCmd())

	return cmd
}

func createMarketListCmd() *cobra.Command {
	var start uint64
	var count int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listListings(context.Background(), newClient(), os.Stdout, start, count)
		},
	}

	cmd.Flags().Uint64Var(&start, "start", 1, "first listing id")
	cmd.Flags().IntVar(&count, "count", 20, "number of listings")

	return cmd
}

func createMarketPostCmd() *cobra.Command {
	var paused bool

	cmd := &cobra.Command{
		Use:   "post <deed-id> <price>",
		Short: "List a deed for sale",
		Long: `List a deed for sale. The marketplace must be approved to move your deeds
(see 'nomadhouse deed approve'). Listings start active unless --paused is set.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := parseID(args[0])
			if err != nil {
				return err
			}
			price, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			req := client.PostRequest{TokenID: tokenID, Price: price}
			if paused {
				active := false
				req.StartsActive = &active
			}
			l, err := newClient().PostListing(context.Background(), req)
			if err != nil {
				return fmt.Errorf("failed to post listing: %w", err)
			}
			return printListing(os.Stdout, l)
		},
	}

	cmd.Flags().BoolVar(&paused, "paused", false, "post the listing paused")

	return cmd
}

func listingActionCmd(use, short string, fn func(*client.Client, context.Context, uint64) (*client.Listing, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <listing-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			l, err := fn(newClient(), context.Background(), id)
			if err != nil {
				return err
			}
			return printListing(os.Stdout, l)
		},
	}
}

func createMarketCollectCmd() *cobra.Command {
	var gas uint64

	cmd := &cobra.Command{
		Use:   "collect <listing-id>",
		Short: "Collect the proceeds of a sold listing (seller only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := newClient().Collect(context.Background(), id, getGasLimit(gas))
			if err != nil {
				return fmt.Errorf("failed to collect: %w", err)
			}
			return printPayout(os.Stdout, p)
		},
	}

	cmd.Flags().Uint64Var(&gas, "gas", 0, "gas limit for the payout (default from config or server)")

	return cmd
}

func createMarketCollectFeesCmd() *cobra.Command {
	var gas uint64

	cmd := &cobra.Command{
		Use:   "collect-fees",
		Short: "Collect accumulated marketplace fees (owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newClient().CollectFees(context.Background(), getGasLimit(gas))
			if err != nil {
				return fmt.Errorf("failed to collect fees: %w", err)
			}
			return printPayout(os.Stdout, p)
		},
	}

	cmd.Flags().Uint64Var(&gas, "gas", 0, "gas limit for the payout (default from config or server)")

	return cmd
}

func showMarket(ctx context.Context, c *client.Client, out io.Writer) error {
	m, err := c.Market(ctx)
	if err != nil {
		return fmt.Errorf("failed to get marketplace: %w", err)
	}
	if jsonOutput {
		return printJSON(m)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Marketplace:\t%s\n", m.Address)
	fmt.Fprintf(w, "Owner:\t%s\n", m.Owner)
	fmt.Fprintf(w, "Collection:\t%s\n", m.NFT)
	fmt.Fprintf(w, "Fee:\t%d%%\n", m.FeePercent)
	fmt.Fprintf(w, "Collectable fees:\t%s\n", formatEther(m.CollectableFees))
	fmt.Fprintf(w, "Balance:\t%s\n", formatEther(m.Balance))
	fmt.Fprintf(w, "Listings:\t%d\n", m.ListingCount)
	return w.Flush()
}

func listListings(ctx context.Context, c *client.Client, out io.Writer, start uint64, count int) error {
	resp, err := c.GetListings(ctx, start, count)
	if err != nil {
		return fmt.Errorf("failed to list listings: %w", err)
	}
	if jsonOutput {
		return printJSON(resp)
	}
	if len(resp.Data) == 0 {
		fmt.Fprintln(out, "No listings found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEED\tSTATE\tPRICE\tSELLER\tBUYER")
	for _, l := range resp.Data {
		buyer := "-"
		if l.State == "Sold" {
			buyer = truncateAddress(l.Buyer)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
			l.ID, l.TokenID, l.State, formatEther(l.Price), truncateAddress(l.Seller), buyer)
	}
	return w.Flush()
}

func printListing(out io.Writer, l *client.Listing) error {
	if jsonOutput {
		return printJSON(l)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Listing:\t%d\n", l.ID)
	fmt.Fprintf(w, "Deed:\t%d\n", l.TokenID)
	fmt.Fprintf(w, "State:\t%s\n", l.State)
	fmt.Fprintf(w, "Price:\t%s (%s wei)\n", formatEther(l.Price), l.Price)
	fmt.Fprintf(w, "Seller:\t%s\n", l.Seller)
	if l.State == "Sold" {
		fmt.Fprintf(w, "Buyer:\t%s\n", l.Buyer)
	}
	return w.Flush()
}

func printPayout(out io.Writer, p *client.Payout) error {
	if jsonOutput {
		return printJSON(p)
	}
	fmt.Fprintf(out, "✅ Paid %s to %s\n", formatEther(p.Amount), p.To)
	return nil
}
