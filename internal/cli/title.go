package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nomadhouse/nomadhouse/pkg/client"
)

func createTitleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "title",
		Short: "Title verification and minting",
		Long: `Verify property titles with the title oracle and mint deeds against them.

A verified title can be split into as many deeds as its fractionalization.

EXAMPLES:
  # Request verification of a title
  nomadhouse title verify lot-7.json

  # Watch the request
  nomadhouse title requests --title lot-7.json

  # Mint two deeds once the title is verified
  nomadhouse title mint lot-7.json 2
`,
	}

	cmd.AddCommand(createTitleVerifyCmd())
	cmd.AddCommand(createTitleRequestsCmd())
	cmd.AddCommand(createTitleRequestCmd())
	cmd.AddCommand(createTitleFulfillCmd())
	cmd.AddCommand(createTitleShowCmd())
	cmd.AddCommand(createTitleMintCmd())

	return cmd
}

func createTitleVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <title-id>",
		Short: "Request title verification from the oracle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := newClient().VerifyTitle(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to request verification: %w", err)
			}
			if jsonOutput {
				return printJSON(req)
			}
			fmt.Printf("✅ Verification requested for %s\n", req.TitleID)
			fmt.Printf("   Request: %s\n", req.ID)
			fmt.Printf("   URL:     %s\n", req.URL)
			return nil
		},
	}
}

func createTitleRequestsCmd() *cobra.Command {
	var status, titleID string
	var limit int

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List title verification requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRequests(context.Background(), newClient(), os.Stdout, status, titleID, limit)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, fulfilled, rejected)")
	cmd.Flags().StringVar(&titleID, "title", "", "filter by title id")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of items to show")

	return cmd
}

func createTitleRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <request-id>",
		Short: "Show a title verification request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := newClient().GetRequest(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(req)
			}
			return printRequest(os.Stdout, req)
		},
	}
}

func createTitleFulfillCmd() *cobra.Command {
	var owner string
	var fractionalization uint64
	var verified bool

	cmd := &cobra.Command{
		Use:   "fulfill <request-id>",
		Short: "Answer a title request (oracle account only)",
		Long: `Answer a pending title request by hand. Only the oracle address may do this;
the 'nomadhouse-server oracle' worker normally answers requests.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := newClient().Fulfill(context.Background(), args[0], client.Fulfillment{
				Owner:             owner,
				Fractionalization: fractionalization,
				Verified:          verified,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(req)
			}
			return printRequest(os.Stdout, req)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "title owner address (required)")
	cmd.Flags().Uint64Var(&fractionalization, "fractionalization", 0, "number of deeds the title splits into")
	cmd.Flags().BoolVar(&verified, "verified", false, "whether the title search verified ownership")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func createTitleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <title-id>",
		Short: "Show a verified title and its deeds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, err := newClient().GetTitle(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(title)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Title:\t%s\n", title.ID)
			fmt.Fprintf(w, "Owner:\t%s\n", title.Owner)
			fmt.Fprintf(w, "Fractionalization:\t%d\n", title.Fractionalization)
			fmt.Fprintf(w, "Left to mint:\t%d\n", title.DeedsLeftToMint)
			fmt.Fprintf(w, "Deeds:\t%v\n", title.Deeds)
			return w.Flush()
		},
	}
}

func createTitleMintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint <title-id> <count>",
		Short: "Mint deeds against a verified title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid count %q", args[1])
			}
			ids, err := newClient().MintDeeds(context.Background(), args[0], count)
			if err != nil {
				return fmt.Errorf("failed to mint: %w", err)
			}
			if jsonOutput {
				return printJSON(map[string]any{"deeds": ids})
			}
			fmt.Printf("✅ Minted %d deed(s) for %s: %v\n", len(ids), args[0], ids)
			return nil
		},
	}
}

func listRequests(ctx context.Context, c *client.Client, out io.Writer, status, titleID string, limit int) error {
	reqs, err := c.ListRequests(ctx, status, titleID, limit)
	if err != nil {
		return fmt.Errorf("failed to list requests: %w", err)
	}
	if jsonOutput {
		return printJSON(map[string]any{"requests": reqs, "count": len(reqs)})
	}
	if len(reqs) == 0 {
		fmt.Fprintln(out, "No requests found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REQUEST\tTITLE\tREQUESTER\tSTATUS\tOWNER")
	for _, r := range reqs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncateAddress(r.ID), r.TitleID, truncateAddress(r.Requester), r.Status, truncateAddress(r.Owner))
	}
	return w.Flush()
}

func printRequest(out io.Writer, r *client.TitleRequest) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Request:\t%s\n", r.ID)
	fmt.Fprintf(w, "Title:\t%s\n", r.TitleID)
	fmt.Fprintf(w, "Requester:\t%s\n", r.Requester)
	fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	if r.Status != client.StatusPending {
		fmt.Fprintf(w, "Owner:\t%s\n", r.Owner)
		fmt.Fprintf(w, "Fractionalization:\t%d\n", r.Fractionalization)
		fmt.Fprintf(w, "Verified:\t%v\n", r.Verified)
	}
	if r.RejectReason != "" {
		fmt.Fprintf(w, "Reason:\t%s\n", r.RejectReason)
	}
	return w.Flush()
}
