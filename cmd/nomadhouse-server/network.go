package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nomadhouse/nomadhouse/internal/config"
	"github.com/nomadhouse/nomadhouse/internal/network"
)

func newNetworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Inspect deploy profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known network profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNetworkList()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show [name]",
		Short: "Show the resolved parameters of a profile (default: $NETWORK)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runNetworkShow(name)
		},
	})

	return cmd
}

func loadRegistry() (*network.Registry, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	reg, err := network.NewRegistry(cfg.Network.ProfilesFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading network profiles: %w", err)
	}
	return reg, cfg, nil
}

func runNetworkList() error {
	reg, cfg, err := loadRegistry()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCHAIN ID\tSTATUS")
	for _, name := range reg.Names() {
		status := "ok"
		params, err := reg.Resolve(name)
		if err != nil {
			status = err.Error()
		}
		chainID := "-"
		if params != nil {
			chainID = fmt.Sprint(params.ChainID)
		}
		marker := ""
		if name == cfg.Network.Name {
			marker = " *"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\n", name, marker, chainID, status)
	}
	return w.Flush()
}

func runNetworkShow(name string) error {
	reg, cfg, err := loadRegistry()
	if err != nil {
		return err
	}
	if name == "" {
		name = cfg.Network.Name
	}
	p, err := reg.Resolve(name)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"name", p.Name},
		{"chain id", fmt.Sprint(p.ChainID)},
		{"owner", p.Owner.Hex()},
		{"collection", p.CollectionAddress().Hex()},
		{"marketplace", p.MarketplaceAddress().Hex()},
		{"oracle", p.Oracle.Hex()},
		{"link token", p.LinkToken.Hex()},
		{"oracle fee", p.OracleFee.String()},
		{"job id", p.JobID},
		{"fee percent", fmt.Sprint(p.FeePercent)},
		{"token uri", p.TokenURI},
		{"title search uri", p.TitleSearchURI},
		{"compiler", p.Compiler},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1])
	}
	return w.Flush()
}
