package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/nomadhouse/nomadhouse/internal/chain"
	"github.com/nomadhouse/nomadhouse/internal/config"
	"github.com/nomadhouse/nomadhouse/internal/storage"
)

// minKeyPrefix is the shortest key ID prefix revoke accepts
const minKeyPrefix = 8

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys and the addresses they act as",
	}

	cmd.AddCommand(newKeysCreateCmd())
	cmd.AddCommand(newKeysListCmd())
	cmd.AddCommand(newKeysRevokeCmd())

	return cmd
}

type createOpts struct {
	name, address, role, output string
	quiet, show                 bool
}

func newKeysCreateCmd() *cobra.Command {
	var o createOpts

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key bound to an address",
		Long: `Create an API key. Every request made with the key acts as its address.

The address is given with --address, or with --role to take the owner or
oracle address of the configured network profile. The key is written to
./nomadhouse-key-<name>.txt (mode 0600) unless --quiet or --show is set.
It is stored hashed and cannot be shown again.`,
		Example: `  nomadhouse-server keys create --name owner --role owner
  nomadhouse-server keys create --name oracle --role oracle --quiet
  nomadhouse-server keys create --name alice --address 0x70997970C51812dc3A010C7d01b50e0d17dc79C8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysCreate(cmd, o)
		},
	}

	cmd.Flags().StringVar(&o.name, "name", "", "label for the key (required)")
	cmd.Flags().StringVar(&o.address, "address", "", "address the key acts as")
	cmd.Flags().StringVar(&o.role, "role", "", "take the address from the network profile: owner or oracle")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "key file (default ./nomadhouse-key-<name>.txt)")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "print only the key")
	cmd.Flags().BoolVar(&o.show, "show", false, "print the key instead of writing a file")
	_ = cmd.MarkFlagRequired("name")
	cmd.MarkFlagsMutuallyExclusive("address", "role")
	cmd.MarkFlagsOneRequired("address", "role")

	return cmd
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := quietStore()
			if err != nil {
				return err
			}
			defer store.Close()

			keys, err := store.ListAPIKeys(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing API keys: %w", err)
			}
			return printKeys(cmd.OutOrStdout(), keys)
		},
	}
}

func newKeysRevokeCmd() *cobra.Command {
	var keyID string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke an API key",
		Long: `Revoke an API key. Writes made with it fail from then on.

--id takes a full key ID, or a prefix of at least 8 characters as printed
by 'nomadhouse-server keys list'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := quietStore()
			if err != nil {
				return err
			}
			defer store.Close()

			keys, err := store.ListAPIKeys(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing API keys: %w", err)
			}
			k, err := findKey(keys, keyID)
			if err != nil {
				return err
			}
			if err := store.RevokeAPIKey(cmd.Context(), k.ID); err != nil {
				return fmt.Errorf("revoking API key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s (%s, %s)\n", shortID(k.ID), k.Name, k.Address.Hex())
			return nil
		},
	}

	cmd.Flags().StringVar(&keyID, "id", "", "key ID or prefix (required)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runKeysCreate(cmd *cobra.Command, o createOpts) error {
	store, cfg, err := quietStore()
	if err != nil {
		return err
	}
	defer store.Close()

	addr, err := keyAddress(cfg, o.address, o.role)
	if err != nil {
		return err
	}

	key, err := store.CreateAPIKey(cmd.Context(), o.name, addr)
	if err != nil {
		return fmt.Errorf("creating API key: %w", err)
	}

	out := cmd.OutOrStdout()
	switch {
	case o.quiet:
		fmt.Fprintln(out, key)
		return nil
	case o.show:
		fmt.Fprintf(out, "API key %q acts as %s. It cannot be shown again:\n\n    %s\n", o.name, addr.Hex(), key)
		return nil
	}

	path := o.output
	if path == "" {
		path = fmt.Sprintf("./nomadhouse-key-%s.txt", o.name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(key+"\n"), 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}

	fmt.Fprintf(out, "API key %q acts as %s\n", o.name, addr.Hex())
	fmt.Fprintf(out, "Written to %s (mode 0600). It cannot be shown again.\n\n", path)
	fmt.Fprintf(out, "  export NOMADHOUSE_API_KEY=$(cat %s)\n", path)
	return nil
}

// keyAddress resolves the address a new key acts as
func keyAddress(cfg *config.Config, address, role string) (common.Address, error) {
	if role != "" {
		params, err := resolveNetwork(cfg)
		if err != nil {
			return common.Address{}, err
		}
		switch strings.ToLower(role) {
		case "owner":
			return params.Owner, nil
		case "oracle":
			return params.Oracle, nil
		default:
			return common.Address{}, fmt.Errorf("unknown role %q (want owner or oracle)", role)
		}
	}

	addr, err := chain.ParseAddress(address)
	if err != nil {
		return common.Address{}, err
	}
	if addr == chain.ZeroAddress {
		return common.Address{}, errors.New("address must not be the zero address")
	}
	return addr, nil
}

// findKey matches id exactly, or as a unique prefix of minKeyPrefix or more
func findKey(keys []storage.APIKey, id string) (*storage.APIKey, error) {
	id = strings.TrimSuffix(id, "...")

	var match *storage.APIKey
	for i := range keys {
		k := &keys[i]
		if k.ID == id {
			return k, nil
		}
		if len(id) >= minKeyPrefix && strings.HasPrefix(k.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("key prefix %q is ambiguous", id)
			}
			match = k
		}
	}
	if match == nil {
		return nil, fmt.Errorf("key not found: %s", id)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > minKeyPrefix {
		return id[:minKeyPrefix] + "..."
	}
	return id
}

func printKeys(out io.Writer, keys []storage.APIKey) error {
	if len(keys) == 0 {
		fmt.Fprintln(out, "No API keys. Create one with: nomadhouse-server keys create --name owner --role owner")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tADDRESS\tCREATED\tLAST USED")
	for _, k := range keys {
		lastUsed := k.LastUsedAt
		if lastUsed == "" {
			lastUsed = "never"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortID(k.ID), k.Name, k.Address.Hex(), k.CreatedAt, lastUsed)
	}
	return w.Flush()
}
