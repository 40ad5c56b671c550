package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/nomadhouse/nomadhouse/pkg/client"
)

var (
	cfgFile    string
	server     string
	apiKey     string
	caller     string
	jsonOutput bool
)

// Execute runs the CLI
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "nomadhouse",
		Short:   "NomadHouse deed ledger CLI",
		Long:    `NomadHouse is a CLI for verifying property titles, minting deeds and trading them on the marketplace.`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: nomadhouse.toml or nh.toml)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "server URL (default from config)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().StringVar(&caller, "as", "", "caller address (servers running without authentication)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(createCollectionCmd())
	rootCmd.AddCommand(createTitleCmd())
	rootCmd.AddCommand(createDeedCmd())
	rootCmd.AddCommand(createMarketCmd())
	rootCmd.AddCommand(createAccountCmd())
	rootCmd.AddCommand(createWhoAmICmd())
	rootCmd.AddCommand(createAuthCmd())
	rootCmd.AddCommand(createConfigCmd())

	return rootCmd
}

// getServer returns the server URL from flag, env, config file, or default
func getServer() string {
	// 1. Command line flag
	if server != "" {
		return server
	}

	// 2. Environment variable
	if env := os.Getenv("NOMADHOUSE_SERVER"); env != "" {
		return env
	}

	// 3. Project config file (TOML)
	if config := loadProjectConfigSilent(); config != nil && config.Server != "" {
		return config.Server
	}

	// 4. Global config
	if global := loadGlobalConfig(); global != nil && global.Server != "" {
		return global.Server
	}

	return "http://localhost:8080"
}

// getAPIKey returns the API key from flag, env, or credentials file
func getAPIKey() string {
	if apiKey != "" {
		return apiKey
	}
	if env := os.Getenv("NOMADHOUSE_API_KEY"); env != "" {
		return env
	}
	// Credentials file (keyed by server URL)
	return getCredential(getServer())
}

// getCaller returns the caller address sent in the X-Caller-Address header
func getCaller() string {
	if caller != "" {
		return caller
	}
	if env := os.Getenv("NOMADHOUSE_CALLER"); env != "" {
		return env
	}
	if config := loadProjectConfigSilent(); config != nil {
		return config.Caller
	}
	return ""
}

// getGasLimit returns the payout gas limit: the flag when set, else the
// project config, else zero for the server default
func getGasLimit(flag uint64) uint64 {
	if flag != 0 {
		return flag
	}
	if config := loadProjectConfigSilent(); config != nil {
		return config.GasLimit
	}
	return 0
}

func newClient() *client.Client {
	var opts []client.Option
	if c := getCaller(); c != "" {
		opts = append(opts, client.WithCaller(c))
	}
	return client.New(getServer(), getAPIKey(), opts...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncateAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
