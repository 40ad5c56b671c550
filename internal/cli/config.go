package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nomadhouse/nomadhouse/internal/chain"
)

// projectConfigFiles is the search order for project config files
var projectConfigFiles = []string{"nomadhouse.toml", "nh.toml"}

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Server   string `toml:"server"`
	Network  string `toml:"network,omitempty"`
	Caller   string `toml:"caller,omitempty"`
	GasLimit uint64 `toml:"gas_limit,omitempty"`
}

// GlobalConfig is the user configuration stored in ~/.nomadhouse/config.yaml
type GlobalConfig struct {
	Server string `yaml:"server"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage nomadhouse.toml and inspect resolved settings",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var serverURL, network, callerAddr string
	var gasLimit uint64
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write nomadhouse.toml in the current directory",
		Long: `Write nomadhouse.toml in the current directory. Commands run anywhere
below this directory pick it up.`,
		Example: `  nomadhouse config init
  nomadhouse config init --caller 0x70997970C51812dc3A010C7d01b50e0d17dc79C8
  nomadhouse config init --server https://ledger.example.com --network kovan --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(serverURL, network, callerAddr, gasLimit, force)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "server URL")
	cmd.Flags().StringVar(&network, "network", "hardhat", "network profile the server runs")
	cmd.Flags().StringVar(&callerAddr, "caller", "", "caller address for servers without authentication")
	cmd.Flags().Uint64Var(&gasLimit, "gas-limit", 0, "default payout gas limit (0 = server default)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show every configuration source and the effective values",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}
}

func runConfigInit(serverURL, network, callerAddr string, gasLimit uint64, force bool) error {
	const path = "nomadhouse.toml"

	if !force {
		for _, f := range projectConfigFiles {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("config file already exists at %s (use --force to overwrite)", f)
			}
		}
	}

	pc := ProjectConfig{Server: serverURL, Network: network, GasLimit: gasLimit}
	if callerAddr != "" {
		addr, err := chain.ParseAddress(callerAddr)
		if err != nil {
			return err
		}
		pc.Caller = addr.Hex()
	}

	var b strings.Builder
	b.WriteString("# NomadHouse project configuration\n\n")
	if err := toml.NewEncoder(&b).Encode(pc); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	if pc.Caller != "" {
		fmt.Printf("Requests act as %s. Try 'nomadhouse market list'.\n", pc.Caller)
	} else {
		fmt.Println("Run 'nomadhouse auth login' to save an API key, then 'nomadhouse market list'.")
	}
	return nil
}

// runConfigShow prints one row per setting and source, highest precedence first
func runConfigShow(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tSETTING\tVALUE")

	row := func(source, key, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", source, key, value)
	}

	row("flags", "--server", server)
	row("flags", "--api-key", maskIfSet(apiKey))
	row("flags", "--as", caller)

	row("env", "NOMADHOUSE_SERVER", os.Getenv("NOMADHOUSE_SERVER"))
	row("env", "NOMADHOUSE_API_KEY", maskIfSet(os.Getenv("NOMADHOUSE_API_KEY")))
	row("env", "NOMADHOUSE_CALLER", os.Getenv("NOMADHOUSE_CALLER"))

	switch pc, path, err := loadProjectConfig(); {
	case os.IsNotExist(err):
		row("project", "file", "(none)")
	case err != nil:
		row("project", "file", "error: "+err.Error())
	default:
		row("project", "file", path)
		row("project", "server", pc.Server)
		row("project", "network", pc.Network)
		row("project", "caller", pc.Caller)
		if pc.GasLimit != 0 {
			row("project", "gas_limit", fmt.Sprint(pc.GasLimit))
		}
	}

	if g := loadGlobalConfig(); g != nil {
		row("global", "server", g.Server)
	} else {
		row("global", "file", "(none)")
	}

	if creds, err := loadCredentials(); err == nil {
		for _, u := range creds.serverURLs() {
			row("credentials", u, maskAPIKey(creds.Servers[u].APIKey))
		}
	} else {
		row("credentials", "file", "(none)")
	}

	row("effective", "server", getServer())
	row("effective", "api key", maskIfSet(getAPIKey()))
	row("effective", "caller", getCaller())

	return w.Flush()
}

func maskIfSet(key string) string {
	if key == "" {
		return ""
	}
	return maskAPIKey(key)
}

// findProjectConfig looks for a project file in the working directory and
// then in each parent, so commands work from any subdirectory of a project.
func findProjectConfig() (string, error) {
	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := filepath.Dir(wd); ; dir = filepath.Dir(dir) {
		for _, name := range projectConfigFiles {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
		if dir == filepath.Dir(dir) {
			return "", os.ErrNotExist
		}
	}
}

// loadProjectConfig returns the project config, the file it came from, and
// os.ErrNotExist when there is none. --config wins over the search.
func loadProjectConfig() (*ProjectConfig, string, error) {
	path := cfgFile
	if path == "" {
		var err error
		if path, err = findProjectConfig(); err != nil {
			return nil, "", err
		}
	}

	pc, err := decodeProjectConfig(path)
	if err != nil {
		return nil, path, err
	}
	return pc, path, nil
}

func decodeProjectConfig(path string) (*ProjectConfig, error) {
	var pc ProjectConfig
	md, err := toml.DecodeFile(path, &pc)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("parsing TOML %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slices.Sort(keys)
		return nil, fmt.Errorf("%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return &pc, nil
}

// loadProjectConfigSilent returns nil when there is no project config and
// warns on stderr when it cannot be read.
func loadProjectConfigSilent() *ProjectConfig {
	pc, _, err := loadProjectConfig()
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: ignoring project config: %v\n", err)
		}
		return nil
	}
	return pc
}

func loadGlobalConfig() *GlobalConfig {
	path := filepath.Join(credentialsDir(), "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var g GlobalConfig
	if err := yaml.Unmarshal(data, &g); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring %s: %v\n", path, err)
		return nil
	}
	return &g
}
