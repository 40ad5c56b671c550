package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nomadhouse/nomadhouse/pkg/client"
)

func createAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API keys for NomadHouse servers",
	}

	cmd.AddCommand(createAuthLoginCmd())
	cmd.AddCommand(createAuthLogoutCmd())
	cmd.AddCommand(createAuthStatusCmd())

	return cmd
}

func createAuthLoginCmd() *cobra.Command {
	var serverFlag, apiKeyFlag string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an API key after checking it against the server",
		Long: `Save an API key for a NomadHouse server.

The server is asked which address the key acts as before anything is
written. Keys live in ~/.nomadhouse/credentials (mode 0600).

EXAMPLES:
  # Prompt for the key
  nomadhouse auth login

  # Pass the key directly, e.g. in CI
  nomadhouse auth login --server https://ledger.example.com --api-key $NOMADHOUSE_API_KEY
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(serverFlag, apiKeyFlag)
		},
	}

	cmd.Flags().StringVar(&serverFlag, "server", "", "server URL (default from config)")
	cmd.Flags().StringVar(&apiKeyFlag, "api-key", "", "API key (prompts if not provided)")

	return cmd
}

func createAuthLogoutCmd() *cobra.Command {
	var serverFlag string
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved key for a server",
		Example: `  nomadhouse auth logout
  nomadhouse auth logout --server https://ledger.example.com
  nomadhouse auth logout --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogout(serverFlag, allFlag)
		},
	}

	cmd.Flags().StringVar(&serverFlag, "server", "", "server URL (default from config)")
	cmd.Flags().BoolVar(&allFlag, "all", false, "forget every saved key")

	return cmd
}

func createAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List servers with a saved key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus()
		},
	}
}

// readAPIKey prompts on a terminal without echo, or reads one line from a pipe
func readAPIKey(serverURL string) (string, error) {
	fmt.Printf("API key for %s: ", serverURL)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read API key: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runAuthLogin(serverURL, apiKey string) error {
	if serverURL == "" {
		serverURL = getServer()
	}

	if apiKey == "" {
		var err error
		if apiKey, err = readAPIKey(serverURL); err != nil {
			return err
		}
	}
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	id, err := validateAPIKey(serverURL, apiKey)
	if err != nil {
		return fmt.Errorf("failed to validate credentials: %w", err)
	}
	if id == nil {
		return fmt.Errorf("invalid API key")
	}

	if err := saveCredential(serverURL, ServerCredential{APIKey: apiKey, Name: id.KeyName, Address: id.Address}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Printf("Logged in to %s as %s (key %s)\n", serverURL, id.Address, maskAPIKey(apiKey))
	fmt.Printf("Credentials saved to %s\n", credentialsFilePath())
	return nil
}

func runAuthLogout(serverURL string, all bool) error {
	if all {
		if err := os.Remove(credentialsFilePath()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}
		fmt.Println("All saved keys removed")
		return nil
	}

	if serverURL == "" {
		serverURL = getServer()
	}

	creds, err := loadCredentials()
	if os.IsNotExist(err) {
		fmt.Printf("No key saved for %s\n", serverURL)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if _, ok := creds.Servers[serverURL]; !ok {
		fmt.Printf("No key saved for %s\n", serverURL)
		return nil
	}
	delete(creds.Servers, serverURL)

	if err := writeCredentials(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	fmt.Printf("Logged out from %s\n", serverURL)
	return nil
}

func runAuthStatus() error {
	creds, err := loadCredentials()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if creds == nil || len(creds.Servers) == 0 {
		fmt.Println("Not authenticated to any servers")
		fmt.Println("Run 'nomadhouse auth login' to save a key")
		return nil
	}

	fmt.Println("Authenticated servers:")
	for _, u := range creds.serverURLs() {
		cred := creds.Servers[u]
		if who := cred.label(); who != "" {
			fmt.Printf("  %s (%s, key %s)\n", u, who, maskAPIKey(cred.APIKey))
		} else {
			fmt.Printf("  %s (key %s)\n", u, maskAPIKey(cred.APIKey))
		}
	}
	return nil
}

// validateAPIKey asks the server who the key acts as. A nil identity with a
// nil error means the server rejected the key.
func validateAPIKey(serverURL, apiKey string) (*client.Identity, error) {
	id, err := client.New(serverURL, apiKey).WhoAmI(context.Background())
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return id, nil
}
