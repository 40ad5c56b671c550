package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Credentials is the on-disk layout of ~/.nomadhouse/credentials
type Credentials struct {
	Servers map[string]ServerCredential `yaml:"servers"`
}

// ServerCredential is one saved key and the identity the server reported for it
type ServerCredential struct {
	APIKey  string `yaml:"api_key"`
	Name    string `yaml:"name,omitempty"`
	Address string `yaml:"address,omitempty"`
}

// label renders the identity part of a status line
func (c ServerCredential) label() string {
	switch {
	case c.Name != "" && c.Address != "":
		return c.Name + ", " + c.Address
	case c.Address != "":
		return c.Address
	default:
		return c.Name
	}
}

// serverURLs returns the saved servers in a stable order
func (c *Credentials) serverURLs() []string {
	urls := make([]string, 0, len(c.Servers))
	for u := range c.Servers {
		urls = append(urls, u)
	}
	slices.Sort(urls)
	return urls
}

func credentialsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nomadhouse"
	}
	return filepath.Join(home, ".nomadhouse")
}

func credentialsFilePath() string {
	return filepath.Join(credentialsDir(), "credentials")
}

func loadCredentials() (*Credentials, error) {
	data, err := os.ReadFile(credentialsFilePath())
	if err != nil {
		return nil, err
	}

	creds := &Credentials{}
	if err := yaml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", credentialsFilePath(), err)
	}
	if creds.Servers == nil {
		creds.Servers = make(map[string]ServerCredential)
	}
	return creds, nil
}

// writeCredentials replaces the credentials file through a temp file so a
// crash never leaves a truncated key store behind.
func writeCredentials(creds *Credentials) error {
	if err := os.MkdirAll(credentialsDir(), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(credentialsDir(), ".credentials-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), credentialsFilePath())
}

func saveCredential(serverURL string, cred ServerCredential) error {
	creds, err := loadCredentials()
	if os.IsNotExist(err) {
		creds, err = &Credentials{Servers: make(map[string]ServerCredential)}, nil
	}
	if err != nil {
		return err
	}

	creds.Servers[serverURL] = cred
	return writeCredentials(creds)
}

// getCredential returns the saved key for serverURL, or "" when there is none
func getCredential(serverURL string) string {
	creds, err := loadCredentials()
	if err != nil {
		return ""
	}
	return creds.Servers[serverURL].APIKey
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
