package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

const ownerAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// whoamiServer accepts validKey and answers as the owner account
func whoamiServer(t *testing.T, validKey string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/whoami" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("X-API-Key") != validKey {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid API key"}}`))
			return
		}
		w.Write([]byte(`{"address":"` + ownerAddr + `","keyName":"owner"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

// withHome points the credentials directory at a temp dir
func withHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return dir
}

// withStdin feeds input to code reading os.Stdin
func withStdin(t *testing.T, input string) {
	t.Helper()
	origStdin := os.Stdin
	t.Cleanup(func() { os.Stdin = origStdin })

	r, w, err := os.Pipe()
	require.NoError(t, err)
	go func() {
		defer w.Close()
		io.WriteString(w, input)
	}()
	os.Stdin = r
}

func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	runErr := fn()

	w.Close()
	os.Stdout = oldStdout
	var buf bytes.Buffer
	io.Copy(&buf, r)
	require.NoError(t, runErr)
	return buf.String()
}

// TestStdinFdCrossplatform verifies os.Stdin.Fd() can be handed to x/term
func TestStdinFdCrossplatform(t *testing.T) {
	stdinFd := int(os.Stdin.Fd())
	assert.GreaterOrEqual(t, stdinFd, 0, "stdin file descriptor should be non-negative")

	// In tests stdin is usually piped; only check the call works
	t.Logf("stdin fd=%d, isTerminal=%v", stdinFd, term.IsTerminal(stdinFd))
}

func TestAuthLogin(t *testing.T) {
	server := whoamiServer(t, "valid-key")
	withHome(t)

	t.Run("successful login stores identity", func(t *testing.T) {
		require.NoError(t, runAuthLogin(server.URL, "valid-key"))

		creds, err := loadCredentials()
		require.NoError(t, err)
		cred := creds.Servers[server.URL]
		assert.Equal(t, "valid-key", cred.APIKey)
		assert.Equal(t, ownerAddr, cred.Address)
		assert.Equal(t, "owner", cred.Name)
	})

	t.Run("invalid key rejected", func(t *testing.T) {
		err := runAuthLogin(server.URL, "invalid-key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid API key")
		assert.Equal(t, "valid-key", getCredential(server.URL), "stored key untouched")
	})

	t.Run("empty key rejected", func(t *testing.T) {
		withStdin(t, "")
		err := runAuthLogin(server.URL, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key cannot be empty")
	})
}

// TestAuthLoginFromStdin covers the non-terminal branch of the key prompt
func TestAuthLoginFromStdin(t *testing.T) {
	server := whoamiServer(t, "piped-key")
	withHome(t)

	tests := []struct {
		name  string
		input string
	}{
		{"simple key", "piped-key\n"},
		{"trailing blank line", "piped-key\n\n"},
		{"surrounding spaces", "  piped-key  \n"},
		{"no newline", "piped-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withStdin(t, tt.input)
			require.NoError(t, runAuthLogin(server.URL, ""))
			assert.Equal(t, "piped-key", getCredential(server.URL))
		})
	}
}

func TestAuthLogout(t *testing.T) {
	withHome(t)

	require.NoError(t, saveCredential("http://server1:8080", ServerCredential{APIKey: "key1"}))
	require.NoError(t, saveCredential("http://server2:8080", ServerCredential{APIKey: "key2"}))

	t.Run("logout from specific server", func(t *testing.T) {
		require.NoError(t, runAuthLogout("http://server1:8080", false))
		assert.Equal(t, "", getCredential("http://server1:8080"))
		assert.Equal(t, "key2", getCredential("http://server2:8080"))
	})

	t.Run("logout from unknown server", func(t *testing.T) {
		assert.NoError(t, runAuthLogout("http://nonexistent:8080", false))
	})

	t.Run("logout all", func(t *testing.T) {
		require.NoError(t, runAuthLogout("", true))
		_, err := loadCredentials()
		assert.True(t, os.IsNotExist(err))
	})
}

func TestAuthStatus(t *testing.T) {
	withHome(t)

	t.Run("no credentials", func(t *testing.T) {
		output := captureStdout(t, runAuthStatus)
		assert.Contains(t, output, "Not authenticated")
	})

	t.Run("with credentials", func(t *testing.T) {
		require.NoError(t, saveCredential("http://test-server:8080", ServerCredential{
			APIKey: "nh_key_12345678901234", Name: "seller", Address: ownerAddr,
		}))

		output := captureStdout(t, runAuthStatus)
		assert.Contains(t, output, "Authenticated servers")
		assert.Contains(t, output, "http://test-server:8080")
		assert.Contains(t, output, "seller, "+ownerAddr)
		assert.Contains(t, output, "nh_key_1...1234")
		assert.NotContains(t, output, "nh_key_12345678901234")
	})
}

func TestValidateAPIKey(t *testing.T) {
	server := whoamiServer(t, "valid-key")

	t.Run("valid key", func(t *testing.T) {
		id, err := validateAPIKey(server.URL, "valid-key")
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, ownerAddr, id.Address)
	})

	t.Run("invalid key", func(t *testing.T) {
		id, err := validateAPIKey(server.URL, "invalid-key")
		require.NoError(t, err)
		assert.Nil(t, id)
	})

	t.Run("server error", func(t *testing.T) {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer failing.Close()

		_, err := validateAPIKey(failing.URL, "any-key")
		assert.Error(t, err)
	})

	t.Run("connection error", func(t *testing.T) {
		_, err := validateAPIKey("http://localhost:99999", "any-key")
		assert.Error(t, err)
	})
}

// TestCredentialPermissions verifies the credentials file and directory are private
func TestCredentialPermissions(t *testing.T) {
	home := withHome(t)

	require.NoError(t, saveCredential("http://test:8080", ServerCredential{APIKey: "test-key"}))

	if os.Getenv("GOOS") == "windows" {
		t.Skip("unix permissions")
	}

	info, err := os.Stat(filepath.Join(home, ".nomadhouse", "credentials"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(home, ".nomadhouse"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestAuthCommandStructure(t *testing.T) {
	cmd := createAuthCmd()
	assert.Equal(t, "auth", cmd.Use)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"login", "logout", "status"}, names)

	login := createAuthLoginCmd()
	assert.NotNil(t, login.Flags().Lookup("server"))
	assert.NotNil(t, login.Flags().Lookup("api-key"))

	logout := createAuthLogoutCmd()
	require.NotNil(t, logout.Flags().Lookup("all"))
	assert.Equal(t, "false", logout.Flags().Lookup("all").DefValue)
}

func TestCredentialOverwrite(t *testing.T) {
	withHome(t)
	serverURL := "http://test:8080"

	require.NoError(t, saveCredential(serverURL, ServerCredential{APIKey: "old-key"}))
	assert.Equal(t, "old-key", getCredential(serverURL))

	require.NoError(t, saveCredential(serverURL, ServerCredential{APIKey: "new-key"}))
	assert.Equal(t, "new-key", getCredential(serverURL))
}
