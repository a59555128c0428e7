// Package auth resolves and validates the GitHub token. The token is taken
// from the environment when set, otherwise from the system keyring.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/99designs/keyring"
)

const (
	serviceName = "ghnotify"
	tokenKey    = "github-token"

	userEndpoint = "https://api.github.com/user"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider resolves the GitHub token.
type Provider struct {
	envToken string
	client   HTTPClient
	openRing func() (keyring.Keyring, error)
}

// NewProvider creates a Provider. envToken may be empty, in which case the
// system keyring is consulted.
func NewProvider(envToken string) *Provider {
	return &Provider{
		envToken: envToken,
		client:   &http.Client{Timeout: 30 * time.Second},
		openRing: openKeyring,
	}
}

// Token returns the configured token, or an empty string when none is
// configured anywhere.
func (p *Provider) Token(_ context.Context) (string, error) {
	if p.envToken != "" {
		return p.envToken, nil
	}

	ring, err := p.openRing()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(tokenKey)
	if err == keyring.ErrKeyNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", tokenKey, err)
	}
	return string(item.Data), nil
}

// ValidateToken checks the token against the GitHub user endpoint.
func (p *Provider) ValidateToken(ctx context.Context, token string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userEndpoint, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// StoreToken saves the token in the system keyring.
func StoreToken(token string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	err = ring.Set(keyring.Item{Key: tokenKey, Data: []byte(token)})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey, err)
	}
	return nil
}

// DeleteToken removes the token from the system keyring.
func DeleteToken() error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	err = ring.Remove(tokenKey)
	if err != nil && err != keyring.ErrKeyNotFound {
		return fmt.Errorf("deleting credential %q: %w", tokenKey, err)
	}
	return nil
}

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/ghnotify/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("ghnotify-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}
