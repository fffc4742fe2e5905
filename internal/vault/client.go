// Package vault loads the exchange API credentials from HashiCorp Vault.
// With Vault disabled the credentials come straight from the environment
// via the config, so development setups need no Vault at all.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"binance-trading-bot/config"
)

// Credentials is the exchange API key pair stored in Vault.
type Credentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
}

// Client wraps the HashiCorp Vault client.
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu     sync.RWMutex
	cached *Credentials
}

// NewClient creates a Vault client. With Vault disabled it returns a
// client that only serves the fallback credentials.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg}, nil
}

// IsEnabled returns whether Vault is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Credentials reads the API key pair from the configured KV v2 secret
// path. Reads are cached for the life of the process; call Invalidate
// after rotating the secret.
func (c *Client) Credentials(ctx context.Context, fallback Credentials) (Credentials, error) {
	if !c.config.Enabled {
		return fallback, nil
	}

	c.mu.RLock()
	if c.cached != nil {
		creds := *c.cached
		c.mu.RUnlock()
		return creds, nil
	}
	c.mu.RUnlock()

	secret, err := c.client.Logical().ReadWithContext(ctx, c.config.SecretPath)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return Credentials{}, fmt.Errorf("no secret at %s", c.config.SecretPath)
	}

	// KV v2 nests the payload under "data"; KV v1 returns it flat.
	data := secret.Data
	if nested, ok := secret.Data["data"].(map[string]interface{}); ok {
		data = nested
	}

	creds := Credentials{
		APIKey:    getString(data, "api_key"),
		SecretKey: getString(data, "secret_key"),
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		return Credentials{}, fmt.Errorf("secret at %s is missing api_key or secret_key", c.config.SecretPath)
	}

	c.mu.Lock()
	c.cached = &creds
	c.mu.Unlock()
	return creds, nil
}

// Invalidate drops the cached credentials so the next read hits Vault.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// Health checks the Vault connection and seal status.
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
