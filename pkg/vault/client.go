package vault

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

// Client wraps HashiCorp Vault client
type Client struct {
	client *vaultapi.Client
	log    *logger.Logger
	config Config

	stopCh    chan struct{}
	closeOnce sync.Once
}

// Config holds Vault configuration
type Config struct {
	Address        string
	Token          string // static token, for development
	UseKubernetes  bool   // use k8s auth instead of token
	KubernetesRole string
	KubernetesPath string // k8s auth mount path
	TokenPath      string // service account token file
	MountPath      string // KV v2 mount, e.g. "secret"
	SecretPath     string // prefix under the mount, e.g. "house_security"
	RenewToken     bool
	RenewInterval  time.Duration
}

// NewClient creates and authenticates a Vault client
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	apiConfig := vaultapi.DefaultConfig()
	apiConfig.Address = cfg.Address

	client, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	c := &Client{
		client: client,
		log:    log,
		config: cfg,
		stopCh: make(chan struct{}),
	}

	if err := c.authenticate(); err != nil {
		return nil, fmt.Errorf("failed to authenticate with vault: %w", err)
	}

	if cfg.RenewToken && cfg.RenewInterval > 0 {
		go c.startTokenRenewer()
	}

	log.Info("vault client initialized successfully")
	return c, nil
}

func (c *Client) authenticate() error {
	if c.config.UseKubernetes {
		return c.authenticateKubernetes()
	}
	if c.config.Token == "" {
		return fmt.Errorf("vault token is required")
	}
	c.client.SetToken(c.config.Token)
	return nil
}

func (c *Client) authenticateKubernetes() error {
	jwtBytes, err := os.ReadFile(c.config.TokenPath)
	if err != nil {
		return fmt.Errorf("failed to read service account token: %w", err)
	}

	options := map[string]interface{}{
		"jwt":  string(jwtBytes),
		"role": c.config.KubernetesRole,
	}

	path := fmt.Sprintf("auth/%s/login", c.config.KubernetesPath)
	secret, err := c.client.Logical().Write(path, options)
	if err != nil {
		return fmt.Errorf("kubernetes auth failed: %w", err)
	}

	if secret == nil || secret.Auth == nil {
		return fmt.Errorf("kubernetes auth returned no token")
	}

	c.client.SetToken(secret.Auth.ClientToken)
	c.log.Info("authenticated with vault using kubernetes service account")
	return nil
}

func (c *Client) startTokenRenewer() {
	ticker := time.NewTicker(c.config.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := c.client.Auth().Token().RenewSelf(0); err != nil {
				c.log.Error("failed to renew vault token", err)
			}
		case <-c.stopCh:
			return
		}
	}
}

// GetSecret retrieves a secret from Vault KV v2
func (c *Client) GetSecret(ctx context.Context, path string) (map[string]interface{}, error) {
	fullPath := fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, path)

	secret, err := c.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret at %s: %w", path, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret found at %s", path)
	}

	// KV v2 nests the payload under "data"
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format at %s", path)
	}

	return data, nil
}

// Health checks Vault server health
func (c *Client) Health(ctx context.Context) error {
	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// Close stops token renewal
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.stopCh) })
	return nil
}
