package config

import (
	"context"
	"fmt"
	"time"

	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

// VaultConfig holds Vault-specific configuration
type VaultConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Address        string        `koanf:"address"`
	Token          string        `koanf:"token"`
	UseKubernetes  bool          `koanf:"use_kubernetes"`
	KubernetesRole string        `koanf:"kubernetes_role"`
	KubernetesPath string        `koanf:"kubernetes_path"`
	TokenPath      string        `koanf:"token_path"`
	MountPath      string        `koanf:"mount_path"`
	SecretPath     string        `koanf:"secret_path"`
	RenewToken     bool          `koanf:"renew_token"`
	RenewInterval  time.Duration `koanf:"renew_interval"`
}

// SecretReader reads a KV secret by path.
type SecretReader interface {
	GetSecret(ctx context.Context, path string) (map[string]interface{}, error)
}

// AppSecretPath is the secret holding application credentials.
const AppSecretPath = "app"

// ApplyVaultSecrets overlays credentials stored in Vault onto cfg. Keys that are
// absent from the secret leave the existing value untouched.
func ApplyVaultSecrets(ctx context.Context, cfg *Config, secrets SecretReader, log *logger.Logger) error {
	data, err := secrets.GetSecret(ctx, AppSecretPath)
	if err != nil {
		return fmt.Errorf("failed to read application secrets: %w", err)
	}

	overlay := []struct {
		key    string
		target *string
	}{
		{"jwt_secret", &cfg.Auth.JWTSecret},
		{"database_password", &cfg.Database.Password},
		{"database_user", &cfg.Database.User},
		{"redis_password", &cfg.Redis.Password},
	}

	loaded := 0
	for _, o := range overlay {
		raw, ok := data[o.key]
		if !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok {
			return fmt.Errorf("secret %s/%s must be a string, got %T", AppSecretPath, o.key, raw)
		}
		*o.target = value
		loaded++
	}

	if cfg.IsProduction() && cfg.Auth.JWTSecret == insecureSecret {
		return fmt.Errorf("vault secret %s has no jwt_secret", AppSecretPath)
	}

	log.WithField("secret_path", AppSecretPath).
		WithField("keys_loaded", loaded).
		Info("secrets loaded from vault")

	return nil
}
