package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/hashicorp/vault/api"
)

// Keys looked up in the external secret
const (
	SecretKeyName     = "secret_key"
	RedisPasswordName = "redis_password"
)

// ErrSecretNotFound is returned when the secret exists but lacks the key
var ErrSecretNotFound = errors.New("secret key not found")

// SecretManager retrieves one named value from an external secret store
type SecretManager interface {
	GetSecret(key string) (string, error)
}

// VaultSecretManager retrieves secrets from HashiCorp Vault
type VaultSecretManager struct {
	cfg    VaultSecrets
	client *api.Client
}

// NewVaultSecretManager creates a Vault client. An empty token falls back to VAULT_TOKEN.
func NewVaultSecretManager(cfg VaultSecrets) (*VaultSecretManager, error) {
	client, err := api.NewClient(&api.Config{
		Address: cfg.Address,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	return &VaultSecretManager{cfg: cfg, client: client}, nil
}

func (v *VaultSecretManager) GetSecret(key string) (string, error) {
	secret, err := v.client.Logical().Read(v.cfg.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret not found at path %s", v.cfg.Path)
	}

	data := secret.Data
	// KV version 2 nests the values one level down
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s in Vault secret %s", ErrSecretNotFound, key, v.cfg.Path)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("secret value for key %s is not a string", key)
	}
	return strValue, nil
}

// AWSSecretManager retrieves secrets from AWS Secrets Manager. The secret
// string must be a JSON object of string values.
type AWSSecretManager struct {
	cfg    AWSSecrets
	client *secretsmanager.SecretsManager
}

// NewAWSSecretManager creates a Secrets Manager client. Without static keys
// the default credential chain is used.
func NewAWSSecretManager(cfg AWSSecrets) (*AWSSecretManager, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &AWSSecretManager{cfg: cfg, client: secretsmanager.New(sess)}, nil
}

func (a *AWSSecretManager) GetSecret(key string) (string, error) {
	result, err := a.client.GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.cfg.SecretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret from AWS: %w", err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("AWS secret %s has no string value", a.cfg.SecretID)
	}

	var secrets map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &secrets); err != nil {
		return "", fmt.Errorf("failed to parse AWS secret JSON: %w", err)
	}

	value, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("%w: %s in AWS secret %s", ErrSecretNotFound, key, a.cfg.SecretID)
	}
	return value, nil
}

// NewSecretManager creates the manager for the configured provider. The env
// provider has no manager; its values arrive through Load.
func NewSecretManager(cfg *Config) (SecretManager, error) {
	switch cfg.Secrets.Provider {
	case "", "env":
		return nil, nil
	case "vault":
		return NewVaultSecretManager(cfg.Secrets.Vault)
	case "aws":
		return NewAWSSecretManager(cfg.Secrets.AWS)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", cfg.Secrets.Provider)
	}
}

// LoadSecrets replaces SecretKey, and the Redis password when present, with
// values from the configured provider.
func LoadSecrets(cfg *Config) error {
	manager, err := NewSecretManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	if manager == nil {
		return nil
	}

	secretKey, err := manager.GetSecret(SecretKeyName)
	if err != nil {
		return fmt.Errorf("failed to load secret key: %w", err)
	}
	cfg.SecretKey = secretKey

	password, err := manager.GetSecret(RedisPasswordName)
	switch {
	case err == nil:
		cfg.Redis.Password = password
	case !errors.Is(err, ErrSecretNotFound):
		return fmt.Errorf("failed to load redis password: %w", err)
	}
	return nil
}
