package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vaultServer(t *testing.T, path string, data map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/"+path {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVaultSecretManager_GetSecret(t *testing.T) {
	srv := vaultServer(t, "secret/newsportal", map[string]interface{}{
		"secret_key": "from-vault-0123456789",
	})

	m, err := NewVaultSecretManager(VaultSecrets{Address: srv.URL, Token: "root", Path: "secret/newsportal"})
	require.NoError(t, err)

	v, err := m.GetSecret(SecretKeyName)
	require.NoError(t, err)
	assert.Equal(t, "from-vault-0123456789", v)

	_, err = m.GetSecret(RedisPasswordName)
	assert.True(t, errors.Is(err, ErrSecretNotFound))
}

func TestVaultSecretManager_KVVersion2(t *testing.T) {
	srv := vaultServer(t, "kv/data/newsportal", map[string]interface{}{
		"data":     map[string]interface{}{"secret_key": "nested-value-0123456789"},
		"metadata": map[string]interface{}{"version": 3},
	})

	m, err := NewVaultSecretManager(VaultSecrets{Address: srv.URL, Token: "root", Path: "kv/data/newsportal"})
	require.NoError(t, err)

	v, err := m.GetSecret(SecretKeyName)
	require.NoError(t, err)
	assert.Equal(t, "nested-value-0123456789", v)
}

func TestVaultSecretManager_MissingPath(t *testing.T) {
	srv := vaultServer(t, "secret/newsportal", nil)

	m, err := NewVaultSecretManager(VaultSecrets{Address: srv.URL, Token: "root", Path: "secret/other"})
	require.NoError(t, err)

	_, err = m.GetSecret(SecretKeyName)
	assert.Error(t, err)
}

func TestAWSSecretManager_GetSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secretsmanager.GetSecretValue", r.Header.Get("X-Amz-Target"))
		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ARN":          "arn:aws:secretsmanager:us-east-1:000000000000:secret:newsportal",
			"Name":         "newsportal/secrets",
			"SecretString": `{"secret_key":"from-aws-0123456789","redis_password":"hunter2"}`,
		})
	}))
	t.Cleanup(srv.Close)

	m, err := NewAWSSecretManager(AWSSecrets{
		Region:    "us-east-1",
		SecretID:  "newsportal/secrets",
		AccessKey: "test",
		SecretKey: "test",
		Endpoint:  srv.URL,
	})
	require.NoError(t, err)

	v, err := m.GetSecret(SecretKeyName)
	require.NoError(t, err)
	assert.Equal(t, "from-aws-0123456789", v)

	v, err = m.GetSecret(RedisPasswordName)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)
}

func TestNewSecretManager_Providers(t *testing.T) {
	cfg, err := Lookup(Development)
	require.NoError(t, err)

	m, err := NewSecretManager(cfg)
	require.NoError(t, err)
	assert.Nil(t, m, "env provider needs no manager")

	cfg.Secrets.Provider = "gcp"
	_, err = NewSecretManager(cfg)
	assert.Error(t, err)
}

func TestLoad_VaultProvider(t *testing.T) {
	srv := vaultServer(t, "secret/newsportal", map[string]interface{}{
		"secret_key":     "production-secret-from-vault",
		"redis_password": "vault-redis-pass",
	})
	t.Setenv("NEWSPORTAL_SECRETS_PROVIDER", "vault")
	t.Setenv("NEWSPORTAL_SECRETS_VAULT_ADDRESS", srv.URL)
	t.Setenv("NEWSPORTAL_SECRETS_VAULT_TOKEN", "root")

	cfg, err := Load(Production, WithSearchPaths(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, "production-secret-from-vault", cfg.SecretKey)
	assert.Equal(t, "vault-redis-pass", cfg.Redis.Password)

	red := cfg.Redacted()
	assert.Equal(t, "******", red.Secrets.Vault.Token)
}
