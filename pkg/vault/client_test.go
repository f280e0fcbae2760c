package vault

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/secret/data/house_security/app", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dev-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"jwt_secret":"from-vault"},"metadata":{"version":1}}}`))
	})
	mux.HandleFunc("/v1/secret/data/house_security/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":"not-a-map"}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GetSecret(t *testing.T) {
	srv := newTestServer(t)

	client, err := NewClient(Config{
		Address:    srv.URL,
		Token:      "dev-token",
		MountPath:  "secret",
		SecretPath: "house_security",
	}, logger.New("debug", "test"))
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	t.Run("reads kv v2 payload", func(t *testing.T) {
		data, err := client.GetSecret(ctx, "app")
		require.NoError(t, err)
		assert.Equal(t, "from-vault", data["jwt_secret"])
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := client.GetSecret(ctx, "absent")
		assert.Error(t, err)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := client.GetSecret(ctx, "broken")
		assert.ErrorContains(t, err, "invalid secret format")
	})
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(Config{Address: "http://127.0.0.1:1"}, logger.New("debug", "test"))
	assert.ErrorContains(t, err, "vault token is required")
}
