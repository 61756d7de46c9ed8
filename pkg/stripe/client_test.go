package stripe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewline/brewline-backend/pkg/config"
)

func TestNewClientValidatesKeyForEnvironment(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.StripeConfig
		wantErr bool
		env     string
	}{
		{name: "test key", cfg: config.StripeConfig{APIKey: "sk_test_123", Env: "test"}, env: "test"},
		{name: "default env", cfg: config.StripeConfig{APIKey: "rk_test_123"}, env: "test"},
		{name: "live key", cfg: config.StripeConfig{APIKey: "sk_live_123", Env: "LIVE"}, env: "live"},
		{name: "live key in test", cfg: config.StripeConfig{APIKey: "sk_live_123", Env: "test"}, wantErr: true},
		{name: "missing key", cfg: config.StripeConfig{Env: "test"}, wantErr: true},
		{name: "unknown env", cfg: config.StripeConfig{APIKey: "sk_test_123", Env: "staging"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tc.cfg, nil)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.env, client.Environment())
			assert.NotNil(t, client.API())
			assert.NotNil(t, client.PaymentIntents())
		})
	}
}

func TestNilClientAccessors(t *testing.T) {
	var client *Client
	assert.Nil(t, client.API())
	assert.Empty(t, client.Environment())
	assert.Nil(t, client.PaymentIntents())
}
