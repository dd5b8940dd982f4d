package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("DPO_COMPANY_TOKEN", "company-token")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, "https://secure.3gdirectpay.com/API/v6/", cfg.Gateway.APIURL)
	assert.Equal(t, "https://secure.3gdirectpay.com/dpopayment.php", cfg.Gateway.PaymentPageURL)
	assert.Equal(t, 3854, cfg.Gateway.ServiceType)
	assert.Equal(t, "Donation", cfg.Gateway.ServiceDescription)
	assert.Equal(t, time.Hour, cfg.Gateway.PaymentTimeLimit())
	assert.Equal(t, 30*time.Second, cfg.Gateway.RequestTimeout())
	assert.Equal(t, 0, cfg.Gateway.PageTimeout)
	assert.Equal(t, "USD", cfg.Donation.Currency)
	assert.Equal(t, []string{"10", "25", "50", "100"}, cfg.Donation.Presets)
	assert.Equal(t, "DON", cfg.Donation.ReferencePrefix)
	assert.Equal(t, "memory", cfg.Donation.TokenStore)
	assert.Equal(t, "env", cfg.Secrets.Backend)
	assert.True(t, cfg.Logger.Development)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("DPO_COMPANY_TOKEN_SECRET_PATH", "donation-service/dpo/company-token")
	t.Setenv("PUBLIC_BASE_URL", "https://donate.example.org/")
	t.Setenv("DPO_PTL_MINUTES", "15")
	t.Setenv("DPO_PAGE_TIMEOUT", "600")
	t.Setenv("DONATION_CURRENCY", "kes")
	t.Setenv("DONATION_PRESETS", " 5, 15 ,,50 ")
	t.Setenv("TOKEN_STORE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/donations")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://donate.example.org/payment-complete", cfg.Server.ReturnURL())
	assert.Equal(t, "https://donate.example.org/donation?cancelled=1", cfg.Server.BackURL())
	assert.Equal(t, 15*time.Minute, cfg.Gateway.PaymentTimeLimit())
	assert.Equal(t, 600, cfg.Gateway.PageTimeout)
	assert.Equal(t, "KES", cfg.Donation.Currency)
	assert.Equal(t, []string{"5", "15", "50"}, cfg.Donation.Presets)
	assert.Equal(t, "postgres", cfg.Donation.TokenStore)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.Logger.Development)
}

func TestLoadFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing_company_token",
			env:     map[string]string{},
			wantErr: "DPO_COMPANY_TOKEN",
		},
		{
			name:    "postgres_without_database_url",
			env:     map[string]string{"DPO_COMPANY_TOKEN": "x", "TOKEN_STORE": "postgres"},
			wantErr: "DATABASE_URL",
		},
		{
			name:    "unknown_token_store",
			env:     map[string]string{"DPO_COMPANY_TOKEN": "x", "TOKEN_STORE": "redis"},
			wantErr: "TOKEN_STORE",
		},
		{
			name:    "zero_ptl",
			env:     map[string]string{"DPO_COMPANY_TOKEN": "x", "DPO_PTL_MINUTES": "0"},
			wantErr: "DPO_PTL_MINUTES",
		},
		{
			name:    "zero_timeout",
			env:     map[string]string{"DPO_COMPANY_TOKEN": "x", "DPO_TIMEOUT": "0"},
			wantErr: "DPO_TIMEOUT",
		},
		{
			name:    "negative_timeout",
			env:     map[string]string{"DPO_COMPANY_TOKEN": "x", "DPO_TIMEOUT": "-5"},
			wantErr: "DPO_TIMEOUT",
		},
		{
			name:    "non_numeric_preset",
			env:     map[string]string{"DPO_COMPANY_TOKEN": "x", "DONATION_PRESETS": "10,lots,50"},
			wantErr: `DONATION_PRESETS entry "lots"`,
		},
		{
			name:    "zero_preset",
			env:     map[string]string{"DPO_COMPANY_TOKEN": "x", "DONATION_PRESETS": "0,25"},
			wantErr: "DONATION_PRESETS",
		},
		{
			name:    "bad_currency",
			env:     map[string]string{"DPO_COMPANY_TOKEN": "x", "DONATION_CURRENCY": "DOLLARS"},
			wantErr: "DONATION_CURRENCY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DPO_COMPANY_TOKEN", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
