// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/platform-engineering-labs/formae/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/api"
)

func setCredentials(t *testing.T) {
	t.Setenv(EnvUsername, "user")
	t.Setenv(EnvPassword, "secret")
	t.Setenv(EnvRegion, "")
	t.Setenv(EnvEndpoint, "")
	t.Setenv(EnvOrgID, "")
}

func TestFromTargetConfig(t *testing.T) {
	setCredentials(t)

	cfg, err := FromTargetConfig(json.RawMessage(`{
		"region": "eu",
		"orgId": "org-1",
		"maxAttempts": 4,
		"retryableCodes": ["RESOURCE_BUSY"],
		"retryInterval": "500ms",
		"pollInterval": "10s",
		"provisioningTimeout": "45m"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "eu", cfg.Region)
	assert.Equal(t, "org-1", cfg.OrgID)
	assert.Equal(t, "user", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "https://api-eu.dimensiondata.com/caas/2.4/", cfg.BaseURL())

	opts := cfg.APIOptions()
	assert.Equal(t, 4, opts.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, opts.Retry.InitialInterval)
	assert.Equal(t, []string{"RESOURCE_BUSY"}, opts.RetryableCodes)
	assert.Equal(t, 10*time.Second, opts.PollInterval)
	assert.Equal(t, 45*time.Minute, opts.ProvisioningTimeout)
}

func TestFromTargetConfig_EnvFallbacks(t *testing.T) {
	setCredentials(t)
	t.Setenv(EnvRegion, "AU")
	t.Setenv(EnvOrgID, "org-env")

	cfg, err := FromTargetConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "AU", cfg.Region)
	assert.Equal(t, "org-env", cfg.OrgID)
	assert.Equal(t, "https://api-au.dimensiondata.com/caas/2.4/", cfg.BaseURL())

	tc := cfg.ToTransportConfig()
	assert.Equal(t, "org-env", tc.OrgID)
	assert.Equal(t, "user", tc.Username)
}

func TestFromTargetConfig_EndpointOverride(t *testing.T) {
	setCredentials(t)

	cfg, err := FromTargetConfig(json.RawMessage(`{"endpoint": "http://127.0.0.1:8080/caas/2.4/"}`))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/caas/2.4/", cfg.BaseURL())
}

func TestFromTargetConfig_CredentialsNeverStored(t *testing.T) {
	setCredentials(t)

	cfg, err := FromTargetConfig(json.RawMessage(`{"region": "na", "username": "other", "password": "leak"}`))
	require.NoError(t, err)
	assert.Equal(t, "user", cfg.Username)

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "user")
}

func TestFromTargetConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		config string
		errMsg string
	}{
		{"missing region", map[string]string{EnvUsername: "u", EnvPassword: "p"}, `{}`, "region is required"},
		{"missing username", map[string]string{EnvPassword: "p"}, `{"region":"na"}`, EnvUsername},
		{"missing password", map[string]string{EnvUsername: "u"}, `{"region":"na"}`, EnvPassword},
		{"bad duration", map[string]string{EnvUsername: "u", EnvPassword: "p"}, `{"region":"na","pollInterval":"soon"}`, "invalid duration"},
		{"negative duration", map[string]string{EnvUsername: "u", EnvPassword: "p"}, `{"region":"na","pollInterval":"-1s"}`, "must not be negative"},
		{"negative attempts", map[string]string{EnvUsername: "u", EnvPassword: "p"}, `{"region":"na","maxAttempts":-1}`, "maxAttempts"},
		{"bad json", map[string]string{EnvUsername: "u", EnvPassword: "p"}, `{`, "failed to unmarshal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{EnvRegion, EnvEndpoint, EnvOrgID, EnvUsername, EnvPassword} {
				t.Setenv(k, tt.env[k])
			}
			_, err := FromTargetConfig(json.RawMessage(tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFromTarget(t *testing.T) {
	setCredentials(t)

	_, err := FromTarget(nil)
	assert.Error(t, err)

	cfg, err := FromTarget(&model.Target{Config: json.RawMessage(`{"region":"na"}`)})
	require.NoError(t, err)
	assert.Equal(t, "na", cfg.Region)
}

func TestAPIOptions_DefaultsApplied(t *testing.T) {
	cfg := &Config{Region: "na"}
	a := api.New(nil, cfg.APIOptions())

	def := api.DefaultOptions()
	got := a.Options()
	assert.Equal(t, def.Retry.MaxAttempts, got.Retry.MaxAttempts)
	assert.Equal(t, def.RetryableCodes, got.RetryableCodes)
	assert.Equal(t, def.PollInterval, got.PollInterval)
	assert.Equal(t, def.ProvisioningTimeout, got.ProvisioningTimeout)
}
