// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/platform-engineering-labs/formae/pkg/model"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/api"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/transport/cloudcontrol"
)

// Environment variables read by FromTargetConfig.
const (
	EnvRegion   = "CLOUDCONTROL_REGION"
	EnvEndpoint = "CLOUDCONTROL_ENDPOINT"
	EnvOrgID    = "CLOUDCONTROL_ORG_ID"
	EnvUsername = "CLOUDCONTROL_USERNAME"
	EnvPassword = "CLOUDCONTROL_PASSWORD"
)

// Config holds CloudControl connection and tuning settings.
// Note: Only non-sensitive settings are stored in the target config.
// Credentials (Username, Password) are always read from environment
// variables to avoid storing secrets in the database.
type Config struct {
	// Stored in target config (non-sensitive)
	Region   string `json:"region"`             // na, eu, au, ap, af, ...
	Endpoint string `json:"endpoint,omitempty"` // overrides the regional endpoint
	OrgID    string `json:"orgId,omitempty"`    // looked up from the user when empty

	MaxAttempts         int      `json:"maxAttempts,omitempty"`
	RetryableCodes      []string `json:"retryableCodes,omitempty"`
	RetryInterval       Duration `json:"retryInterval,omitempty"`
	PollInterval        Duration `json:"pollInterval,omitempty"`
	ProvisioningTimeout Duration `json:"provisioningTimeout,omitempty"`

	// Read from environment variables only (never stored)
	Username string `json:"-"` // From CLOUDCONTROL_USERNAME
	Password string `json:"-"` // From CLOUDCONTROL_PASSWORD
}

// Duration is a time.Duration encoded as a Go duration string ("5s", "30m").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if v < 0 {
		return fmt.Errorf("duration %q must not be negative", s)
	}
	*d = Duration(v)
	return nil
}

// FromTarget extracts CloudControl configuration from a Target
func FromTarget(target *model.Target) (*Config, error) {
	if target == nil {
		return nil, fmt.Errorf("target is nil")
	}
	return FromTargetConfig(target.Config)
}

// FromTargetConfig extracts CloudControl configuration from a TargetConfig JSON.
// Region, endpoint and organization fall back to environment variables.
// Credentials are always read from environment variables.
func FromTargetConfig(targetConfig json.RawMessage) (*Config, error) {
	var cfg Config

	if len(targetConfig) > 0 {
		if err := json.Unmarshal(targetConfig, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal target config: %w", err)
		}
	}

	if cfg.Region == "" {
		cfg.Region = os.Getenv(EnvRegion)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv(EnvEndpoint)
	}
	if cfg.OrgID == "" {
		cfg.OrgID = os.Getenv(EnvOrgID)
	}

	cfg.Username = os.Getenv(EnvUsername)
	cfg.Password = os.Getenv(EnvPassword)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields needed to reach the API.
func (c *Config) Validate() error {
	if c.Region == "" && c.Endpoint == "" {
		return fmt.Errorf("region is required (set %s or provide region or endpoint in target config)", EnvRegion)
	}
	if c.Username == "" {
		return fmt.Errorf("%s environment variable is required", EnvUsername)
	}
	if c.Password == "" {
		return fmt.Errorf("%s environment variable is required", EnvPassword)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("maxAttempts must not be negative, got %d", c.MaxAttempts)
	}
	return nil
}

// BaseURL returns the versioned API endpoint.
func (c *Config) BaseURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return cloudcontrol.EndpointForRegion(strings.ToLower(c.Region))
}

// ToTransportConfig converts Config to the transport client configuration.
func (c *Config) ToTransportConfig() *cloudcontrol.Config {
	return &cloudcontrol.Config{
		Endpoint: c.BaseURL(),
		Username: c.Username,
		Password: c.Password,
		OrgID:    c.OrgID,
	}
}

// APIOptions converts the tuning settings to adapter options. Unset fields
// keep the adapter defaults.
func (c *Config) APIOptions() api.Options {
	opts := api.Options{
		RetryableCodes:      c.RetryableCodes,
		PollInterval:        time.Duration(c.PollInterval),
		ProvisioningTimeout: time.Duration(c.ProvisioningTimeout),
	}
	opts.Retry.MaxAttempts = c.MaxAttempts
	opts.Retry.InitialInterval = time.Duration(c.RetryInterval)
	return opts
}
