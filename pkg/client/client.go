// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/api"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/compute"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/config"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/transport/cloudcontrol"
)

// Client bundles the CloudControl layers used by the provisioners
type Client struct {
	Config *config.Config

	// Transport executes authenticated requests against the organization
	Transport *cloudcontrol.Client
	// API is the typed resource adapter (network, server, image, infrastructure)
	API *api.API
	// Compute is the node lifecycle service built on API
	Compute *compute.Service
}

// Option customizes client construction.
type Option func(*cloudcontrol.Config)

// WithHTTPClient replaces the HTTP client used by the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *cloudcontrol.Config) { c.HTTPClient = hc }
}

// NewClient creates a CloudControl client. The organization is resolved
// from the account when the config does not carry one.
func NewClient(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	tc := cfg.ToTransportConfig()
	for _, opt := range opts {
		opt(tc)
	}

	transport, err := cloudcontrol.NewClient(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("failed to create CloudControl client: %w", err)
	}

	a := api.New(transport, cfg.APIOptions())
	return &Client{
		Config:    cfg,
		Transport: transport,
		API:       a,
		Compute:   compute.NewService(a),
	}, nil
}

// OrgID returns the organization the client is bound to.
func (c *Client) OrgID() string {
	return c.Transport.OrgID()
}
