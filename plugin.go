// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/platform-engineering-labs/formae/pkg/plugin"
	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/client"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/config"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/prov"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/registry"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/resources"

	// Import resources to trigger init() registration
	_ "github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/resources/compute"
	_ "github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/resources/network"
)

// EnvVerbosity sets the plugin log verbosity (0 = info, higher is chattier).
const EnvVerbosity = "CLOUDCONTROL_LOG_VERBOSITY"

// Plugin implements the Formae ResourcePlugin interface.
// The SDK automatically provides identity methods (Name, Version, Namespace)
// and schema methods (SupportedResources, SchemaForResourceType) by reading
// formae-plugin.pkl and schema/pkl/ at startup.
type Plugin struct {
	// Logger receives operation logs. Defaults to a stdr logger on stderr.
	Logger logr.Logger
	// ClientOptions are applied to every CloudControl client the plugin builds.
	ClientOptions []client.Option
}

// Compile-time check: Plugin must satisfy ResourcePlugin interface.
var _ plugin.ResourcePlugin = &Plugin{}

func defaultLogger() logr.Logger {
	if v, err := strconv.Atoi(os.Getenv(EnvVerbosity)); err == nil {
		stdr.SetVerbosity(v)
	}
	return stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("cloudcontrol")
}

// RateLimit returns the rate limit configuration for this plugin
func (p *Plugin) RateLimit() plugin.RateLimitConfig {
	return plugin.RateLimitConfig{
		Scope:                            plugin.RateLimitScopeNamespace,
		MaxRequestsPerSecondForNamespace: 10, // CloudControl throttles per organization
	}
}

// DiscoveryFilters returns declarative filters for discovery.
// CloudControl doesn't need any special filters currently.
func (p *Plugin) DiscoveryFilters() []plugin.MatchFilter {
	return nil
}

// LabelConfig returns the label extraction configuration for discovered CloudControl resources.
// Most resources have a "name" property; public IP blocks and NAT rules are labelled by address.
func (p *Plugin) LabelConfig() plugin.LabelConfig {
	return plugin.LabelConfig{
		DefaultQuery: "$.name",
		ResourceOverrides: map[string]string{
			"CloudControl::Network::PublicIpBlock": "$.baseIp",
			"CloudControl::Network::NatRule":       "$.externalIp",
		},
	}
}

// provisioner resolves the target config, builds a client and returns the
// provisioner registered for resourceType. The returned context carries the
// plugin logger.
func (p *Plugin) provisioner(ctx context.Context, targetConfig json.RawMessage, resourceType string) (context.Context, prov.Provisioner, error) {
	if !registry.HasProvisioner(resourceType) {
		return ctx, nil, fmt.Errorf("unsupported resource type: %s", resourceType)
	}

	logger := p.Logger
	if logger.GetSink() == nil {
		logger = defaultLogger()
	}
	ctx = logr.NewContext(ctx, logger.WithValues("resourceType", resourceType))

	cfg, err := config.FromTargetConfig(targetConfig)
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to extract config from target: %w", err)
	}

	ccClient, err := client.NewClient(ctx, cfg, p.ClientOptions...)
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to create CloudControl client: %w", err)
	}

	return ctx, registry.Get(resourceType, ccClient, cfg), nil
}

func (p *Plugin) Create(ctx context.Context, request *resource.CreateRequest) (*resource.CreateResult, error) {
	ctx, provisioner, err := p.provisioner(ctx, request.TargetConfig, request.ResourceType)
	if err != nil {
		return nil, err
	}
	logr.FromContextOrDiscard(ctx).V(1).Info("create", "label", request.Label)
	return provisioner.Create(ctx, request)
}

func (p *Plugin) Read(ctx context.Context, request *resource.ReadRequest) (*resource.ReadResult, error) {
	ctx, provisioner, err := p.provisioner(ctx, request.TargetConfig, request.ResourceType)
	if err != nil {
		return nil, err
	}
	return provisioner.Read(ctx, request)
}

func (p *Plugin) Update(ctx context.Context, request *resource.UpdateRequest) (*resource.UpdateResult, error) {
	// Immutable types are rejected before any client is built
	if registry.HasProvisioner(request.ResourceType) && !registry.Supports(request.ResourceType, resource.OperationUpdate) {
		return &resource.UpdateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resource.OperationErrorCodeNotUpdatable, request.NativeID,
				fmt.Sprintf("%s cannot be updated", request.ResourceType)),
		}, nil
	}

	ctx, provisioner, err := p.provisioner(ctx, request.TargetConfig, request.ResourceType)
	if err != nil {
		return nil, err
	}
	logr.FromContextOrDiscard(ctx).V(1).Info("update", "nativeId", request.NativeID)
	return provisioner.Update(ctx, request)
}

func (p *Plugin) Delete(ctx context.Context, request *resource.DeleteRequest) (*resource.DeleteResult, error) {
	ctx, provisioner, err := p.provisioner(ctx, request.TargetConfig, request.ResourceType)
	if err != nil {
		return nil, err
	}
	logr.FromContextOrDiscard(ctx).V(1).Info("delete", "nativeId", request.NativeID)
	return provisioner.Delete(ctx, request)
}

func (p *Plugin) Status(ctx context.Context, request *resource.StatusRequest) (*resource.StatusResult, error) {
	ctx, provisioner, err := p.provisioner(ctx, request.TargetConfig, request.ResourceType)
	if err != nil {
		return nil, err
	}
	return provisioner.Status(ctx, request)
}

func (p *Plugin) List(ctx context.Context, request *resource.ListRequest) (*resource.ListResult, error) {
	ctx, provisioner, err := p.provisioner(ctx, request.TargetConfig, request.ResourceType)
	if err != nil {
		return nil, err
	}
	return provisioner.List(ctx, request)
}
