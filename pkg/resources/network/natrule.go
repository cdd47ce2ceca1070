// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package network

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/platform-engineering-labs/formae/pkg/model"
	"github.com/platform-engineering-labs/formae/pkg/plugin"
	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/api"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/client"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/config"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/prov"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/registry"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/resources"
)

const (
	ResourceTypeNatRule = "CloudControl::Network::NatRule"
)

// NatRule schema and descriptor
var (
	NatRuleDescriptor = plugin.ResourceDescriptor{
		Type:         ResourceTypeNatRule,
		Discoverable: true,
	}

	NatRuleSchema = model.Schema{
		Identifier:   "id",
		Discoverable: true,
		Fields:       []string{"networkDomainId", "internalIp", "externalIp", "state"},
		Hints: map[string]model.FieldHint{
			"networkDomainId": {
				Required:   true,
				CreateOnly: true,
			},
			"internalIp": {
				Required:   true,
				CreateOnly: true,
			},
			"externalIp": {
				Required:   true,
				CreateOnly: true,
			},
		},
	}
)

// NatRule provisioner
type NatRule struct {
	Client *client.Client
	Config *config.Config
}

func natRuleToProperties(r *domain.NatRule) map[string]interface{} {
	return map[string]interface{}{
		"id":              r.ID,
		"networkDomainId": r.NetworkDomainID,
		"internalIp":      r.InternalIP,
		"externalIp":      r.ExternalIP,
		"state":           string(r.State),
	}
}

// Register the NatRule resource type
func init() {
	registry.Register(ResourceTypeNatRule, registry.Registration{
		Descriptor: NatRuleDescriptor,
		Schema:     NatRuleSchema,
		Operations: []resource.Operation{
			resource.OperationCreate,
			resource.OperationRead,
			resource.OperationDelete,
			resource.OperationList,
			resource.OperationCheckStatus,
		},
		Factory: func(c *client.Client, cfg *config.Config) prov.Provisioner {
			return &NatRule{Client: c, Config: cfg}
		},
	})
}

// Create maps an internal address to a public one and waits until the rule is NORMAL
func (n *NatRule) Create(ctx context.Context, request *resource.CreateRequest) (*resource.CreateResult, error) {
	props, err := resources.ParseProperties(request.Properties)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}

	req := api.CreateNatRule{
		NetworkDomainID: resources.String(props, "networkDomainId"),
		InternalIP:      resources.String(props, "internalIp"),
		ExternalIP:      resources.String(props, "externalIp"),
	}
	if err := validateNatRule(req); err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}

	op, err := n.Client.API.Network.CreateNatRule(ctx, req)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), "",
				fmt.Sprintf("failed to create NAT rule: %v", err)),
		}, nil
	}

	id, err := n.Client.API.Await(ctx, api.KindNatRule, op)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), id,
				fmt.Sprintf("NAT rule did not become ready: %v", err)),
		}, nil
	}

	rule, err := n.Client.API.Network.GetNatRule(ctx, id)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), id,
				fmt.Sprintf("failed to read NAT rule: %v", err)),
		}, nil
	}

	return &resource.CreateResult{
		ProgressResult: resources.NewSuccessResult(resource.OperationCreate, id, natRuleToProperties(rule)),
	}, nil
}

func validateNatRule(req api.CreateNatRule) error {
	if req.NetworkDomainID == "" || req.InternalIP == "" || req.ExternalIP == "" {
		return fmt.Errorf("networkDomainId, internalIp and externalIp are required")
	}
	for name, value := range map[string]string{"internalIp": req.InternalIP, "externalIp": req.ExternalIP} {
		addr, err := netip.ParseAddr(value)
		if err != nil || !addr.Is4() {
			return fmt.Errorf("%s %q must be an IPv4 address", name, value)
		}
	}
	return nil
}

// Read retrieves the current state of a NAT rule
func (n *NatRule) Read(ctx context.Context, request *resource.ReadRequest) (*resource.ReadResult, error) {
	if err := resources.ValidateNativeID(request.NativeID); err != nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeInvalidRequest,
		}, nil
	}

	rule, err := n.Client.API.Network.GetNatRule(ctx, request.NativeID)
	if err != nil {
		return &resource.ReadResult{
			ErrorCode: resources.ErrorCode(err),
		}, nil
	}

	propsJSON, err := resources.MarshalProperties(natRuleToProperties(rule))
	if err != nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeGeneralServiceException,
		}, nil
	}
	return &resource.ReadResult{
		Properties: propsJSON,
	}, nil
}

// Update is not supported; NAT rules are replaced instead
func (n *NatRule) Update(ctx context.Context, request *resource.UpdateRequest) (*resource.UpdateResult, error) {
	return &resource.UpdateResult{
		ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resource.OperationErrorCodeNotUpdatable, request.NativeID,
			"NAT rules cannot be updated"),
	}, nil
}

// Delete removes a NAT rule and waits until it is gone
func (n *NatRule) Delete(ctx context.Context, request *resource.DeleteRequest) (*resource.DeleteResult, error) {
	return resources.DeleteAndWait(ctx, n.Client.API, api.KindNatRule, request, n.Client.API.Network.DeleteNatRule), nil
}

// Status reports the provisioning state of a NAT rule
func (n *NatRule) Status(ctx context.Context, request *resource.StatusRequest) (*resource.StatusResult, error) {
	return resources.CheckResourceStatus(ctx, request, func(ctx context.Context, id string) (domain.State, map[string]interface{}, error) {
		rule, err := n.Client.API.Network.GetNatRule(ctx, id)
		if err != nil {
			return "", nil, err
		}
		return rule.State, natRuleToProperties(rule), nil
	}), nil
}

// List discovers the NAT rules of a network domain
func (n *NatRule) List(ctx context.Context, request *resource.ListRequest) (*resource.ListResult, error) {
	return resources.ListInDomain(ctx, request, n.Client.API.Network.ListNatRules, func(r domain.NatRule) string {
		return r.ID
	})
}
