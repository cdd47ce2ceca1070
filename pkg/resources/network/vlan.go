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
	ResourceTypeVlan = "CloudControl::Network::Vlan"
)

// Vlan schema and descriptor
var (
	VlanDescriptor = plugin.ResourceDescriptor{
		Type:         ResourceTypeVlan,
		Discoverable: true,
	}

	VlanSchema = model.Schema{
		Identifier:   "id",
		Discoverable: true,
		Fields: []string{
			"name", "description", "networkDomainId", "privateIpv4BaseAddress", "privateIpv4PrefixSize",
			"ipv4GatewayAddress", "ipv6Range", "state",
		},
		Hints: map[string]model.FieldHint{
			"name": {
				Required: true,
			},
			"description": {
				Required: false,
			},
			"networkDomainId": {
				Required:   true,
				CreateOnly: true,
			},
			"privateIpv4BaseAddress": {
				Required:   true,
				CreateOnly: true,
			},
			"privateIpv4PrefixSize": {
				Required:   false,
				CreateOnly: true,
			},
		},
	}
)

// Vlan provisioner
type Vlan struct {
	Client *client.Client
	Config *config.Config
}

func vlanToProperties(v *domain.Vlan) map[string]interface{} {
	props := map[string]interface{}{
		"id":                     v.ID,
		"name":                   v.Name,
		"description":            v.Description,
		"networkDomainId":        v.NetworkDomain.ID,
		"privateIpv4BaseAddress": v.PrivateIPv4Range.Address,
		"privateIpv4PrefixSize":  v.PrivateIPv4Range.PrefixSize,
		"state":                  string(v.State),
	}
	if v.IPv4GatewayAddress != "" {
		props["ipv4GatewayAddress"] = v.IPv4GatewayAddress
	}
	if v.IPv6Range.Address != "" {
		props["ipv6Range"] = fmt.Sprintf("%s/%d", v.IPv6Range.Address, v.IPv6Range.PrefixSize)
	}
	return props
}

// Register the Vlan resource type
func init() {
	registry.Register(ResourceTypeVlan, registry.Registration{
		Descriptor: VlanDescriptor,
		Schema:     VlanSchema,
		Factory: func(c *client.Client, cfg *config.Config) prov.Provisioner {
			return &Vlan{Client: c, Config: cfg}
		},
	})
}

// Create deploys a VLAN and waits until it is NORMAL
func (v *Vlan) Create(ctx context.Context, request *resource.CreateRequest) (*resource.CreateResult, error) {
	props, err := resources.ParseProperties(request.Properties)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}

	req, err := deployVlanRequest(props)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}

	op, err := v.Client.API.Network.DeployVlan(ctx, req)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), "",
				fmt.Sprintf("failed to deploy VLAN: %v", err)),
		}, nil
	}

	id, err := v.Client.API.Await(ctx, api.KindVlan, op)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), id,
				fmt.Sprintf("VLAN did not become ready: %v", err)),
		}, nil
	}

	vlan, err := v.Client.API.Network.GetVlan(ctx, id)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), id,
				fmt.Sprintf("failed to read VLAN: %v", err)),
		}, nil
	}

	return &resource.CreateResult{
		ProgressResult: resources.NewSuccessResult(resource.OperationCreate, id, vlanToProperties(vlan)),
	}, nil
}

func deployVlanRequest(props map[string]interface{}) (api.DeployVlan, error) {
	req := api.DeployVlan{
		NetworkDomainID:        resources.String(props, "networkDomainId"),
		Name:                   resources.String(props, "name"),
		Description:            resources.String(props, "description"),
		PrivateIPv4BaseAddress: resources.String(props, "privateIpv4BaseAddress"),
	}
	if req.NetworkDomainID == "" || req.Name == "" || req.PrivateIPv4BaseAddress == "" {
		return api.DeployVlan{}, fmt.Errorf("networkDomainId, name and privateIpv4BaseAddress are required")
	}
	addr, err := netip.ParseAddr(req.PrivateIPv4BaseAddress)
	if err != nil || !addr.Is4() || !addr.IsPrivate() {
		return api.DeployVlan{}, fmt.Errorf("privateIpv4BaseAddress %q must be a private IPv4 address", req.PrivateIPv4BaseAddress)
	}

	prefix, ok, err := resources.Int(props, "privateIpv4PrefixSize")
	if err != nil {
		return api.DeployVlan{}, err
	}
	if ok {
		if prefix < 16 || prefix > 24 {
			return api.DeployVlan{}, fmt.Errorf("privateIpv4PrefixSize must be between 16 and 24, got %d", prefix)
		}
		req.PrivateIPv4PrefixSize = prefix
	}
	return req, nil
}

// Read retrieves the current state of a VLAN
func (v *Vlan) Read(ctx context.Context, request *resource.ReadRequest) (*resource.ReadResult, error) {
	if err := resources.ValidateNativeID(request.NativeID); err != nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeInvalidRequest,
		}, nil
	}

	vlan, err := v.Client.API.Network.GetVlan(ctx, request.NativeID)
	if err != nil {
		return &resource.ReadResult{
			ErrorCode: resources.ErrorCode(err),
		}, nil
	}

	propsJSON, err := resources.MarshalProperties(vlanToProperties(vlan))
	if err != nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeGeneralServiceException,
		}, nil
	}
	return &resource.ReadResult{
		Properties: propsJSON,
	}, nil
}

// Update edits the name or description of a VLAN
func (v *Vlan) Update(ctx context.Context, request *resource.UpdateRequest) (*resource.UpdateResult, error) {
	if err := resources.ValidateNativeID(request.NativeID); err != nil {
		return &resource.UpdateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}
	id := request.NativeID

	props, err := resources.ParseProperties(request.DesiredProperties)
	if err != nil {
		return &resource.UpdateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resource.OperationErrorCodeInvalidRequest, id, err.Error()),
		}, nil
	}

	req := api.EditVlan{
		ID:          id,
		Name:        resources.String(props, "name"),
		Description: resources.OptionalString(props, "description"),
	}
	if _, err := v.Client.API.Network.EditVlan(ctx, req); err != nil {
		return &resource.UpdateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resources.ErrorCode(err), id,
				fmt.Sprintf("failed to edit VLAN: %v", err)),
		}, nil
	}
	if err := v.Client.API.WaitForState(ctx, api.KindVlan, id, domain.StateNormal); err != nil {
		return &resource.UpdateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resources.ErrorCode(err), id, err.Error()),
		}, nil
	}

	vlan, err := v.Client.API.Network.GetVlan(ctx, id)
	if err != nil {
		return &resource.UpdateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resources.ErrorCode(err), id,
				fmt.Sprintf("failed to read VLAN: %v", err)),
		}, nil
	}
	return &resource.UpdateResult{
		ProgressResult: resources.NewSuccessResult(resource.OperationUpdate, id, vlanToProperties(vlan)),
	}, nil
}

// Delete removes a VLAN and waits until it is gone
func (v *Vlan) Delete(ctx context.Context, request *resource.DeleteRequest) (*resource.DeleteResult, error) {
	return resources.DeleteAndWait(ctx, v.Client.API, api.KindVlan, request, v.Client.API.Network.DeleteVlan), nil
}

// Status reports the provisioning state of a VLAN
func (v *Vlan) Status(ctx context.Context, request *resource.StatusRequest) (*resource.StatusResult, error) {
	return resources.CheckResourceStatus(ctx, request, func(ctx context.Context, id string) (domain.State, map[string]interface{}, error) {
		vlan, err := v.Client.API.Network.GetVlan(ctx, id)
		if err != nil {
			return "", nil, err
		}
		return vlan.State, vlanToProperties(vlan), nil
	}), nil
}

// List discovers the VLANs of a network domain
func (v *Vlan) List(ctx context.Context, request *resource.ListRequest) (*resource.ListResult, error) {
	return resources.ListInDomain(ctx, request, v.Client.API.Network.ListVlans, func(vlan domain.Vlan) string {
		return vlan.ID
	})
}
