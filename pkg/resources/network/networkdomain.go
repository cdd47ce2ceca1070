// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package network

import (
	"context"
	"fmt"

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
	ResourceTypeNetworkDomain = "CloudControl::Network::NetworkDomain"
)

// NetworkDomain schema and descriptor
var (
	NetworkDomainDescriptor = plugin.ResourceDescriptor{
		Type:         ResourceTypeNetworkDomain,
		Discoverable: true,
	}

	NetworkDomainSchema = model.Schema{
		Identifier:   "id",
		Discoverable: true,
		Fields:       []string{"name", "description", "type", "datacenterId", "snatIpv4Address", "state"},
		Hints: map[string]model.FieldHint{
			"name": {
				Required: true,
			},
			"description": {
				Required: false,
			},
			"type": {
				Required: false,
			},
			"datacenterId": {
				Required:   true,
				CreateOnly: true,
			},
		},
	}
)

// NetworkDomain provisioner
type NetworkDomain struct {
	Client *client.Client
	Config *config.Config
}

// networkDomainToProperties converts a network domain to a properties map.
// This is used by Create, Read, Update, Status to ensure consistent property marshaling.
func networkDomainToProperties(nd *domain.NetworkDomain) map[string]interface{} {
	props := map[string]interface{}{
		"id":           nd.ID,
		"name":         nd.Name,
		"description":  nd.Description,
		"type":         nd.Type,
		"datacenterId": nd.DatacenterID,
		"state":        string(nd.State),
	}
	if nd.SnatIPv4Address != "" {
		props["snatIpv4Address"] = nd.SnatIPv4Address
	}
	return props
}

// Register the NetworkDomain resource type
func init() {
	registry.Register(ResourceTypeNetworkDomain, registry.Registration{
		Descriptor: NetworkDomainDescriptor,
		Schema:     NetworkDomainSchema,
		Factory: func(c *client.Client, cfg *config.Config) prov.Provisioner {
			return &NetworkDomain{Client: c, Config: cfg}
		},
	})
}

// Create deploys a network domain and waits until it is NORMAL
func (n *NetworkDomain) Create(ctx context.Context, request *resource.CreateRequest) (*resource.CreateResult, error) {
	props, err := resources.ParseProperties(request.Properties)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}

	req := api.DeployNetworkDomain{
		Name:         resources.String(props, "name"),
		Description:  resources.String(props, "description"),
		DatacenterID: resources.String(props, "datacenterId"),
		Type:         resources.String(props, "type"),
	}
	if req.Name == "" || req.DatacenterID == "" {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resource.OperationErrorCodeInvalidRequest, "", "name and datacenterId are required"),
		}, nil
	}

	op, err := n.Client.API.Network.DeployNetworkDomain(ctx, req)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), "",
				fmt.Sprintf("failed to deploy network domain: %v", err)),
		}, nil
	}

	id, err := n.Client.API.Await(ctx, api.KindNetworkDomain, op)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), id,
				fmt.Sprintf("network domain did not become ready: %v", err)),
		}, nil
	}

	nd, err := n.Client.API.Network.GetNetworkDomain(ctx, id)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), id,
				fmt.Sprintf("failed to read network domain: %v", err)),
		}, nil
	}

	return &resource.CreateResult{
		ProgressResult: resources.NewSuccessResult(resource.OperationCreate, id, networkDomainToProperties(nd)),
	}, nil
}

// Read retrieves the current state of a network domain
func (n *NetworkDomain) Read(ctx context.Context, request *resource.ReadRequest) (*resource.ReadResult, error) {
	if err := resources.ValidateNativeID(request.NativeID); err != nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeInvalidRequest,
		}, nil
	}

	nd, err := n.Client.API.Network.GetNetworkDomain(ctx, request.NativeID)
	if err != nil {
		return &resource.ReadResult{
			ErrorCode: resources.ErrorCode(err),
		}, nil
	}

	propsJSON, err := resources.MarshalProperties(networkDomainToProperties(nd))
	if err != nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeGeneralServiceException,
		}, nil
	}
	return &resource.ReadResult{
		Properties: propsJSON,
	}, nil
}

// Update edits the name, description or type of a network domain
func (n *NetworkDomain) Update(ctx context.Context, request *resource.UpdateRequest) (*resource.UpdateResult, error) {
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

	req := api.EditNetworkDomain{
		ID:          id,
		Name:        resources.String(props, "name"),
		Description: resources.OptionalString(props, "description"),
		Type:        resources.String(props, "type"),
	}

	if _, err := n.Client.API.Network.EditNetworkDomain(ctx, req); err != nil {
		return &resource.UpdateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resources.ErrorCode(err), id,
				fmt.Sprintf("failed to edit network domain: %v", err)),
		}, nil
	}
	if err := n.Client.API.WaitForState(ctx, api.KindNetworkDomain, id, domain.StateNormal); err != nil {
		return &resource.UpdateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resources.ErrorCode(err), id, err.Error()),
		}, nil
	}

	nd, err := n.Client.API.Network.GetNetworkDomain(ctx, id)
	if err != nil {
		return &resource.UpdateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resources.ErrorCode(err), id,
				fmt.Sprintf("failed to read network domain: %v", err)),
		}, nil
	}
	return &resource.UpdateResult{
		ProgressResult: resources.NewSuccessResult(resource.OperationUpdate, id, networkDomainToProperties(nd)),
	}, nil
}

// Delete removes a network domain and waits until it is gone
func (n *NetworkDomain) Delete(ctx context.Context, request *resource.DeleteRequest) (*resource.DeleteResult, error) {
	return resources.DeleteAndWait(ctx, n.Client.API, api.KindNetworkDomain, request, n.Client.API.Network.DeleteNetworkDomain), nil
}

// Status reports the provisioning state of a network domain
func (n *NetworkDomain) Status(ctx context.Context, request *resource.StatusRequest) (*resource.StatusResult, error) {
	return resources.CheckResourceStatus(ctx, request, func(ctx context.Context, id string) (domain.State, map[string]interface{}, error) {
		nd, err := n.Client.API.Network.GetNetworkDomain(ctx, id)
		if err != nil {
			return "", nil, err
		}
		return nd.State, networkDomainToProperties(nd), nil
	}), nil
}

// List discovers the organization's network domains
func (n *NetworkDomain) List(ctx context.Context, request *resource.ListRequest) (*resource.ListResult, error) {
	nativeIDs := make([]string, 0)
	for nd, err := range n.Client.API.Network.ListNetworkDomains(api.ListOptions{}).Concat(ctx) {
		if err != nil {
			return &resource.ListResult{}, fmt.Errorf("failed to list network domains: %w", err)
		}
		nativeIDs = append(nativeIDs, nd.ID)
	}
	return &resource.ListResult{
		NativeIDs: nativeIDs,
	}, nil
}
