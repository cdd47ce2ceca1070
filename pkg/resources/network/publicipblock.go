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
	ResourceTypePublicIPBlock = "CloudControl::Network::PublicIpBlock"
)

// PublicIPBlock schema and descriptor
var (
	PublicIPBlockDescriptor = plugin.ResourceDescriptor{
		Type:         ResourceTypePublicIPBlock,
		Discoverable: true,
	}

	PublicIPBlockSchema = model.Schema{
		Identifier:   "id",
		Discoverable: true,
		Fields:       []string{"networkDomainId", "baseIp", "size", "state"},
		Hints: map[string]model.FieldHint{
			"networkDomainId": {
				Required:   true,
				CreateOnly: true,
			},
		},
	}
)

// PublicIPBlock provisioner. Blocks cannot be edited; every change replaces the block.
type PublicIPBlock struct {
	Client *client.Client
	Config *config.Config
}

func publicIPBlockToProperties(b *domain.PublicIPBlock) map[string]interface{} {
	return map[string]interface{}{
		"id":              b.ID,
		"networkDomainId": b.NetworkDomainID,
		"baseIp":          b.BaseIP,
		"size":            b.Size,
		"state":           string(b.State),
	}
}

// Register the PublicIPBlock resource type
func init() {
	registry.Register(ResourceTypePublicIPBlock, registry.Registration{
		Descriptor: PublicIPBlockDescriptor,
		Schema:     PublicIPBlockSchema,
		Operations: []resource.Operation{
			resource.OperationCreate,
			resource.OperationRead,
			resource.OperationDelete,
			resource.OperationList,
			resource.OperationCheckStatus,
		},
		Factory: func(c *client.Client, cfg *config.Config) prov.Provisioner {
			return &PublicIPBlock{Client: c, Config: cfg}
		},
	})
}

// Create adds a public IPv4 block to a network domain and waits until it is NORMAL
func (p *PublicIPBlock) Create(ctx context.Context, request *resource.CreateRequest) (*resource.CreateResult, error) {
	props, err := resources.ParseProperties(request.Properties)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}

	domainID := resources.String(props, "networkDomainId")
	if domainID == "" {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resource.OperationErrorCodeInvalidRequest, "", "networkDomainId is required"),
		}, nil
	}

	op, err := p.Client.API.Network.AddPublicIPv4AddressBlock(ctx, domainID)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), "",
				fmt.Sprintf("failed to add public IP block: %v", err)),
		}, nil
	}

	id, err := p.Client.API.Await(ctx, api.KindPublicIPBlock, op)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), id,
				fmt.Sprintf("public IP block did not become ready: %v", err)),
		}, nil
	}

	block, err := p.Client.API.Network.GetPublicIPv4AddressBlock(ctx, id)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), id,
				fmt.Sprintf("failed to read public IP block: %v", err)),
		}, nil
	}

	return &resource.CreateResult{
		ProgressResult: resources.NewSuccessResult(resource.OperationCreate, id, publicIPBlockToProperties(block)),
	}, nil
}

// Read retrieves the current state of a public IP block
func (p *PublicIPBlock) Read(ctx context.Context, request *resource.ReadRequest) (*resource.ReadResult, error) {
	if err := resources.ValidateNativeID(request.NativeID); err != nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeInvalidRequest,
		}, nil
	}

	block, err := p.Client.API.Network.GetPublicIPv4AddressBlock(ctx, request.NativeID)
	if err != nil {
		return &resource.ReadResult{
			ErrorCode: resources.ErrorCode(err),
		}, nil
	}

	propsJSON, err := resources.MarshalProperties(publicIPBlockToProperties(block))
	if err != nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeGeneralServiceException,
		}, nil
	}
	return &resource.ReadResult{
		Properties: propsJSON,
	}, nil
}

// Update is not supported; public IP blocks have no mutable fields
func (p *PublicIPBlock) Update(ctx context.Context, request *resource.UpdateRequest) (*resource.UpdateResult, error) {
	return &resource.UpdateResult{
		ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resource.OperationErrorCodeNotUpdatable, request.NativeID,
			"public IP blocks cannot be updated"),
	}, nil
}

// Delete removes a public IP block and waits until it is gone
func (p *PublicIPBlock) Delete(ctx context.Context, request *resource.DeleteRequest) (*resource.DeleteResult, error) {
	return resources.DeleteAndWait(ctx, p.Client.API, api.KindPublicIPBlock, request, p.Client.API.Network.RemovePublicIPv4AddressBlock), nil
}

// Status reports the provisioning state of a public IP block
func (p *PublicIPBlock) Status(ctx context.Context, request *resource.StatusRequest) (*resource.StatusResult, error) {
	return resources.CheckResourceStatus(ctx, request, func(ctx context.Context, id string) (domain.State, map[string]interface{}, error) {
		block, err := p.Client.API.Network.GetPublicIPv4AddressBlock(ctx, id)
		if err != nil {
			return "", nil, err
		}
		return block.State, publicIPBlockToProperties(block), nil
	}), nil
}

// List discovers the public IP blocks of a network domain
func (p *PublicIPBlock) List(ctx context.Context, request *resource.ListRequest) (*resource.ListResult, error) {
	return resources.ListInDomain(ctx, request, p.Client.API.Network.ListPublicIPv4AddressBlocks, func(b domain.PublicIPBlock) string {
		return b.ID
	})
}
