// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package compute

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/platform-engineering-labs/formae/pkg/model"
	"github.com/platform-engineering-labs/formae/pkg/plugin"
	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/client"
	computesvc "github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/compute"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/config"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/prov"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/registry"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/resources"
)

const (
	ResourceTypeServer = "CloudControl::Compute::Server"
)

// Server schema and descriptor
var (
	ServerDescriptor = plugin.ResourceDescriptor{
		Type:         ResourceTypeServer,
		Discoverable: true,
	}

	ServerSchema = model.Schema{
		Identifier:   "id",
		Discoverable: true,
		Fields: []string{
			"group", "name", "imageId", "networkDomainId", "vlanId", "cpuCount", "memoryGb",
			"adminPassword", "inboundPorts", "started",
			"status", "datacenterId", "privateAddresses", "publicAddresses", "adminUser",
		},
		Hints: map[string]model.FieldHint{
			"group": {
				Required:   true,
				CreateOnly: true,
			},
			"name": {
				Required:   false,
				CreateOnly: true,
			},
			"imageId": {
				Required:   true,
				CreateOnly: true,
			},
			"networkDomainId": {
				Required:   true,
				CreateOnly: true,
			},
			"vlanId": {
				Required:   true,
				CreateOnly: true,
			},
			"cpuCount": {
				Required:   false,
				CreateOnly: true,
			},
			"memoryGb": {
				Required:   false,
				CreateOnly: true,
			},
			"adminPassword": {
				Required:   false,
				CreateOnly: true,
			},
			"inboundPorts": {
				Required:   false,
				CreateOnly: true,
			},
			"started": {
				Required: false,
			},
		},
	}
)

// Server provisioner. Servers are managed as compute nodes: created started,
// optionally exposed on public ports, and torn down together with their NAT
// and firewall rules.
type Server struct {
	Client *client.Client
	Config *config.Config
}

// nodeToProperties never includes the administrator password; it is an
// input only and is not written back into stored properties.
func nodeToProperties(n *computesvc.Node) map[string]interface{} {
	props := map[string]interface{}{
		"id":               n.ID,
		"name":             n.Name,
		"group":            n.Group,
		"imageId":          n.ImageID,
		"datacenterId":     n.LocationID,
		"networkDomainId":  n.Server.NetworkInfo.NetworkDomainID,
		"vlanId":           n.Server.NetworkInfo.PrimaryNIC.VlanID,
		"cpuCount":         n.Server.CPU.Count,
		"memoryGb":         n.Server.MemoryGB,
		"started":          n.Server.Started,
		"status":           string(n.Status),
		"privateAddresses": nonNil(n.PrivateAddresses),
		"publicAddresses":  nonNil(n.PublicAddresses),
	}
	if n.Credentials != nil {
		props["adminUser"] = n.Credentials.User
	}
	return props
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Register the Server resource type
func init() {
	registry.Register(ResourceTypeServer, registry.Registration{
		Descriptor: ServerDescriptor,
		Schema:     ServerSchema,
		Factory: func(c *client.Client, cfg *config.Config) prov.Provisioner {
			return &Server{Client: c, Config: cfg}
		},
	})
}

// Create deploys a server, waits until it runs and opens its inbound ports
func (s *Server) Create(ctx context.Context, request *resource.CreateRequest) (*resource.CreateResult, error) {
	props, err := resources.ParseProperties(request.Properties)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}

	template, err := templateFromProperties(props)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}

	name := resources.String(props, "name")
	if name == "" {
		name = computesvc.EncodeName(template.Group)
	}

	logr.FromContextOrDiscard(ctx).V(1).Info("creating server", "label", request.Label, "name", name)
	node, err := s.Client.Compute.CreateNodeWithGroupEncodedIntoName(ctx, template.Group, name, template)
	if err != nil {
		// A server that could not be cleaned up keeps its id so it stays tracked
		var orphaned *computesvc.OrphanedServerError
		nativeID := ""
		if errors.As(err, &orphaned) {
			nativeID = orphaned.ID
		}
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), nativeID,
				fmt.Sprintf("failed to create server: %v", err)),
		}, nil
	}

	return &resource.CreateResult{
		ProgressResult: resources.NewSuccessResult(resource.OperationCreate, node.ID, nodeToProperties(node)),
	}, nil
}

func templateFromProperties(props map[string]interface{}) (computesvc.Template, error) {
	t := computesvc.Template{
		Group:           resources.String(props, "group"),
		ImageID:         resources.String(props, "imageId"),
		NetworkDomainID: resources.String(props, "networkDomainId"),
		VlanID:          resources.String(props, "vlanId"),
		AdminPassword:   resources.String(props, "adminPassword"),
	}
	if t.Group == "" || t.ImageID == "" || t.NetworkDomainID == "" || t.VlanID == "" {
		return computesvc.Template{}, fmt.Errorf("group, imageId, networkDomainId and vlanId are required")
	}

	cpu, _, err := resources.Int(props, "cpuCount")
	if err != nil {
		return computesvc.Template{}, err
	}
	memory, _, err := resources.Int(props, "memoryGb")
	if err != nil {
		return computesvc.Template{}, err
	}
	if cpu < 0 || memory < 0 {
		return computesvc.Template{}, fmt.Errorf("cpuCount and memoryGb must not be negative")
	}
	t.CPUCount, t.MemoryGB = cpu, memory

	ports, err := resources.Ints(props, "inboundPorts")
	if err != nil {
		return computesvc.Template{}, err
	}
	for _, p := range ports {
		if p < 1 || p > 65535 {
			return computesvc.Template{}, fmt.Errorf("inbound port %d out of range", p)
		}
	}
	t.InboundPorts = ports
	return t, nil
}

// Read retrieves the current state of a server
func (s *Server) Read(ctx context.Context, request *resource.ReadRequest) (*resource.ReadResult, error) {
	if err := resources.ValidateNativeID(request.NativeID); err != nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeInvalidRequest,
		}, nil
	}

	node, err := s.Client.Compute.GetNode(ctx, request.NativeID)
	if err != nil {
		return &resource.ReadResult{
			ErrorCode: resources.ErrorCode(err),
		}, nil
	}
	if node == nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeNotFound,
		}, nil
	}

	propsJSON, err := resources.MarshalProperties(nodeToProperties(node))
	if err != nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeGeneralServiceException,
		}, nil
	}
	return &resource.ReadResult{
		Properties: propsJSON,
	}, nil
}

// Update starts or stops a server to match the desired started flag
func (s *Server) Update(ctx context.Context, request *resource.UpdateRequest) (*resource.UpdateResult, error) {
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

	node, err := s.Client.Compute.GetNode(ctx, id)
	if err != nil {
		return &resource.UpdateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resources.ErrorCode(err), id, err.Error()),
		}, nil
	}
	if node == nil {
		return &resource.UpdateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resource.OperationErrorCodeNotFound, id, "server not found"),
		}, nil
	}

	want := resources.Bool(props, "started", true)
	if want != node.Server.Started {
		if want {
			err = s.Client.Compute.ResumeNode(ctx, id)
		} else {
			err = s.Client.Compute.SuspendNode(ctx, id)
		}
		if err != nil {
			return &resource.UpdateResult{
				ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resources.ErrorCode(err), id, err.Error()),
			}, nil
		}
		node, err = s.Client.Compute.GetNode(ctx, id)
		if err != nil {
			return &resource.UpdateResult{
				ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resources.ErrorCode(err), id,
					fmt.Sprintf("failed to read server: %v", err)),
			}, nil
		}
		if node == nil {
			return &resource.UpdateResult{
				ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resource.OperationErrorCodeNotFound, id, "server disappeared"),
			}, nil
		}
	}

	return &resource.UpdateResult{
		ProgressResult: resources.NewSuccessResult(resource.OperationUpdate, id, nodeToProperties(node)),
	}, nil
}

// Delete destroys a server together with its NAT and firewall rules
func (s *Server) Delete(ctx context.Context, request *resource.DeleteRequest) (*resource.DeleteResult, error) {
	if err := resources.ValidateNativeID(request.NativeID); err != nil {
		return &resource.DeleteResult{
			ProgressResult: resources.NewFailureResult(resource.OperationDelete, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}

	if err := s.Client.Compute.DestroyNode(ctx, request.NativeID); err != nil {
		return &resource.DeleteResult{
			ProgressResult: resources.NewFailureResult(resource.OperationDelete, resources.ErrorCode(err), request.NativeID,
				fmt.Sprintf("failed to destroy server: %v", err)),
		}, nil
	}
	return &resource.DeleteResult{
		ProgressResult: resources.NewSuccessResult(resource.OperationDelete, request.NativeID, nil),
	}, nil
}

// Status reports the provisioning state of a server
func (s *Server) Status(ctx context.Context, request *resource.StatusRequest) (*resource.StatusResult, error) {
	id := request.NativeID
	if id == "" {
		id = request.RequestID
	}
	if err := resources.ValidateNativeID(id); err != nil {
		return &resource.StatusResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCheckStatus, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}

	node, err := s.Client.Compute.GetNode(ctx, id)
	if err != nil {
		return &resource.StatusResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCheckStatus, resources.ErrorCode(err), id, err.Error()),
		}, nil
	}
	if node == nil {
		return &resource.StatusResult{ProgressResult: resources.CheckStatus(id, nil, nil)}, nil
	}
	state := node.Server.State
	return &resource.StatusResult{ProgressResult: resources.CheckStatus(id, &state, nodeToProperties(node))}, nil
}

// List discovers servers, scoped to a network domain when one is given
func (s *Server) List(ctx context.Context, request *resource.ListRequest) (*resource.ListResult, error) {
	nodes, err := s.Client.Compute.ListNodes(ctx)
	if err != nil {
		return &resource.ListResult{}, fmt.Errorf("failed to list servers: %w", err)
	}

	domainID := request.AdditionalProperties[resources.NetworkDomainIDProperty]
	nativeIDs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if domainID != "" && n.Server.NetworkInfo.NetworkDomainID != domainID {
			continue
		}
		nativeIDs = append(nativeIDs, n.ID)
	}
	return &resource.ListResult{
		NativeIDs: nativeIDs,
	}, nil
}
