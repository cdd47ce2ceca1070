// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package network

import (
	"context"
	"fmt"
	"strings"

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
	ResourceTypeFirewallRule = "CloudControl::Network::FirewallRule"

	ruleTypeClient = "CLIENT_RULE"
)

// FirewallRule schema and descriptor
var (
	FirewallRuleDescriptor = plugin.ResourceDescriptor{
		Type:         ResourceTypeFirewallRule,
		Discoverable: true,
	}

	FirewallRuleSchema = model.Schema{
		Identifier:   "id",
		Discoverable: true,
		Fields: []string{
			"networkDomainId", "name", "action", "ipVersion", "protocol",
			"source", "destination", "enabled", "placement", "ruleType", "state",
		},
		Hints: map[string]model.FieldHint{
			"networkDomainId": {Required: true, CreateOnly: true},
			"name":            {Required: true, CreateOnly: true},
			"action":          {Required: true, CreateOnly: true},
			"ipVersion":       {Required: false, CreateOnly: true},
			"protocol":        {Required: true, CreateOnly: true},
			"source":          {Required: false, CreateOnly: true},
			"destination":     {Required: false, CreateOnly: true},
			"enabled":         {Required: false, CreateOnly: true},
			"placement":       {Required: false, CreateOnly: true},
		},
	}
)

// FirewallRule provisioner
type FirewallRule struct {
	Client *client.Client
	Config *config.Config
}

func targetToProperties(t domain.FirewallRuleTarget) map[string]interface{} {
	props := map[string]interface{}{}
	if t.IP != nil {
		props["ip"] = t.IP.Address
		if t.IP.PrefixSize != nil {
			props["prefixSize"] = *t.IP.PrefixSize
		}
	}
	if t.IPAddressListID != "" {
		props["ipAddressListId"] = t.IPAddressListID
	}
	if t.Port != nil {
		props["port"] = t.Port.Begin
		if t.Port.End != nil {
			props["portEnd"] = *t.Port.End
		}
	}
	if t.PortListID != "" {
		props["portListId"] = t.PortListID
	}
	return props
}

func firewallRuleToProperties(r *domain.FirewallRule) map[string]interface{} {
	return map[string]interface{}{
		"id":              r.ID,
		"networkDomainId": r.NetworkDomainID,
		"name":            r.Name,
		"action":          r.Action,
		"ipVersion":       r.IPVersion,
		"protocol":        r.Protocol,
		"source":          targetToProperties(r.Source),
		"destination":     targetToProperties(r.Destination),
		"enabled":         r.Enabled,
		"ruleType":        r.RuleType,
		"state":           string(r.State),
	}
}

// Register the FirewallRule resource type
func init() {
	registry.Register(ResourceTypeFirewallRule, registry.Registration{
		Descriptor: FirewallRuleDescriptor,
		Schema:     FirewallRuleSchema,
		Operations: []resource.Operation{
			resource.OperationCreate,
			resource.OperationRead,
			resource.OperationDelete,
			resource.OperationList,
			resource.OperationCheckStatus,
		},
		Factory: func(c *client.Client, cfg *config.Config) prov.Provisioner {
			return &FirewallRule{Client: c, Config: cfg}
		},
	})
}

// Create adds a rule to a network domain's firewall and waits until it is NORMAL
func (f *FirewallRule) Create(ctx context.Context, request *resource.CreateRequest) (*resource.CreateResult, error) {
	props, err := resources.ParseProperties(request.Properties)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}

	req, err := createFirewallRuleRequest(props)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}, nil
	}

	op, err := f.Client.API.Network.CreateFirewallRule(ctx, req)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), "",
				fmt.Sprintf("failed to create firewall rule: %v", err)),
		}, nil
	}

	id, err := f.Client.API.Await(ctx, api.KindFirewallRule, op)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), id,
				fmt.Sprintf("firewall rule did not become ready: %v", err)),
		}, nil
	}

	rule, err := f.Client.API.Network.GetFirewallRule(ctx, id)
	if err != nil {
		return &resource.CreateResult{
			ProgressResult: resources.NewFailureResult(resource.OperationCreate, resources.ErrorCode(err), id,
				fmt.Sprintf("failed to read firewall rule: %v", err)),
		}, nil
	}

	return &resource.CreateResult{
		ProgressResult: resources.NewSuccessResult(resource.OperationCreate, id, firewallRuleToProperties(rule)),
	}, nil
}

func createFirewallRuleRequest(props map[string]interface{}) (domain.CreateFirewallRule, error) {
	req := domain.CreateFirewallRule{
		NetworkDomainID: resources.String(props, "networkDomainId"),
		Name:            resources.String(props, "name"),
		Action:          strings.ToUpper(resources.String(props, "action")),
		IPVersion:       strings.ToUpper(resources.String(props, "ipVersion")),
		Protocol:        strings.ToUpper(resources.String(props, "protocol")),
		Enabled:         resources.Bool(props, "enabled", true),
	}
	if req.IPVersion == "" {
		req.IPVersion = domain.IPVersion4
	}

	var err error
	if req.Source, err = parseTarget(props, "source"); err != nil {
		return domain.CreateFirewallRule{}, err
	}
	if req.Destination, err = parseTarget(props, "destination"); err != nil {
		return domain.CreateFirewallRule{}, err
	}

	placement, _ := props["placement"].(map[string]interface{})
	position := resources.String(placement, "position")
	if position == "" {
		position = domain.PositionLast
	}
	if req.Placement, err = domain.NewPlacement(position, resources.String(placement, "relativeToRule")); err != nil {
		return domain.CreateFirewallRule{}, err
	}

	if err := req.Validate(); err != nil {
		return domain.CreateFirewallRule{}, err
	}
	return req, nil
}

// parseTarget reads a source or destination object. An absent target matches anything.
func parseTarget(props map[string]interface{}, key string) (domain.FirewallRuleTarget, error) {
	raw, ok := props[key]
	if !ok || raw == nil {
		return domain.AnyTarget(), nil
	}
	t, ok := raw.(map[string]interface{})
	if !ok {
		return domain.FirewallRuleTarget{}, fmt.Errorf("%s must be an object", key)
	}

	var opts []domain.TargetOption
	if ip := resources.String(t, "ip"); ip != "" {
		prefix, hasPrefix, err := resources.Int(t, "prefixSize")
		if err != nil {
			return domain.FirewallRuleTarget{}, fmt.Errorf("%s: %w", key, err)
		}
		var prefixSize *int
		if hasPrefix {
			prefixSize = &prefix
		}
		r, err := domain.NewIPRange(ip, prefixSize)
		if err != nil {
			return domain.FirewallRuleTarget{}, fmt.Errorf("%s: %w", key, err)
		}
		opts = append(opts, domain.WithIP(r))
	}
	if list := resources.String(t, "ipAddressListId"); list != "" {
		opts = append(opts, domain.WithIPAddressList(list))
	}

	begin, hasPort, err := resources.Int(t, "port")
	if err != nil {
		return domain.FirewallRuleTarget{}, fmt.Errorf("%s: %w", key, err)
	}
	if hasPort {
		end, hasEnd, err := resources.Int(t, "portEnd")
		if err != nil {
			return domain.FirewallRuleTarget{}, fmt.Errorf("%s: %w", key, err)
		}
		var portEnd *int
		if hasEnd {
			portEnd = &end
		}
		p, err := domain.NewPortRange(begin, portEnd)
		if err != nil {
			return domain.FirewallRuleTarget{}, fmt.Errorf("%s: %w", key, err)
		}
		opts = append(opts, domain.WithPort(p))
	}
	if list := resources.String(t, "portListId"); list != "" {
		opts = append(opts, domain.WithPortList(list))
	}

	target, err := domain.NewFirewallRuleTarget(opts...)
	if err != nil {
		return domain.FirewallRuleTarget{}, fmt.Errorf("%s: %w", key, err)
	}
	return target, nil
}

// Read retrieves the current state of a firewall rule
func (f *FirewallRule) Read(ctx context.Context, request *resource.ReadRequest) (*resource.ReadResult, error) {
	if err := resources.ValidateNativeID(request.NativeID); err != nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeInvalidRequest,
		}, nil
	}

	rule, err := f.Client.API.Network.GetFirewallRule(ctx, request.NativeID)
	if err != nil {
		return &resource.ReadResult{
			ErrorCode: resources.ErrorCode(err),
		}, nil
	}

	propsJSON, err := resources.MarshalProperties(firewallRuleToProperties(rule))
	if err != nil {
		return &resource.ReadResult{
			ErrorCode: resource.OperationErrorCodeGeneralServiceException,
		}, nil
	}
	return &resource.ReadResult{
		Properties: propsJSON,
	}, nil
}

// Update is not supported; firewall rules are replaced instead
func (f *FirewallRule) Update(ctx context.Context, request *resource.UpdateRequest) (*resource.UpdateResult, error) {
	return &resource.UpdateResult{
		ProgressResult: resources.NewFailureResult(resource.OperationUpdate, resource.OperationErrorCodeNotUpdatable, request.NativeID,
			"firewall rules cannot be updated"),
	}, nil
}

// Delete removes a firewall rule and waits until it is gone
func (f *FirewallRule) Delete(ctx context.Context, request *resource.DeleteRequest) (*resource.DeleteResult, error) {
	return resources.DeleteAndWait(ctx, f.Client.API, api.KindFirewallRule, request, f.Client.API.Network.DeleteFirewallRule), nil
}

// Status reports the provisioning state of a firewall rule
func (f *FirewallRule) Status(ctx context.Context, request *resource.StatusRequest) (*resource.StatusResult, error) {
	return resources.CheckResourceStatus(ctx, request, func(ctx context.Context, id string) (domain.State, map[string]interface{}, error) {
		rule, err := f.Client.API.Network.GetFirewallRule(ctx, id)
		if err != nil {
			return "", nil, err
		}
		return rule.State, firewallRuleToProperties(rule), nil
	}), nil
}

// List discovers the client-defined firewall rules of a network domain.
// System rules are skipped.
func (f *FirewallRule) List(ctx context.Context, request *resource.ListRequest) (*resource.ListResult, error) {
	return resources.ListInDomain(ctx, request, f.Client.API.Network.ListFirewallRules, func(r domain.FirewallRule) string {
		if r.RuleType != "" && r.RuleType != ruleTypeClient {
			return ""
		}
		return r.ID
	})
}
