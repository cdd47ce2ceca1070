// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package api

import (
	"context"
	"errors"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/paging"
)

// NetworkAPI covers network domains, VLANs, public IP blocks, firewall rules
// and NAT rules.
type NetworkAPI struct {
	b *base
}

// DeployNetworkDomain is the request body of deployNetworkDomain.
type DeployNetworkDomain struct {
	DatacenterID string `json:"datacenterId"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Type         string `json:"type"`
}

// EditNetworkDomain is the request body of editNetworkDomain.
type EditNetworkDomain struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Type        string  `json:"type,omitempty"`
}

// DeployVlan is the request body of deployVlan.
type DeployVlan struct {
	NetworkDomainID        string `json:"networkDomainId"`
	Name                   string `json:"name"`
	Description            string `json:"description,omitempty"`
	PrivateIPv4BaseAddress string `json:"privateIpv4BaseAddress"`
	PrivateIPv4PrefixSize  int    `json:"privateIpv4PrefixSize,omitempty"`
}

// EditVlan is the request body of editVlan.
type EditVlan struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CreateNatRule is the request body of createNatRule.
type CreateNatRule struct {
	NetworkDomainID string `json:"networkDomainId"`
	InternalIP      string `json:"internalIp"`
	ExternalIP      string `json:"externalIp"`
}

type networkDomainRequest struct {
	NetworkDomainID string `json:"networkDomainId"`
}

// ListNetworkDomains lists the organization's network domains.
func (n *NetworkAPI) ListNetworkDomains(opts ListOptions) *paging.Pager[domain.NetworkDomain] {
	return newPager[domain.NetworkDomain](n.b, KindNetworkDomain.Path(), "networkDomain", opts)
}

// GetNetworkDomain fetches a network domain by id.
func (n *NetworkAPI) GetNetworkDomain(ctx context.Context, id string) (*domain.NetworkDomain, error) {
	var nd domain.NetworkDomain
	if err := n.b.get(ctx, KindNetworkDomain.Path()+"/"+id, &nd); err != nil {
		return nil, err
	}
	return &nd, nil
}

// DeployNetworkDomain creates a network domain. The id is returned in the
// networkDomainId info entry.
func (n *NetworkAPI) DeployNetworkDomain(ctx context.Context, req DeployNetworkDomain) (*domain.Operation, error) {
	if req.Type == "" {
		req.Type = domain.NetworkDomainTypeEssentials
	}
	return n.b.post(ctx, "network/deployNetworkDomain", req)
}

// EditNetworkDomain changes the name, description or type of a network domain.
func (n *NetworkAPI) EditNetworkDomain(ctx context.Context, req EditNetworkDomain) (*domain.Operation, error) {
	return n.b.post(ctx, "network/editNetworkDomain", req)
}

// DeleteNetworkDomain deletes a network domain. Deleting a missing domain
// returns a nil operation and no error.
func (n *NetworkAPI) DeleteNetworkDomain(ctx context.Context, id string) (*domain.Operation, error) {
	return n.b.remove(ctx, "network/deleteNetworkDomain", id)
}

// ListVlans lists the VLANs of a network domain.
func (n *NetworkAPI) ListVlans(networkDomainID string) *paging.Pager[domain.Vlan] {
	return n.ListVlansWithOptions(ListOptions{NetworkDomainID: networkDomainID})
}

// ListVlansWithOptions lists VLANs with arbitrary filters.
func (n *NetworkAPI) ListVlansWithOptions(opts ListOptions) *paging.Pager[domain.Vlan] {
	return newPager[domain.Vlan](n.b, KindVlan.Path(), "vlan", opts)
}

// GetVlan fetches a VLAN by id.
func (n *NetworkAPI) GetVlan(ctx context.Context, id string) (*domain.Vlan, error) {
	var v domain.Vlan
	if err := n.b.get(ctx, KindVlan.Path()+"/"+id, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// DeployVlan creates a VLAN. The id is returned in the vlanId info entry.
func (n *NetworkAPI) DeployVlan(ctx context.Context, req DeployVlan) (*domain.Operation, error) {
	if req.NetworkDomainID == "" {
		return nil, errors.New("networkDomainId is required")
	}
	return n.b.post(ctx, "network/deployVlan", req)
}

// EditVlan changes the name or description of a VLAN.
func (n *NetworkAPI) EditVlan(ctx context.Context, req EditVlan) (*domain.Operation, error) {
	return n.b.post(ctx, "network/editVlan", req)
}

// DeleteVlan deletes a VLAN. Deleting a missing VLAN returns a nil operation
// and no error.
func (n *NetworkAPI) DeleteVlan(ctx context.Context, id string) (*domain.Operation, error) {
	return n.b.remove(ctx, "network/deleteVlan", id)
}

// ListPublicIPv4AddressBlocks lists the public IPv4 blocks of a network domain.
func (n *NetworkAPI) ListPublicIPv4AddressBlocks(networkDomainID string) *paging.Pager[domain.PublicIPBlock] {
	return newPager[domain.PublicIPBlock](n.b, KindPublicIPBlock.Path(), "publicIpBlock", ListOptions{NetworkDomainID: networkDomainID})
}

// GetPublicIPv4AddressBlock fetches a public IPv4 block by id.
func (n *NetworkAPI) GetPublicIPv4AddressBlock(ctx context.Context, id string) (*domain.PublicIPBlock, error) {
	var blk domain.PublicIPBlock
	if err := n.b.get(ctx, KindPublicIPBlock.Path()+"/"+id, &blk); err != nil {
		return nil, err
	}
	return &blk, nil
}

// AddPublicIPv4AddressBlock adds a block of public addresses to a network
// domain. The id is returned in the ipBlockId info entry.
func (n *NetworkAPI) AddPublicIPv4AddressBlock(ctx context.Context, networkDomainID string) (*domain.Operation, error) {
	return n.b.post(ctx, "network/addPublicIpBlock", networkDomainRequest{NetworkDomainID: networkDomainID})
}

// RemovePublicIPv4AddressBlock releases a public IPv4 block.
func (n *NetworkAPI) RemovePublicIPv4AddressBlock(ctx context.Context, id string) (*domain.Operation, error) {
	return n.b.remove(ctx, "network/removePublicIpBlock", id)
}

// ListReservedPublicIPv4Addresses lists the public addresses of a network
// domain that are in use.
func (n *NetworkAPI) ListReservedPublicIPv4Addresses(networkDomainID string) *paging.Pager[domain.ReservedPublicIPv4] {
	return newPager[domain.ReservedPublicIPv4](n.b, "network/reservedPublicIpv4Address", "ip", ListOptions{NetworkDomainID: networkDomainID})
}

// ListFirewallRules lists the firewall rules of a network domain.
func (n *NetworkAPI) ListFirewallRules(networkDomainID string) *paging.Pager[domain.FirewallRule] {
	return newPager[domain.FirewallRule](n.b, KindFirewallRule.Path(), "firewallRule", ListOptions{NetworkDomainID: networkDomainID})
}

// GetFirewallRule fetches a firewall rule by id.
func (n *NetworkAPI) GetFirewallRule(ctx context.Context, id string) (*domain.FirewallRule, error) {
	var r domain.FirewallRule
	if err := n.b.get(ctx, KindFirewallRule.Path()+"/"+id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateFirewallRule creates a firewall rule. The id is returned in the
// firewallRuleId info entry.
func (n *NetworkAPI) CreateFirewallRule(ctx context.Context, req domain.CreateFirewallRule) (*domain.Operation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return n.b.post(ctx, "network/createFirewallRule", req)
}

// DeleteFirewallRule deletes a firewall rule.
func (n *NetworkAPI) DeleteFirewallRule(ctx context.Context, id string) (*domain.Operation, error) {
	return n.b.remove(ctx, "network/deleteFirewallRule", id)
}

// ListNatRules lists the NAT rules of a network domain.
func (n *NetworkAPI) ListNatRules(networkDomainID string) *paging.Pager[domain.NatRule] {
	return newPager[domain.NatRule](n.b, KindNatRule.Path(), "natRule", ListOptions{NetworkDomainID: networkDomainID})
}

// GetNatRule fetches a NAT rule by id.
func (n *NetworkAPI) GetNatRule(ctx context.Context, id string) (*domain.NatRule, error) {
	var r domain.NatRule
	if err := n.b.get(ctx, KindNatRule.Path()+"/"+id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateNatRule maps a private address to a public one. The id is returned
// in the natRuleId info entry.
func (n *NetworkAPI) CreateNatRule(ctx context.Context, req CreateNatRule) (*domain.Operation, error) {
	if req.NetworkDomainID == "" || req.InternalIP == "" {
		return nil, errors.New("networkDomainId and internalIp are required")
	}
	return n.b.post(ctx, "network/createNatRule", req)
}

// DeleteNatRule deletes a NAT rule.
func (n *NetworkAPI) DeleteNatRule(ctx context.Context, id string) (*domain.Operation, error) {
	return n.b.remove(ctx, "network/deleteNatRule", id)
}
