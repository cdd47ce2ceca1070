// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package domain

// NetworkDomain types accepted by deployNetworkDomain.
const (
	NetworkDomainTypeEssentials = "ESSENTIALS"
	NetworkDomainTypeAdvanced   = "ADVANCED"
)

// NetworkDomain is the container for VLANs, public IP blocks, firewall and NAT rules.
type NetworkDomain struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Type            string `json:"type"`
	SnatIPv4Address string `json:"snatIpv4Address,omitempty"`
	CreateTime      string `json:"createTime,omitempty"`
	State           State  `json:"state"`
	DatacenterID    string `json:"datacenterId"`
}

// NetworkDomainRef is the short form of a network domain embedded in child resources.
type NetworkDomainRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// AddressRange is a base address plus prefix size.
type AddressRange struct {
	Address    string `json:"address"`
	PrefixSize int    `json:"prefixSize"`
}

// Vlan is a layer 2 network inside a network domain.
type Vlan struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Description        string           `json:"description,omitempty"`
	NetworkDomain      NetworkDomainRef `json:"networkDomain"`
	PrivateIPv4Range   AddressRange     `json:"privateIpv4Range"`
	IPv6Range          AddressRange     `json:"ipv6Range"`
	IPv4GatewayAddress string           `json:"ipv4GatewayAddress,omitempty"`
	IPv6GatewayAddress string           `json:"ipv6GatewayAddress,omitempty"`
	CreateTime         string           `json:"createTime,omitempty"`
	State              State            `json:"state"`
	DatacenterID       string           `json:"datacenterId"`
}

// PublicIPBlock is a contiguous block of public IPv4 addresses owned by a network domain.
type PublicIPBlock struct {
	ID              string `json:"id"`
	NetworkDomainID string `json:"networkDomainId"`
	BaseIP          string `json:"baseIp"`
	Size            int    `json:"size"`
	CreateTime      string `json:"createTime,omitempty"`
	State           State  `json:"state"`
	DatacenterID    string `json:"datacenterId"`
}

// NatRule maps a private address to a public one.
type NatRule struct {
	ID              string `json:"id"`
	NetworkDomainID string `json:"networkDomainId"`
	InternalIP      string `json:"internalIp"`
	ExternalIP      string `json:"externalIp"`
	CreateTime      string `json:"createTime,omitempty"`
	State           State  `json:"state"`
	DatacenterID    string `json:"datacenterId"`
}

// ReservedPublicIPv4 is a public address of a block that is bound to a NAT
// rule or otherwise in use.
type ReservedPublicIPv4 struct {
	Value           string `json:"value"`
	IPBlockID       string `json:"ipBlockId"`
	NetworkDomainID string `json:"networkDomainId"`
	DatacenterID    string `json:"datacenterId"`
}
