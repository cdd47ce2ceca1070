// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package domain

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/google/uuid"
)

// Firewall rule defaults used when exposing servers.
const (
	ActionAcceptDecisively = "ACCEPT_DECISIVELY"
	ActionDrop             = "DROP"

	IPVersion4 = "IPV4"
	IPVersion6 = "IPV6"

	ProtocolIP   = "IP"
	ProtocolTCP  = "TCP"
	ProtocolUDP  = "UDP"
	ProtocolICMP = "ICMP"

	// AnyAddress matches every source or destination address.
	AnyAddress = "ANY"
)

// Placement positions.
const (
	PositionFirst  = "FIRST"
	PositionLast   = "LAST"
	PositionBefore = "BEFORE"
	PositionAfter  = "AFTER"
)

// FirewallRule is a rule in a network domain's firewall.
type FirewallRule struct {
	ID              string             `json:"id"`
	NetworkDomainID string             `json:"networkDomainId"`
	Name            string             `json:"name"`
	Action          string             `json:"action"`
	IPVersion       string             `json:"ipVersion"`
	Protocol        string             `json:"protocol"`
	Source          FirewallRuleTarget `json:"source"`
	Destination     FirewallRuleTarget `json:"destination"`
	Enabled         bool               `json:"enabled"`
	RuleType        string             `json:"ruleType,omitempty"`
	State           State              `json:"state"`
	DatacenterID    string             `json:"datacenterId"`
}

// IPRange is either a single address or a network when PrefixSize is set.
type IPRange struct {
	Address    string `json:"address"`
	PrefixSize *int   `json:"prefixSize,omitempty"`
}

// NewIPRange validates address and the optional prefix size. The literal
// ANY is accepted without a prefix.
func NewIPRange(address string, prefixSize *int) (IPRange, error) {
	if strings.EqualFold(address, AnyAddress) {
		if prefixSize != nil {
			return IPRange{}, errors.New("prefix size cannot be combined with ANY")
		}
		return IPRange{Address: AnyAddress}, nil
	}

	addr, err := netip.ParseAddr(address)
	if err != nil {
		return IPRange{}, fmt.Errorf("invalid IP address %q: %w", address, err)
	}
	if prefixSize != nil {
		if *prefixSize < 0 || *prefixSize > addr.BitLen() {
			return IPRange{}, fmt.Errorf("prefix size %d out of range for %s", *prefixSize, address)
		}
		size := *prefixSize
		prefixSize = &size
	}
	return IPRange{Address: addr.String(), PrefixSize: prefixSize}, nil
}

// IsSingleAddress reports whether the range denotes exactly one host.
func (r IPRange) IsSingleAddress() bool {
	return r.PrefixSize == nil && r.Address != AnyAddress
}

// PortRange is a single port when End is nil.
type PortRange struct {
	Begin int  `json:"begin"`
	End   *int `json:"end,omitempty"`
}

// NewPortRange validates a port or a port range.
func NewPortRange(begin int, end *int) (PortRange, error) {
	if begin < 1 || begin > 65535 {
		return PortRange{}, fmt.Errorf("port %d out of range", begin)
	}
	if end != nil {
		if *end <= begin || *end > 65535 {
			return PortRange{}, fmt.Errorf("port range end %d must be greater than %d and at most 65535", *end, begin)
		}
		e := *end
		end = &e
	}
	return PortRange{Begin: begin, End: end}, nil
}

// FirewallRuleTarget is the source or destination of a firewall rule.
type FirewallRuleTarget struct {
	IP              *IPRange   `json:"ip,omitempty"`
	IPAddressListID string     `json:"ipAddressListId,omitempty"`
	Port            *PortRange `json:"port,omitempty"`
	PortListID      string     `json:"portListId,omitempty"`
}

// TargetOption configures a FirewallRuleTarget.
type TargetOption func(*FirewallRuleTarget)

// WithIP matches an address or network.
func WithIP(r IPRange) TargetOption {
	return func(t *FirewallRuleTarget) { t.IP = &r }
}

// WithIPAddressList matches the members of a named IP address list.
func WithIPAddressList(id string) TargetOption {
	return func(t *FirewallRuleTarget) { t.IPAddressListID = id }
}

// WithPort restricts the target to a port range.
func WithPort(p PortRange) TargetOption {
	return func(t *FirewallRuleTarget) { t.Port = &p }
}

// WithPortList restricts the target to the ports of a named port list.
func WithPortList(id string) TargetOption {
	return func(t *FirewallRuleTarget) { t.PortListID = id }
}

// NewFirewallRuleTarget builds a target. Exactly one of an IP range or an
// IP address list is required; a port range and a port list are mutually
// exclusive.
func NewFirewallRuleTarget(opts ...TargetOption) (FirewallRuleTarget, error) {
	var t FirewallRuleTarget
	for _, opt := range opts {
		opt(&t)
	}

	switch {
	case t.IP == nil && t.IPAddressListID == "":
		return FirewallRuleTarget{}, errors.New("firewall rule target requires an IP range or an IP address list")
	case t.IP != nil && t.IPAddressListID != "":
		return FirewallRuleTarget{}, errors.New("firewall rule target cannot have both an IP range and an IP address list")
	case t.Port != nil && t.PortListID != "":
		return FirewallRuleTarget{}, errors.New("firewall rule target cannot have both a port range and a port list")
	}
	if t.IPAddressListID != "" {
		if err := uuid.Validate(t.IPAddressListID); err != nil {
			return FirewallRuleTarget{}, fmt.Errorf("invalid IP address list id %q: %w", t.IPAddressListID, err)
		}
	}
	if t.PortListID != "" {
		if err := uuid.Validate(t.PortListID); err != nil {
			return FirewallRuleTarget{}, fmt.Errorf("invalid port list id %q: %w", t.PortListID, err)
		}
	}
	return t, nil
}

// AnyTarget matches every address on every port.
func AnyTarget() FirewallRuleTarget {
	return FirewallRuleTarget{IP: &IPRange{Address: AnyAddress}}
}

// Placement positions a new rule relative to the existing ones.
type Placement struct {
	Position       string `json:"position"`
	RelativeToRule string `json:"relativeToRule,omitempty"`
}

// NewPlacement validates position and the reference rule name. BEFORE and
// AFTER need a reference rule; FIRST and LAST must not have one.
func NewPlacement(position, relativeToRule string) (Placement, error) {
	position = strings.ToUpper(position)
	switch position {
	case PositionFirst, PositionLast:
		if relativeToRule != "" {
			return Placement{}, fmt.Errorf("placement %s does not take a relative rule", position)
		}
	case PositionBefore, PositionAfter:
		if relativeToRule == "" {
			return Placement{}, fmt.Errorf("placement %s requires a relative rule", position)
		}
	default:
		return Placement{}, fmt.Errorf("unknown placement position %q", position)
	}
	return Placement{Position: position, RelativeToRule: relativeToRule}, nil
}

// CreateFirewallRule is the request body of createFirewallRule.
type CreateFirewallRule struct {
	NetworkDomainID string             `json:"networkDomainId"`
	Name            string             `json:"name"`
	Action          string             `json:"action"`
	IPVersion       string             `json:"ipVersion"`
	Protocol        string             `json:"protocol"`
	Source          FirewallRuleTarget `json:"source"`
	Destination     FirewallRuleTarget `json:"destination"`
	Enabled         bool               `json:"enabled"`
	Placement       Placement          `json:"placement"`
}

// Validate checks the fields the vendor rejects with INVALID_INPUT_DATA.
func (r CreateFirewallRule) Validate() error {
	if r.NetworkDomainID == "" {
		return errors.New("networkDomainId is required")
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	switch r.Action {
	case ActionAcceptDecisively, ActionDrop:
	default:
		return fmt.Errorf("unknown action %q", r.Action)
	}
	switch r.IPVersion {
	case IPVersion4, IPVersion6:
	default:
		return fmt.Errorf("unknown ip version %q", r.IPVersion)
	}
	switch r.Protocol {
	case ProtocolIP, ProtocolTCP, ProtocolUDP, ProtocolICMP:
	default:
		return fmt.Errorf("unknown protocol %q", r.Protocol)
	}
	if r.Placement.Position == "" {
		return errors.New("placement is required")
	}
	return nil
}
