// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package compute

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
)

// NodeStatus is the lifecycle status of a node.
type NodeStatus string

const (
	NodeStatusRunning      NodeStatus = "RUNNING"
	NodeStatusSuspended    NodeStatus = "SUSPENDED"
	NodeStatusPending      NodeStatus = "PENDING"
	NodeStatusError        NodeStatus = "ERROR"
	NodeStatusTerminated   NodeStatus = "TERMINATED"
	NodeStatusUnrecognized NodeStatus = "UNRECOGNIZED"
)

// StatusOf maps a server's state and power flag to a node status. A nil
// server is terminated.
func StatusOf(s *domain.Server) NodeStatus {
	if s == nil {
		return NodeStatusTerminated
	}
	switch {
	case s.State == domain.StateNormal && s.Started:
		return NodeStatusRunning
	case s.State == domain.StateNormal:
		return NodeStatusSuspended
	case s.State.IsPending():
		return NodeStatusPending
	case s.State.IsFailed():
		return NodeStatusError
	default:
		return NodeStatusUnrecognized
	}
}

// Template describes the nodes to create.
type Template struct {
	Group           string
	ImageID         string
	LocationID      string
	NetworkDomainID string
	VlanID          string
	CPUCount        int
	MemoryGB        int
	// AdminPassword is generated when empty.
	AdminPassword string
	// InboundPorts are opened to the internet through a NAT rule and one
	// firewall rule per port.
	InboundPorts []int
}

// Credentials are the administrator login of a node.
type Credentials struct {
	User     string
	Password string
}

// Node is a server as seen by the compute service.
type Node struct {
	ID               string
	Name             string
	Group            string
	Status           NodeStatus
	ImageID          string
	LocationID       string
	PrivateAddresses []string
	PublicAddresses  []string
	// Credentials are only known right after creation.
	Credentials *Credentials
	Server      domain.Server
}

// Hardware is a CPU, memory and disk shape taken from an image.
type Hardware struct {
	ID       string
	Name     string
	CPUCount int
	MemoryGB int
	DiskGB   int
	Location string
}

const nameSeparator = "-"

// EncodeName returns a server name that carries group.
func EncodeName(group string) string {
	return group + nameSeparator + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// GroupFromName returns the group encoded by EncodeName, or "" when name
// carries none.
func GroupFromName(name string) string {
	i := strings.LastIndex(name, nameSeparator)
	if i <= 0 {
		return ""
	}
	return name[:i]
}

func nodeFromServer(s domain.Server) Node {
	n := Node{
		ID:         s.ID,
		Name:       s.Name,
		Group:      GroupFromName(s.Name),
		Status:     StatusOf(&s),
		ImageID:    s.SourceImageID,
		LocationID: s.DatacenterID,
		Server:     s,
	}
	if ip := s.PrivateIPv4(); ip != "" {
		n.PrivateAddresses = append(n.PrivateAddresses, ip)
	}
	for _, nic := range s.NetworkInfo.AdditionalNICs {
		if nic.PrivateIPv4 != "" {
			n.PrivateAddresses = append(n.PrivateAddresses, nic.PrivateIPv4)
		}
	}
	return n
}

func hardwareFromImage(img domain.OSImage) Hardware {
	disk := 0
	for _, d := range img.Disks {
		disk += d.SizeGB
	}
	return Hardware{
		ID:       img.ID,
		Name:     fmt.Sprintf("%d CPU / %d GB RAM / %d GB disk", img.CPU.Count, img.MemoryGB, disk),
		CPUCount: img.CPU.Count,
		MemoryGB: img.MemoryGB,
		DiskGB:   disk,
		Location: img.DatacenterID,
	}
}

// adminUser is the login created by deployServer for the image family.
func adminUser(sys domain.OperatingSystem) string {
	if strings.EqualFold(sys.Family, "WINDOWS") {
		return "administrator"
	}
	return "root"
}
