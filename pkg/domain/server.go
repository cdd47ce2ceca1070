// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package domain

// OperatingSystem describes the guest OS of an image or server.
type OperatingSystem struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Family      string `json:"family"`
}

// CPU describes the virtual CPU allocation.
type CPU struct {
	Count          int    `json:"count"`
	Speed          string `json:"speed,omitempty"`
	CoresPerSocket int    `json:"coresPerSocket,omitempty"`
}

// Disk is a virtual disk attached to a server or defined by an image.
type Disk struct {
	ID     string `json:"id"`
	ScsiID int    `json:"scsiId"`
	SizeGB int    `json:"sizeGb"`
	Speed  string `json:"speed"`
	State  State  `json:"state,omitempty"`
}

// NIC is a network adapter attached to a VLAN.
type NIC struct {
	ID          string `json:"id,omitempty"`
	PrivateIPv4 string `json:"privateIpv4,omitempty"`
	IPv6        string `json:"ipv6,omitempty"`
	VlanID      string `json:"vlanId"`
	VlanName    string `json:"vlanName,omitempty"`
	State       State  `json:"state,omitempty"`
}

// NetworkInfo places a server in a network domain.
type NetworkInfo struct {
	NetworkDomainID string `json:"networkDomainId"`
	PrimaryNIC      NIC    `json:"primaryNic"`
	AdditionalNICs  []NIC  `json:"additionalNic,omitempty"`
}

// Progress describes the in-flight action on a server.
type Progress struct {
	Action      string `json:"action"`
	RequestTime string `json:"requestTime"`
	UserName    string `json:"userName,omitempty"`
}

// Server is a CloudControl virtual machine.
type Server struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	OperatingSystem OperatingSystem `json:"operatingSystem"`
	CPU             CPU             `json:"cpu"`
	MemoryGB        int             `json:"memoryGb"`
	Disks           []Disk          `json:"disk,omitempty"`
	NetworkInfo     NetworkInfo     `json:"networkInfo"`
	SourceImageID   string          `json:"sourceImageId"`
	CreateTime      string          `json:"createTime,omitempty"`
	Deployed        bool            `json:"deployed"`
	Started         bool            `json:"started"`
	State           State           `json:"state"`
	Progress        *Progress       `json:"progress,omitempty"`
	DatacenterID    string          `json:"datacenterId"`
}

// PrivateIPv4 returns the primary NIC's private address.
func (s *Server) PrivateIPv4() string {
	return s.NetworkInfo.PrimaryNIC.PrivateIPv4
}

// DeployServer is the request body of deployServer.
type DeployServer struct {
	Name                  string            `json:"name"`
	Description           string            `json:"description,omitempty"`
	ImageID               string            `json:"imageId"`
	Start                 bool              `json:"start"`
	AdministratorPassword string            `json:"administratorPassword,omitempty"`
	CPU                   *CPU              `json:"cpu,omitempty"`
	MemoryGB              int               `json:"memoryGb,omitempty"`
	NetworkInfo           DeployNetworkInfo `json:"networkInfo"`
}

// DeployNetworkInfo selects the network domain and VLAN for a new server.
type DeployNetworkInfo struct {
	NetworkDomainID string    `json:"networkDomainId"`
	PrimaryNIC      DeployNIC `json:"primaryNic"`
}

// DeployNIC attaches the primary NIC to a VLAN.
type DeployNIC struct {
	VlanID string `json:"vlanId"`
}

// OSImage is a vendor-provided image servers can be deployed from.
type OSImage struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	DatacenterID    string          `json:"datacenterId"`
	OperatingSystem OperatingSystem `json:"operatingSystem"`
	CPU             CPU             `json:"cpu"`
	MemoryGB        int             `json:"memoryGb"`
	Disks           []Disk          `json:"disk,omitempty"`
	CreateTime      string          `json:"createTime,omitempty"`
	OSImageKey      string          `json:"osImageKey,omitempty"`
	State           State           `json:"state,omitempty"`
}

// Datacenter is a CloudControl location.
type Datacenter struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type,omitempty"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country"`
}
