// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
)

// Fixed ids of the fake organization
const (
	FakeOrgID        = "6ac1e746-b1ea-4da5-a24e-caf1a978789d"
	FakeDomainID     = "484174a2-ae74-4658-9e56-50fc90e086cf"
	FakeVlanID       = "0e56433f-d808-4669-821d-812769517ff8"
	FakeImageID      = "1806fe9a-a8c9-4a4b-8ff3-0b1e1c5e0a2e"
	FakeDatacenterID = "NA9"
	FakeBlockBaseIP  = "168.128.6.216"
)

// fakeBlockSize is the size of every added public IP block. Blocks are
// numbered consecutively from FakeBlockBaseIP.
const fakeBlockSize = 2

// FakeCloud is an in-memory CloudControl organization served over HTTP.
// Every mutation completes immediately. It starts with one network domain
// (FakeDomainID) holding one VLAN (FakeVlanID).
type FakeCloud struct {
	mu             sync.Mutex
	seq            int
	blockSeq       int
	NetworkDomains map[string]*domain.NetworkDomain
	Vlans          map[string]*domain.Vlan
	Servers        map[string]*domain.Server
	NatRules       map[string]*domain.NatRule
	FirewallRules  map[string]*domain.FirewallRule
	Blocks         map[string]*domain.PublicIPBlock
	Calls          []string
	// FailFirewall makes createFirewallRule fail with INVALID_INPUT_DATA.
	FailFirewall bool
	// BusyPosts answers that many POSTs with RESOURCE_BUSY before accepting.
	BusyPosts int
	// DeployState is the state deployed servers stay in. Empty means NORMAL.
	// Servers in any other state are not started.
	DeployState domain.State
}

// NewFakeCloud returns a seeded fake organization.
func NewFakeCloud() *FakeCloud {
	return &FakeCloud{
		NetworkDomains: map[string]*domain.NetworkDomain{
			FakeDomainID: {
				ID:           FakeDomainID,
				Name:         "seed",
				Type:         domain.NetworkDomainTypeEssentials,
				State:        domain.StateNormal,
				DatacenterID: FakeDatacenterID,
			},
		},
		Vlans: map[string]*domain.Vlan{
			FakeVlanID: {
				ID:               FakeVlanID,
				Name:             "seed",
				NetworkDomain:    domain.NetworkDomainRef{ID: FakeDomainID, Name: "seed"},
				PrivateIPv4Range: domain.AddressRange{Address: "10.0.3.0", PrefixSize: 24},
				State:            domain.StateNormal,
				DatacenterID:     FakeDatacenterID,
			},
		},
		Servers:       map[string]*domain.Server{},
		NatRules:      map[string]*domain.NatRule{},
		FirewallRules: map[string]*domain.FirewallRule{},
		Blocks:        map[string]*domain.PublicIPBlock{},
	}
}

// Start serves the fake until the test ends and returns the server.
func (f *FakeCloud) Start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv
}

// Endpoint returns the versioned API root of srv.
func Endpoint(srv *httptest.Server) string {
	return srv.URL + "/caas/2.4/"
}

// TargetConfigFor returns a target config that points at srv with fast
// polling and retries.
func TargetConfigFor(srv *httptest.Server) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"endpoint": %q,
		"orgId": %q,
		"maxAttempts": 3,
		"retryInterval": "1ms",
		"pollInterval": "1ms",
		"provisioningTimeout": "2s"
	}`, Endpoint(srv), FakeOrgID))
}

// CountCalls returns how many requests started with prefix, e.g.
// "POST network/deployVlan".
func (f *FakeCloud) CountCalls(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Lock guards direct access to the maps while the server is running.
func (f *FakeCloud) Lock() { f.mu.Lock() }

// Unlock releases Lock.
func (f *FakeCloud) Unlock() { f.mu.Unlock() }

func (f *FakeCloud) nextID() string {
	f.seq++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", f.seq)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func accepted(w http.ResponseWriter, operation, infoName, id string) {
	op := domain.Operation{Operation: operation, ResponseCode: domain.ResponseCodeInProgress, RequestID: "req-" + id}
	if infoName != "" {
		op.Info = []domain.Property{{Name: infoName, Value: id}}
	}
	writeJSON(w, http.StatusOK, op)
}

func vendorError(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"responseCode": code, "message": message, "requestId": "req-error"})
}

func notFound(w http.ResponseWriter) {
	vendorError(w, "RESOURCE_NOT_FOUND", "not found")
}

func page[T any](key string, items []T) map[string]interface{} {
	return map[string]interface{}{
		key:          items,
		"pageNumber": 1,
		"pageCount":  len(items),
		"totalCount": len(items),
		"pageSize":   250,
	}
}

func getOr404[T any](w http.ResponseWriter, m map[string]*T, id string) {
	if v, ok := m[id]; ok {
		writeJSON(w, http.StatusOK, v)
		return
	}
	notFound(w)
}

func values[T any](m map[string]*T, keep func(*T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, *v)
		}
	}
	return out
}

func deleteOr404[T any](w http.ResponseWriter, m map[string]*T, id, operation string) {
	if _, ok := m[id]; !ok {
		notFound(w)
		return
	}
	delete(m, id)
	accepted(w, operation, "", id)
}

func (f *FakeCloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/caas/2.4/"+FakeOrgID+"/")
	f.Calls = append(f.Calls, r.Method+" "+path)

	var body map[string]interface{}
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.BusyPosts > 0 {
			f.BusyPosts--
			vendorError(w, "RESOURCE_BUSY", "resource is busy")
			return
		}
	}
	str := func(k string) string { s, _ := body[k].(string); return s }
	inDomain := r.URL.Query().Get("networkDomainId")

	switch {
	case r.Method == http.MethodGet && path == "network/networkDomain":
		writeJSON(w, http.StatusOK, page("networkDomain", values(f.NetworkDomains, nil)))
	case r.Method == http.MethodGet && strings.HasPrefix(path, "network/networkDomain/"):
		getOr404(w, f.NetworkDomains, strings.TrimPrefix(path, "network/networkDomain/"))
	case r.Method == http.MethodPost && path == "network/deployNetworkDomain":
		id := f.nextID()
		f.NetworkDomains[id] = &domain.NetworkDomain{
			ID:           id,
			Name:         str("name"),
			Description:  str("description"),
			Type:         str("type"),
			State:        domain.StateNormal,
			DatacenterID: str("datacenterId"),
		}
		accepted(w, "DEPLOY_NETWORK_DOMAIN", "networkDomainId", id)
	case r.Method == http.MethodPost && path == "network/editNetworkDomain":
		nd, ok := f.NetworkDomains[str("id")]
		if !ok {
			notFound(w)
			return
		}
		if name := str("name"); name != "" {
			nd.Name = name
		}
		if d, ok := body["description"].(string); ok {
			nd.Description = d
		}
		if typ := str("type"); typ != "" {
			nd.Type = typ
		}
		accepted(w, "EDIT_NETWORK_DOMAIN", "", nd.ID)
	case r.Method == http.MethodPost && path == "network/deleteNetworkDomain":
		deleteOr404(w, f.NetworkDomains, str("id"), "DELETE_NETWORK_DOMAIN")

	case r.Method == http.MethodGet && path == "network/vlan":
		writeJSON(w, http.StatusOK, page("vlan", values(f.Vlans, func(v *domain.Vlan) bool {
			return inDomain == "" || v.NetworkDomain.ID == inDomain
		})))
	case r.Method == http.MethodGet && strings.HasPrefix(path, "network/vlan/"):
		getOr404(w, f.Vlans, strings.TrimPrefix(path, "network/vlan/"))
	case r.Method == http.MethodPost && path == "network/deployVlan":
		if _, ok := f.NetworkDomains[str("networkDomainId")]; !ok {
			notFound(w)
			return
		}
		id := f.nextID()
		prefix, _ := body["privateIpv4PrefixSize"].(float64)
		f.Vlans[id] = &domain.Vlan{
			ID:               id,
			Name:             str("name"),
			Description:      str("description"),
			NetworkDomain:    domain.NetworkDomainRef{ID: str("networkDomainId")},
			PrivateIPv4Range: domain.AddressRange{Address: str("privateIpv4BaseAddress"), PrefixSize: int(prefix)},
			State:            domain.StateNormal,
			DatacenterID:     FakeDatacenterID,
		}
		accepted(w, "DEPLOY_VLAN", "vlanId", id)
	case r.Method == http.MethodPost && path == "network/editVlan":
		v, ok := f.Vlans[str("id")]
		if !ok {
			notFound(w)
			return
		}
		if name := str("name"); name != "" {
			v.Name = name
		}
		if d, ok := body["description"].(string); ok {
			v.Description = d
		}
		accepted(w, "EDIT_VLAN", "", v.ID)
	case r.Method == http.MethodPost && path == "network/deleteVlan":
		deleteOr404(w, f.Vlans, str("id"), "DELETE_VLAN")

	case r.Method == http.MethodPost && path == "server/deployServer":
		id := f.nextID()
		nic, _ := body["networkInfo"].(map[string]interface{})
		primary, _ := nic["primaryNic"].(map[string]interface{})
		vlanID, _ := primary["vlanId"].(string)
		domainID, _ := nic["networkDomainId"].(string)
		state := f.DeployState
		if state == "" {
			state = domain.StateNormal
		}
		f.Servers[id] = &domain.Server{
			ID:              id,
			Name:            str("name"),
			Description:     str("description"),
			OperatingSystem: domain.OperatingSystem{ID: "CENTOS764", Family: "UNIX"},
			CPU:             domain.CPU{Count: 2},
			MemoryGB:        4,
			NetworkInfo: domain.NetworkInfo{
				NetworkDomainID: domainID,
				PrimaryNIC:      domain.NIC{PrivateIPv4: fmt.Sprintf("10.0.3.%d", 10+f.seq), VlanID: vlanID},
			},
			SourceImageID: str("imageId"),
			Deployed:      true,
			Started:       body["start"] == true && state == domain.StateNormal,
			State:         state,
			DatacenterID:  FakeDatacenterID,
		}
		accepted(w, "DEPLOY_SERVER", "serverId", id)
	case r.Method == http.MethodGet && path == "server/server":
		writeJSON(w, http.StatusOK, page("server", values(f.Servers, func(s *domain.Server) bool {
			return inDomain == "" || s.NetworkInfo.NetworkDomainID == inDomain
		})))
	case r.Method == http.MethodGet && strings.HasPrefix(path, "server/server/"):
		getOr404(w, f.Servers, strings.TrimPrefix(path, "server/server/"))
	case r.Method == http.MethodPost && (path == "server/powerOffServer" || path == "server/shutdownServer"):
		if s, ok := f.Servers[str("id")]; ok {
			if s.State.IsPending() {
				vendorError(w, "RESOURCE_BUSY", "server has an operation in progress")
				return
			}
			s.Started = false
			accepted(w, "POWER_OFF_SERVER", "", s.ID)
			return
		}
		notFound(w)
	case r.Method == http.MethodPost && path == "server/startServer":
		if s, ok := f.Servers[str("id")]; ok {
			s.Started = true
			accepted(w, "START_SERVER", "", s.ID)
			return
		}
		notFound(w)
	case r.Method == http.MethodPost && path == "server/rebootServer":
		if s, ok := f.Servers[str("id")]; ok {
			accepted(w, "REBOOT_SERVER", "", s.ID)
			return
		}
		notFound(w)
	case r.Method == http.MethodPost && path == "server/deleteServer":
		id := str("id")
		s, ok := f.Servers[id]
		if !ok {
			notFound(w)
			return
		}
		if s.State.IsPending() {
			vendorError(w, "RESOURCE_BUSY", "server has an operation in progress")
			return
		}
		if s.Started {
			vendorError(w, "SERVER_STARTED", "server is running")
			return
		}
		delete(f.Servers, id)
		accepted(w, "DELETE_SERVER", "", id)

	case r.Method == http.MethodGet && path == "network/reservedPublicIpv4Address":
		var ips []domain.ReservedPublicIPv4
		for _, n := range f.NatRules {
			ips = append(ips, domain.ReservedPublicIPv4{Value: n.ExternalIP, NetworkDomainID: n.NetworkDomainID})
		}
		writeJSON(w, http.StatusOK, page("ip", ips))
	case r.Method == http.MethodGet && path == "network/publicIpBlock":
		writeJSON(w, http.StatusOK, page("publicIpBlock", values(f.Blocks, func(b *domain.PublicIPBlock) bool {
			return inDomain == "" || b.NetworkDomainID == inDomain
		})))
	case r.Method == http.MethodGet && strings.HasPrefix(path, "network/publicIpBlock/"):
		getOr404(w, f.Blocks, strings.TrimPrefix(path, "network/publicIpBlock/"))
	case r.Method == http.MethodPost && path == "network/addPublicIpBlock":
		id := f.nextID()
		base := netip.MustParseAddr(FakeBlockBaseIP)
		for range f.blockSeq * fakeBlockSize {
			base = base.Next()
		}
		f.blockSeq++
		f.Blocks[id] = &domain.PublicIPBlock{
			ID:              id,
			NetworkDomainID: str("networkDomainId"),
			BaseIP:          base.String(),
			Size:            fakeBlockSize,
			State:           domain.StateNormal,
			DatacenterID:    FakeDatacenterID,
		}
		accepted(w, "ADD_PUBLIC_IP_BLOCK", "ipBlockId", id)
	case r.Method == http.MethodPost && path == "network/removePublicIpBlock":
		deleteOr404(w, f.Blocks, str("id"), "REMOVE_PUBLIC_IP_BLOCK")

	case r.Method == http.MethodGet && path == "network/natRule":
		writeJSON(w, http.StatusOK, page("natRule", values(f.NatRules, func(n *domain.NatRule) bool {
			return inDomain == "" || n.NetworkDomainID == inDomain
		})))
	case r.Method == http.MethodGet && strings.HasPrefix(path, "network/natRule/"):
		getOr404(w, f.NatRules, strings.TrimPrefix(path, "network/natRule/"))
	case r.Method == http.MethodPost && path == "network/createNatRule":
		id := f.nextID()
		f.NatRules[id] = &domain.NatRule{
			ID:              id,
			NetworkDomainID: str("networkDomainId"),
			InternalIP:      str("internalIp"),
			ExternalIP:      str("externalIp"),
			State:           domain.StateNormal,
			DatacenterID:    FakeDatacenterID,
		}
		accepted(w, "CREATE_NAT_RULE", "natRuleId", id)
	case r.Method == http.MethodPost && path == "network/deleteNatRule":
		deleteOr404(w, f.NatRules, str("id"), "DELETE_NAT_RULE")

	case r.Method == http.MethodGet && path == "network/firewallRule":
		writeJSON(w, http.StatusOK, page("firewallRule", values(f.FirewallRules, func(fr *domain.FirewallRule) bool {
			return inDomain == "" || fr.NetworkDomainID == inDomain
		})))
	case r.Method == http.MethodGet && strings.HasPrefix(path, "network/firewallRule/"):
		getOr404(w, f.FirewallRules, strings.TrimPrefix(path, "network/firewallRule/"))
	case r.Method == http.MethodPost && path == "network/createFirewallRule":
		if f.FailFirewall {
			vendorError(w, "INVALID_INPUT_DATA", "bad rule")
			return
		}
		raw, _ := json.Marshal(body)
		var req domain.CreateFirewallRule
		_ = json.Unmarshal(raw, &req)
		id := f.nextID()
		f.FirewallRules[id] = &domain.FirewallRule{
			ID:              id,
			NetworkDomainID: req.NetworkDomainID,
			Name:            req.Name,
			Action:          req.Action,
			IPVersion:       req.IPVersion,
			Protocol:        req.Protocol,
			Source:          req.Source,
			Destination:     req.Destination,
			Enabled:         req.Enabled,
			RuleType:        "CLIENT_RULE",
			State:           domain.StateNormal,
			DatacenterID:    FakeDatacenterID,
		}
		accepted(w, "CREATE_FIREWALL_RULE", "firewallRuleId", id)
	case r.Method == http.MethodPost && path == "network/deleteFirewallRule":
		deleteOr404(w, f.FirewallRules, str("id"), "DELETE_FIREWALL_RULE")

	case r.Method == http.MethodGet && path == "image/osImage":
		writeJSON(w, http.StatusOK, page("osImage", []domain.OSImage{{
			ID:              FakeImageID,
			Name:            "CentOS 7 64-bit 2 CPU",
			DatacenterID:    FakeDatacenterID,
			OperatingSystem: domain.OperatingSystem{ID: "CENTOS764", Family: "UNIX"},
			CPU:             domain.CPU{Count: 2},
			MemoryGB:        4,
			Disks:           []domain.Disk{{SizeGB: 10}, {SizeGB: 20}},
		}}))
	case r.Method == http.MethodGet && path == "image/customerImage":
		writeJSON(w, http.StatusOK, page("customerImage", []domain.OSImage{{ID: "c5d3f0a6-2b1e-4c1d-9e2f-3a4b5c6d7e8f", Name: "golden"}}))
	case r.Method == http.MethodGet && path == "infrastructure/datacenter":
		writeJSON(w, http.StatusOK, page("datacenter", []domain.Datacenter{{
			ID:          FakeDatacenterID,
			DisplayName: "US - East 3 - MCP 2.0",
			City:        "Ashburn",
			Country:     "US",
		}}))
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusTeapot)
	}
}
