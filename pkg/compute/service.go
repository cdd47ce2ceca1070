// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package compute maps the node lifecycle of a compute service onto
// CloudControl servers, network address translation and firewall rules.
package compute

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/api"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/transport/cloudcontrol"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/waiter"
)

// Adapter is the compute service contract.
type Adapter interface {
	CreateNodeWithGroupEncodedIntoName(ctx context.Context, group, name string, t Template) (*Node, error)
	CreateNodesInGroup(ctx context.Context, group string, count int, t Template) ([]*Node, error)
	ListNodes(ctx context.Context) ([]Node, error)
	ListNodesByIDs(ctx context.Context, ids []string) ([]Node, error)
	GetNode(ctx context.Context, id string) (*Node, error)
	DestroyNode(ctx context.Context, id string) error
	RebootNode(ctx context.Context, id string) error
	ResumeNode(ctx context.Context, id string) error
	SuspendNode(ctx context.Context, id string) error
	ListImages(ctx context.Context) ([]domain.OSImage, error)
	ListHardwareProfiles(ctx context.Context) ([]Hardware, error)
	ListLocations(ctx context.Context) ([]domain.Datacenter, error)
}

// DefaultParallelism bounds concurrent deployments in CreateNodesInGroup.
const DefaultParallelism = 4

// Service implements Adapter on top of the CloudControl API.
type Service struct {
	api         *api.API
	parallelism int
}

// allocations serializes public IP allocation per network domain across
// every Service in the process. Each plugin request builds its own Service.
var allocations domainLocks

type domainLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// lock acquires the lock of networkDomainID and returns its release func.
func (d *domainLocks) lock(networkDomainID string) func() {
	d.mu.Lock()
	if d.locks == nil {
		d.locks = map[string]*sync.Mutex{}
	}
	l, ok := d.locks[networkDomainID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[networkDomainID] = l
	}
	d.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// OrphanedServerError reports a server that was deployed but could neither
// be made ready nor destroyed again. ID names the server left behind.
type OrphanedServerError struct {
	ID         string
	Err        error
	CleanupErr error
}

func (e *OrphanedServerError) Error() string {
	return fmt.Sprintf("server %s was left behind: %v (cleanup failed: %v)", e.ID, e.Err, e.CleanupErr)
}

func (e *OrphanedServerError) Unwrap() error {
	return e.Err
}

var _ Adapter = (*Service)(nil)

// NewService returns a compute service over a.
func NewService(a *api.API) *Service {
	return &Service{api: a, parallelism: DefaultParallelism}
}

// CreateNodeWithGroupEncodedIntoName deploys and starts a server named name,
// waits until it is running and opens t.InboundPorts. When exposing the
// server fails it is destroyed again.
func (s *Service) CreateNodeWithGroupEncodedIntoName(ctx context.Context, group, name string, t Template) (*Node, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("group", group, "name", name)

	password := t.AdminPassword
	if password == "" {
		var err error
		password, err = GeneratePassword()
		if err != nil {
			return nil, fmt.Errorf("failed to generate administrator password: %w", err)
		}
	}

	req := domain.DeployServer{
		Name:                  name,
		Description:           "group " + group,
		ImageID:               t.ImageID,
		Start:                 true,
		AdministratorPassword: password,
		MemoryGB:              t.MemoryGB,
		NetworkInfo: domain.DeployNetworkInfo{
			NetworkDomainID: t.NetworkDomainID,
			PrimaryNIC:      domain.DeployNIC{VlanID: t.VlanID},
		},
	}
	if t.CPUCount > 0 {
		req.CPU = &domain.CPU{Count: t.CPUCount}
	}

	op, err := s.api.Server.DeployServer(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy server %s: %w", name, err)
	}
	id, err := s.api.Await(ctx, api.KindServer, op)
	if err != nil {
		return nil, s.discard(ctx, id, fmt.Errorf("server %s did not become ready: %w", name, err))
	}
	log = log.WithValues("serverId", id)
	log.Info("server deployed")

	server, err := s.waitForPower(ctx, id, true)
	if err != nil {
		return nil, s.discard(ctx, id, err)
	}

	node := nodeFromServer(*server)
	node.Group = group
	node.Credentials = &Credentials{User: adminUser(server.OperatingSystem), Password: password}

	if len(t.InboundPorts) > 0 {
		publicIP, err := s.expose(ctx, server, t.InboundPorts)
		if err != nil {
			return nil, s.discard(ctx, id, err)
		}
		node.PublicAddresses = []string{publicIP}
	}
	return &node, nil
}

// discard destroys a server whose creation failed with cause. When the
// server cannot be destroyed either, the result is an *OrphanedServerError.
// Cleanup runs even when ctx is already canceled.
func (s *Service) discard(ctx context.Context, id string, cause error) error {
	if id == "" {
		return cause
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("serverId", id)
	log.Error(cause, "server creation failed, destroying it")

	if err := s.DestroyNode(context.WithoutCancel(ctx), id); err != nil {
		log.Error(err, "failed to destroy server after creation failure")
		return &OrphanedServerError{ID: id, Err: cause, CleanupErr: err}
	}
	return cause
}

// CreateNodesInGroup creates count nodes concurrently. Nodes created before
// a failure are returned alongside the error.
func (s *Service) CreateNodesInGroup(ctx context.Context, group string, count int, t Template) ([]*Node, error) {
	if count < 1 {
		return nil, errors.New("count must be at least 1")
	}

	nodes := make([]*Node, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i := range count {
		g.Go(func() error {
			node, err := s.CreateNodeWithGroupEncodedIntoName(gctx, group, EncodeName(group), t)
			if err != nil {
				return err
			}
			nodes[i] = node
			return nil
		})
	}
	err := g.Wait()

	created := make([]*Node, 0, count)
	for _, n := range nodes {
		if n != nil {
			created = append(created, n)
		}
	}
	return created, err
}

// ListNodes lists every server of the organization.
func (s *Service) ListNodes(ctx context.Context) ([]Node, error) {
	var nodes []Node
	for srv, err := range s.api.Server.ListServers(api.ListOptions{}).Concat(ctx) {
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, nodeFromServer(srv))
	}
	return nodes, nil
}

// ListNodesByIDs lists the servers whose id is in ids.
func (s *Service) ListNodesByIDs(ctx context.Context, ids []string) ([]Node, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var nodes []Node
	for srv, err := range s.api.Server.ListServers(api.ListOptions{}).Concat(ctx) {
		if err != nil {
			return nil, err
		}
		if want[srv.ID] {
			nodes = append(nodes, nodeFromServer(srv))
		}
	}
	return nodes, nil
}

// GetNode returns the node, or nil when the server does not exist.
func (s *Service) GetNode(ctx context.Context, id string) (*Node, error) {
	server, err := s.api.Server.GetServer(ctx, id)
	if cloudcontrol.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	node := nodeFromServer(*server)
	rules, err := s.natRulesFor(ctx, server)
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		node.PublicAddresses = append(node.PublicAddresses, r.ExternalIP)
	}
	return &node, nil
}

// DestroyNode removes the NAT and firewall rules that target the server,
// powers it off and deletes it. A missing server is not an error.
func (s *Service) DestroyNode(ctx context.Context, id string) error {
	log := logr.FromContextOrDiscard(ctx).WithValues("serverId", id)

	server, err := s.api.Server.GetServer(ctx, id)
	if cloudcontrol.IsNotFound(err) {
		log.V(1).Info("server already gone")
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.unexpose(ctx, server); err != nil {
		return err
	}

	if server.Started {
		if _, err := s.api.Server.PowerOffServer(ctx, id); err != nil {
			return fmt.Errorf("failed to power off server %s: %w", id, err)
		}
		if _, err := s.waitForPower(ctx, id, false); err != nil {
			return err
		}
	}

	op, err := s.api.Server.DeleteServer(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete server %s: %w", id, err)
	}
	if op == nil {
		return nil
	}
	if err := s.api.WaitForDeleted(ctx, api.KindServer, id); err != nil {
		return err
	}
	log.Info("server destroyed")
	return nil
}

// RebootNode restarts the guest OS and waits until the server settles.
func (s *Service) RebootNode(ctx context.Context, id string) error {
	if _, err := s.api.Server.RebootServer(ctx, id); err != nil {
		return fmt.Errorf("failed to reboot server %s: %w", id, err)
	}
	return s.api.WaitForState(ctx, api.KindServer, id, domain.StateNormal)
}

// ResumeNode starts a stopped server.
func (s *Service) ResumeNode(ctx context.Context, id string) error {
	if _, err := s.api.Server.StartServer(ctx, id); err != nil {
		return fmt.Errorf("failed to start server %s: %w", id, err)
	}
	_, err := s.waitForPower(ctx, id, true)
	return err
}

// SuspendNode shuts a running server down.
func (s *Service) SuspendNode(ctx context.Context, id string) error {
	if _, err := s.api.Server.ShutdownServer(ctx, id); err != nil {
		return fmt.Errorf("failed to shut down server %s: %w", id, err)
	}
	_, err := s.waitForPower(ctx, id, false)
	return err
}

// ListImages lists the OS and customer images.
func (s *Service) ListImages(ctx context.Context) ([]domain.OSImage, error) {
	images, err := s.api.Image.ListOSImages(api.ListOptions{}).All(ctx)
	if err != nil {
		return nil, err
	}
	customer, err := s.api.Image.ListCustomerImages(api.ListOptions{}).All(ctx)
	if err != nil {
		return nil, err
	}
	return append(images, customer...), nil
}

// ListHardwareProfiles derives one hardware profile per OS image.
func (s *Service) ListHardwareProfiles(ctx context.Context) ([]Hardware, error) {
	var profiles []Hardware
	for img, err := range s.api.Image.ListOSImages(api.ListOptions{}).Concat(ctx) {
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, hardwareFromImage(img))
	}
	return profiles, nil
}

// ListLocations lists the datacenters.
func (s *Service) ListLocations(ctx context.Context) ([]domain.Datacenter, error) {
	return s.api.Infrastructure.ListDatacenters(api.ListOptions{}).All(ctx)
}

// waitForPower polls until the server is NORMAL with the given power state.
func (s *Service) waitForPower(ctx context.Context, id string, started bool) (*domain.Server, error) {
	opts := s.api.Options()
	what := fmt.Sprintf("server %s to be started=%t", id, started)

	var server *domain.Server
	err := waiter.Wait(ctx, what, opts.PollInterval, opts.ProvisioningTimeout, func(ctx context.Context) (bool, error) {
		srv, err := s.api.Server.GetServer(ctx, id)
		if err != nil {
			return false, err
		}
		if srv.State.IsFailed() {
			return false, &waiter.StateError{What: what, State: srv.State}
		}
		server = srv
		return srv.State == domain.StateNormal && srv.Started == started, nil
	})
	if err != nil {
		return nil, err
	}
	return server, nil
}

// expose maps a public address to the server and opens ports on it.
func (s *Service) expose(ctx context.Context, server *domain.Server, ports []int) (string, error) {
	ndID := server.NetworkInfo.NetworkDomainID
	internalIP := server.PrivateIPv4()
	if internalIP == "" {
		return "", fmt.Errorf("server %s has no private IPv4 address", server.ID)
	}

	publicIP, err := s.mapPublicIP(ctx, ndID, internalIP)
	if err != nil {
		return "", err
	}

	dst, err := domain.NewIPRange(publicIP, nil)
	if err != nil {
		return "", err
	}
	for _, port := range ports {
		pr, err := domain.NewPortRange(port, nil)
		if err != nil {
			return "", err
		}
		destination, err := domain.NewFirewallRuleTarget(domain.WithIP(dst), domain.WithPort(pr))
		if err != nil {
			return "", err
		}
		op, err := s.api.Network.CreateFirewallRule(ctx, domain.CreateFirewallRule{
			NetworkDomainID: ndID,
			Name:            FirewallRuleName(server.Name, port),
			Action:          domain.ActionAcceptDecisively,
			IPVersion:       domain.IPVersion4,
			Protocol:        domain.ProtocolTCP,
			Source:          domain.AnyTarget(),
			Destination:     destination,
			Enabled:         true,
			Placement:       domain.Placement{Position: domain.PositionFirst},
		})
		if err != nil {
			return "", fmt.Errorf("failed to open port %d: %w", port, err)
		}
		if _, err := s.api.Await(ctx, api.KindFirewallRule, op); err != nil {
			return "", err
		}
	}
	return publicIP, nil
}

// mapPublicIP allocates a free public address and NATs it to internalIP.
// Allocation holds the network domain's lock until the NAT rule exists, so
// the address shows up as reserved for the next caller.
func (s *Service) mapPublicIP(ctx context.Context, networkDomainID, internalIP string) (string, error) {
	unlock := allocations.lock(networkDomainID)
	defer unlock()

	publicIP, err := s.allocatePublicIP(ctx, networkDomainID)
	if err != nil {
		return "", err
	}

	op, err := s.api.Network.CreateNatRule(ctx, api.CreateNatRule{
		NetworkDomainID: networkDomainID,
		InternalIP:      internalIP,
		ExternalIP:      publicIP,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create NAT rule for %s: %w", internalIP, err)
	}
	if _, err := s.api.Await(ctx, api.KindNatRule, op); err != nil {
		return "", err
	}
	return publicIP, nil
}

// unexpose deletes the firewall and NAT rules that point at the server.
func (s *Service) unexpose(ctx context.Context, server *domain.Server) error {
	natRules, err := s.natRulesFor(ctx, server)
	if err != nil {
		return err
	}
	if len(natRules) == 0 {
		return nil
	}

	targets := map[string]bool{server.PrivateIPv4(): true}
	for _, r := range natRules {
		targets[r.ExternalIP] = true
	}

	ndID := server.NetworkInfo.NetworkDomainID
	for rule, err := range s.api.Network.ListFirewallRules(ndID).Concat(ctx) {
		if err != nil {
			return err
		}
		if rule.Destination.IP == nil || !targets[rule.Destination.IP.Address] {
			continue
		}
		if err := s.deleteAndWait(ctx, api.KindFirewallRule, rule.ID, s.api.Network.DeleteFirewallRule); err != nil {
			return err
		}
	}
	for _, r := range natRules {
		if err := s.deleteAndWait(ctx, api.KindNatRule, r.ID, s.api.Network.DeleteNatRule); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) deleteAndWait(ctx context.Context, kind api.Kind, id string, del func(context.Context, string) (*domain.Operation, error)) error {
	op, err := del(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	if op == nil {
		return nil
	}
	return s.api.WaitForDeleted(ctx, kind, id)
}

func (s *Service) natRulesFor(ctx context.Context, server *domain.Server) ([]domain.NatRule, error) {
	internalIP := server.PrivateIPv4()
	if internalIP == "" {
		return nil, nil
	}
	var rules []domain.NatRule
	for r, err := range s.api.Network.ListNatRules(server.NetworkInfo.NetworkDomainID).Concat(ctx) {
		if err != nil {
			return nil, err
		}
		if r.InternalIP == internalIP {
			rules = append(rules, r)
		}
	}
	return rules, nil
}

// allocatePublicIP returns a free address from an existing block, adding a
// block when all are in use.
func (s *Service) allocatePublicIP(ctx context.Context, networkDomainID string) (string, error) {
	reserved := map[string]bool{}
	for ip, err := range s.api.Network.ListReservedPublicIPv4Addresses(networkDomainID).Concat(ctx) {
		if err != nil {
			return "", err
		}
		reserved[ip.Value] = true
	}

	blocks, err := s.api.Network.ListPublicIPv4AddressBlocks(networkDomainID).All(ctx)
	if err != nil {
		return "", err
	}
	for _, b := range blocks {
		if ip, ok := freeAddress(b, reserved); ok {
			return ip, nil
		}
	}

	op, err := s.api.Network.AddPublicIPv4AddressBlock(ctx, networkDomainID)
	if err != nil {
		return "", fmt.Errorf("failed to add public IP block: %w", err)
	}
	blockID, err := s.api.Await(ctx, api.KindPublicIPBlock, op)
	if err != nil {
		return "", err
	}
	block, err := s.api.Network.GetPublicIPv4AddressBlock(ctx, blockID)
	if err != nil {
		return "", err
	}
	if ip, ok := freeAddress(*block, reserved); ok {
		return ip, nil
	}
	return "", fmt.Errorf("public IP block %s has no free address", blockID)
}

func freeAddress(b domain.PublicIPBlock, reserved map[string]bool) (string, bool) {
	if b.State != "" && b.State != domain.StateNormal {
		return "", false
	}
	addr, err := netip.ParseAddr(b.BaseIP)
	if err != nil {
		return "", false
	}
	for range b.Size {
		if !reserved[addr.String()] {
			return addr.String(), true
		}
		addr = addr.Next()
	}
	return "", false
}

var invalidRuleChars = regexp.MustCompile(`[^A-Za-z0-9._]`)

const maxRuleNameLength = 75

// FirewallRuleName builds the name of the rule that opens port for server.
// Rule names only allow letters, digits, '.' and '_'.
func FirewallRuleName(serverName string, port int) string {
	suffix := fmt.Sprintf(".%d", port)
	base := invalidRuleChars.ReplaceAllString(serverName, "_")
	if len(base)+len(suffix) > maxRuleNameLength {
		base = base[:maxRuleNameLength-len(suffix)]
	}
	return base + suffix
}
