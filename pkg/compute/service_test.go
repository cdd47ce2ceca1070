// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package compute

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/testutil"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/waiter"
)

func webTemplate(ports ...int) Template {
	return Template{
		Group:           "web",
		ImageID:         testImageID,
		NetworkDomainID: testDomainID,
		VlanID:          testVlanID,
		CPUCount:        2,
		MemoryGB:        4,
		InboundPorts:    ports,
	}
}

func TestCreateNode_WithoutPorts(t *testing.T) {
	cloud := testutil.NewFakeCloud()
	svc := newTestService(t, cloud)

	tmpl := webTemplate()
	tmpl.AdminPassword = "P@ssw0rd!"
	node, err := svc.CreateNodeWithGroupEncodedIntoName(context.Background(), "web", "web-1", tmpl)
	require.NoError(t, err)

	assert.Equal(t, "web-1", node.Name)
	assert.Equal(t, "web", node.Group)
	assert.Equal(t, NodeStatusRunning, node.Status)
	assert.Equal(t, &Credentials{User: "root", Password: "P@ssw0rd!"}, node.Credentials)
	assert.Len(t, node.PrivateAddresses, 1)
	assert.Empty(t, node.PublicAddresses)
	assert.Zero(t, cloud.CountCalls("POST network/createNatRule"))
}

func TestCreateNode_ExposesPorts(t *testing.T) {
	cloud := testutil.NewFakeCloud()
	svc := newTestService(t, cloud)

	node, err := svc.CreateNodeWithGroupEncodedIntoName(context.Background(), "web", "web-1", webTemplate(22, 80))
	require.NoError(t, err)

	require.Len(t, node.PublicAddresses, 1)
	assert.Equal(t, testBlockBaseIP, node.PublicAddresses[0])
	require.NotNil(t, node.Credentials)
	assert.Len(t, node.Credentials.Password, passwordLength)

	assert.Equal(t, 1, cloud.CountCalls("POST network/addPublicIpBlock"))
	require.Len(t, cloud.NatRules, 1)
	for _, r := range cloud.NatRules {
		assert.Equal(t, node.PrivateAddresses[0], r.InternalIP)
		assert.Equal(t, testBlockBaseIP, r.ExternalIP)
	}

	require.Len(t, cloud.FirewallRules, 2)
	ports := map[int]bool{}
	for _, r := range cloud.FirewallRules {
		assert.Equal(t, domain.ActionAcceptDecisively, r.Action)
		assert.Equal(t, domain.IPVersion4, r.IPVersion)
		assert.Equal(t, domain.ProtocolTCP, r.Protocol)
		assert.Equal(t, domain.AnyAddress, r.Source.IP.Address)
		assert.Equal(t, testBlockBaseIP, r.Destination.IP.Address)
		ports[r.Destination.Port.Begin] = true
	}
	assert.Equal(t, map[int]bool{22: true, 80: true}, ports)
}

func TestCreateNode_ReusesFreeAddress(t *testing.T) {
	cloud := testutil.NewFakeCloud()
	svc := newTestService(t, cloud)

	first, err := svc.CreateNodeWithGroupEncodedIntoName(context.Background(), "web", "web-1", webTemplate(22))
	require.NoError(t, err)
	second, err := svc.CreateNodeWithGroupEncodedIntoName(context.Background(), "web", "web-2", webTemplate(22))
	require.NoError(t, err)

	assert.Equal(t, "168.128.6.216", first.PublicAddresses[0])
	assert.Equal(t, "168.128.6.217", second.PublicAddresses[0])
	assert.Equal(t, 1, cloud.CountCalls("POST network/addPublicIpBlock"))
}

func TestCreateNode_ExposureFailureDestroysServer(t *testing.T) {
	cloud := testutil.NewFakeCloud()
	cloud.FailFirewall = true
	svc := newTestService(t, cloud)

	_, err := svc.CreateNodeWithGroupEncodedIntoName(context.Background(), "web", "web-1", webTemplate(22))
	require.Error(t, err)

	assert.Empty(t, cloud.Servers)
	assert.Empty(t, cloud.NatRules)
}

func TestCreateNode_ConcurrentServicesGetDistinctAddresses(t *testing.T) {
	cloud := testutil.NewFakeCloud()
	services := []*Service{newTestService(t, cloud), newTestService(t, cloud), newTestService(t, cloud), newTestService(t, cloud)}

	const creates = 8
	addresses := make([]string, creates)
	var wg sync.WaitGroup
	for i := range creates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			node, err := services[i%len(services)].CreateNodeWithGroupEncodedIntoName(context.Background(), "web", EncodeName("web"), webTemplate(22))
			if assert.NoError(t, err) && assert.Len(t, node.PublicAddresses, 1) {
				addresses[i] = node.PublicAddresses[0]
			}
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, a := range addresses {
		assert.False(t, seen[a], "address %s handed out twice", a)
		seen[a] = true
	}
	cloud.Lock()
	defer cloud.Unlock()
	assert.Len(t, cloud.NatRules, creates)
}

func TestCreateNode_FailedDeploymentDestroysServer(t *testing.T) {
	cloud := testutil.NewFakeCloud()
	cloud.DeployState = domain.StateFailedAdd
	svc := newTestService(t, cloud)

	_, err := svc.CreateNodeWithGroupEncodedIntoName(context.Background(), "web", "web-1", webTemplate())
	require.Error(t, err)

	var orphaned *OrphanedServerError
	assert.False(t, errors.As(err, &orphaned))
	var stateErr *waiter.StateError
	assert.ErrorAs(t, err, &stateErr)
	assert.Empty(t, cloud.Servers)
}

func TestCreateNode_StuckDeploymentReportsServerID(t *testing.T) {
	cloud := testutil.NewFakeCloud()
	cloud.DeployState = domain.StatePendingAdd
	svc := newTestService(t, cloud)

	_, err := svc.CreateNodeWithGroupEncodedIntoName(context.Background(), "web", "web-1", webTemplate())
	require.Error(t, err)

	var orphaned *OrphanedServerError
	require.ErrorAs(t, err, &orphaned)
	var timeout *waiter.TimeoutError
	assert.ErrorAs(t, err, &timeout)
	assert.Error(t, orphaned.CleanupErr)

	cloud.Lock()
	defer cloud.Unlock()
	require.Len(t, cloud.Servers, 1)
	assert.Contains(t, cloud.Servers, orphaned.ID)
}

func TestCreateNodesInGroup(t *testing.T) {
	cloud := testutil.NewFakeCloud()
	svc := newTestService(t, cloud)

	nodes, err := svc.CreateNodesInGroup(context.Background(), "batch", 3, webTemplate())
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	names := map[string]bool{}
	for _, n := range nodes {
		assert.Equal(t, "batch", n.Group)
		assert.True(t, strings.HasPrefix(n.Name, "batch-"))
		names[n.Name] = true
	}
	assert.Len(t, names, 3)

	listed, err := svc.ListNodes(context.Background())
	require.NoError(t, err)
	assert.Len(t, listed, 3)
	for _, n := range listed {
		assert.Equal(t, "batch", n.Group)
	}
}

func TestCreateNodesInGroup_InvalidCount(t *testing.T) {
	svc := newTestService(t, testutil.NewFakeCloud())
	_, err := svc.CreateNodesInGroup(context.Background(), "batch", 0, webTemplate())
	assert.Error(t, err)
}

func TestDestroyNode(t *testing.T) {
	cloud := testutil.NewFakeCloud()
	svc := newTestService(t, cloud)

	node, err := svc.CreateNodeWithGroupEncodedIntoName(context.Background(), "web", "web-1", webTemplate(22, 443))
	require.NoError(t, err)

	require.NoError(t, svc.DestroyNode(context.Background(), node.ID))
	assert.Empty(t, cloud.Servers)
	assert.Empty(t, cloud.NatRules)
	assert.Empty(t, cloud.FirewallRules)
	assert.Equal(t, 1, cloud.CountCalls("POST server/powerOffServer"))

	// A second destroy is a no-op.
	require.NoError(t, svc.DestroyNode(context.Background(), node.ID))
	assert.Equal(t, 1, cloud.CountCalls("POST server/deleteServer"))
}

func TestGetNode(t *testing.T) {
	cloud := testutil.NewFakeCloud()
	svc := newTestService(t, cloud)

	created, err := svc.CreateNodeWithGroupEncodedIntoName(context.Background(), "web", "web-1", webTemplate(22))
	require.NoError(t, err)

	node, err := svc.GetNode(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, created.PublicAddresses, node.PublicAddresses)
	assert.Nil(t, node.Credentials)

	missing, err := svc.GetNode(context.Background(), "00000000-0000-4000-8000-999999999999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListNodesByIDs(t *testing.T) {
	cloud := testutil.NewFakeCloud()
	svc := newTestService(t, cloud)

	a, err := svc.CreateNodeWithGroupEncodedIntoName(context.Background(), "web", "web-1", webTemplate())
	require.NoError(t, err)
	_, err = svc.CreateNodeWithGroupEncodedIntoName(context.Background(), "web", "web-2", webTemplate())
	require.NoError(t, err)

	nodes, err := svc.ListNodesByIDs(context.Background(), []string{a.ID})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, a.ID, nodes[0].ID)
}

func TestPowerCycle(t *testing.T) {
	cloud := testutil.NewFakeCloud()
	svc := newTestService(t, cloud)

	node, err := svc.CreateNodeWithGroupEncodedIntoName(context.Background(), "web", "web-1", webTemplate())
	require.NoError(t, err)

	require.NoError(t, svc.SuspendNode(context.Background(), node.ID))
	got, err := svc.GetNode(context.Background(), node.ID)
	require.NoError(t, err)
	assert.Equal(t, NodeStatusSuspended, got.Status)

	require.NoError(t, svc.ResumeNode(context.Background(), node.ID))
	require.NoError(t, svc.RebootNode(context.Background(), node.ID))
	got, err = svc.GetNode(context.Background(), node.ID)
	require.NoError(t, err)
	assert.Equal(t, NodeStatusRunning, got.Status)
}

func TestListImagesHardwareLocations(t *testing.T) {
	svc := newTestService(t, testutil.NewFakeCloud())

	images, err := svc.ListImages(context.Background())
	require.NoError(t, err)
	assert.Len(t, images, 2)

	hardware, err := svc.ListHardwareProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, hardware, 1)
	assert.Equal(t, Hardware{
		ID:       testImageID,
		Name:     "2 CPU / 4 GB RAM / 30 GB disk",
		CPUCount: 2,
		MemoryGB: 4,
		DiskGB:   30,
		Location: "NA9",
	}, hardware[0])

	locations, err := svc.ListLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "NA9", locations[0].ID)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		server *domain.Server
		want   NodeStatus
	}{
		{&domain.Server{State: domain.StateNormal, Started: true}, NodeStatusRunning},
		{&domain.Server{State: domain.StateNormal}, NodeStatusSuspended},
		{&domain.Server{State: domain.StatePendingAdd}, NodeStatusPending},
		{&domain.Server{State: domain.StatePendingDelete, Started: true}, NodeStatusPending},
		{&domain.Server{State: domain.StateFailedChange}, NodeStatusError},
		{&domain.Server{State: domain.StateRequiresSupport}, NodeStatusError},
		{&domain.Server{State: "SOMETHING_ELSE"}, NodeStatusUnrecognized},
		{nil, NodeStatusTerminated},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.server))
	}
}

func TestGroupEncoding(t *testing.T) {
	name := EncodeName("my-group")
	assert.Equal(t, "my-group", GroupFromName(name))
	assert.Len(t, name, len("my-group")+9)
	assert.Equal(t, "", GroupFromName("standalone"))
}

func TestFirewallRuleName(t *testing.T) {
	assert.Equal(t, "web_a1.22", FirewallRuleName("web-a1", 22))
	long := FirewallRuleName(strings.Repeat("x", 100), 8080)
	assert.Len(t, long, maxRuleNameLength)
	assert.True(t, strings.HasSuffix(long, ".8080"))
}

func TestGeneratePassword(t *testing.T) {
	seen := map[string]bool{}
	for range 20 {
		pw, err := GeneratePassword()
		require.NoError(t, err)
		assert.Len(t, pw, passwordLength)
		assert.True(t, strings.ContainsFunc(pw, unicode.IsLower))
		assert.True(t, strings.ContainsFunc(pw, unicode.IsUpper))
		assert.True(t, strings.ContainsFunc(pw, unicode.IsDigit))
		assert.True(t, strings.ContainsAny(pw, specialChars))
		seen[pw] = true
	}
	assert.Len(t, seen, 20)
}

func TestFreeAddress(t *testing.T) {
	block := domain.PublicIPBlock{BaseIP: "168.128.6.216", Size: 2, State: domain.StateNormal}

	ip, ok := freeAddress(block, map[string]bool{"168.128.6.216": true})
	assert.True(t, ok)
	assert.Equal(t, "168.128.6.217", ip)

	_, ok = freeAddress(block, map[string]bool{"168.128.6.216": true, "168.128.6.217": true})
	assert.False(t, ok)

	block.State = domain.StatePendingAdd
	_, ok = freeAddress(block, map[string]bool{})
	assert.False(t, ok)
}
