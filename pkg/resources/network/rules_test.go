// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package network

import (
	"context"
	"testing"

	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/testutil"
)

func TestPublicIPBlock_Lifecycle(t *testing.T) {
	cloud, c := newFakeClient(t)
	p := &PublicIPBlock{Client: c, Config: c.Config}
	ctx := context.Background()

	created, err := p.Create(ctx, &resource.CreateRequest{
		Properties: []byte(`{"networkDomainId": "` + testutil.FakeDomainID + `"}`),
	})
	require.NoError(t, err)
	require.Equal(t, resource.OperationStatusSuccess, created.ProgressResult.OperationStatus)
	id := created.ProgressResult.NativeID

	props := readProperties(t, p.Read, id)
	assert.Equal(t, testutil.FakeBlockBaseIP, props["baseIp"])
	assert.EqualValues(t, 2, props["size"])

	listed, err := p.List(ctx, listIn(testutil.FakeDomainID))
	require.NoError(t, err)
	assert.Equal(t, []string{id}, listed.NativeIDs)

	updated, err := p.Update(ctx, &resource.UpdateRequest{NativeID: id, DesiredProperties: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationErrorCodeNotUpdatable, updated.ProgressResult.ErrorCode)

	deleted, err := p.Delete(ctx, &resource.DeleteRequest{NativeID: id})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusSuccess, deleted.ProgressResult.OperationStatus)
	assert.Equal(t, 1, cloud.CountCalls("POST network/removePublicIpBlock"))
}

func TestNatRule_Lifecycle(t *testing.T) {
	cloud, c := newFakeClient(t)
	n := &NatRule{Client: c, Config: c.Config}
	ctx := context.Background()

	created, err := n.Create(ctx, &resource.CreateRequest{
		Properties: []byte(`{
			"networkDomainId": "` + testutil.FakeDomainID + `",
			"internalIp": "10.0.3.10",
			"externalIp": "` + testutil.FakeBlockBaseIP + `"
		}`),
	})
	require.NoError(t, err)
	require.Equal(t, resource.OperationStatusSuccess, created.ProgressResult.OperationStatus)
	id := created.ProgressResult.NativeID

	props := readProperties(t, n.Read, id)
	assert.Equal(t, "10.0.3.10", props["internalIp"])
	assert.Equal(t, testutil.FakeBlockBaseIP, props["externalIp"])

	status, err := n.Status(ctx, &resource.StatusRequest{RequestID: id})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusSuccess, status.ProgressResult.OperationStatus)

	deleted, err := n.Delete(ctx, &resource.DeleteRequest{NativeID: id})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusSuccess, deleted.ProgressResult.OperationStatus)

	cloud.Lock()
	defer cloud.Unlock()
	assert.Empty(t, cloud.NatRules)
}

func TestNatRule_Create_InvalidAddress(t *testing.T) {
	cloud, c := newFakeClient(t)
	n := &NatRule{Client: c, Config: c.Config}

	result, err := n.Create(context.Background(), &resource.CreateRequest{
		Properties: []byte(`{"networkDomainId": "` + testutil.FakeDomainID + `", "internalIp": "10.0.3.10", "externalIp": "nope"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationErrorCodeInvalidRequest, result.ProgressResult.ErrorCode)
	assert.Zero(t, cloud.CountCalls("POST network/createNatRule"))
}

func TestFirewallRule_Create(t *testing.T) {
	cloud, c := newFakeClient(t)
	f := &FirewallRule{Client: c, Config: c.Config}

	result, err := f.Create(context.Background(), &resource.CreateRequest{
		Properties: []byte(`{
			"networkDomainId": "` + testutil.FakeDomainID + `",
			"name": "allow_https",
			"action": "accept_decisively",
			"protocol": "tcp",
			"destination": {"ip": "10.0.3.10", "port": 443}
		}`),
	})
	require.NoError(t, err)
	require.Equal(t, resource.OperationStatusSuccess, result.ProgressResult.OperationStatus)

	cloud.Lock()
	defer cloud.Unlock()
	rule := cloud.FirewallRules[result.ProgressResult.NativeID]
	require.NotNil(t, rule)
	assert.Equal(t, domain.ActionAcceptDecisively, rule.Action)
	assert.Equal(t, domain.IPVersion4, rule.IPVersion)
	assert.Equal(t, domain.ProtocolTCP, rule.Protocol)
	assert.Equal(t, domain.AnyAddress, rule.Source.IP.Address)
	require.NotNil(t, rule.Destination.Port)
	assert.Equal(t, 443, rule.Destination.Port.Begin)
	assert.True(t, rule.Enabled)
}

func TestFirewallRule_Create_InvalidProperties(t *testing.T) {
	base := `"networkDomainId": "` + testutil.FakeDomainID + `", "name": "r", "action": "DROP", "protocol": "TCP"`
	tests := []struct {
		name  string
		props string
	}{
		{"unknown action", `{"networkDomainId": "` + testutil.FakeDomainID + `", "name": "r", "action": "ALLOW", "protocol": "TCP"}`},
		{"bad source address", `{` + base + `, "source": {"ip": "300.1.1.1"}}`},
		{"port out of range", `{` + base + `, "destination": {"ip": "ANY", "port": 70000}}`},
		{"inverted port range", `{` + base + `, "destination": {"ip": "ANY", "port": 80, "portEnd": 79}}`},
		{"ip and list", `{` + base + `, "source": {"ip": "ANY", "ipAddressListId": "7a1d2c0f-21d5-4bd8-9b0e-8a4a0a7b1c11"}}`},
		{"before without rule", `{` + base + `, "placement": {"position": "BEFORE"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cloud, c := newFakeClient(t)
			f := &FirewallRule{Client: c, Config: c.Config}

			result, err := f.Create(context.Background(), &resource.CreateRequest{Properties: []byte(tt.props)})
			require.NoError(t, err)
			assert.Equal(t, resource.OperationErrorCodeInvalidRequest, result.ProgressResult.ErrorCode)
			assert.Zero(t, cloud.CountCalls("POST network/createFirewallRule"))
		})
	}
}

func TestFirewallRule_Create_VendorRejects(t *testing.T) {
	cloud, c := newFakeClient(t)
	cloud.FailFirewall = true
	f := &FirewallRule{Client: c, Config: c.Config}

	result, err := f.Create(context.Background(), &resource.CreateRequest{
		Properties: []byte(`{"networkDomainId": "` + testutil.FakeDomainID + `", "name": "r", "action": "DROP", "protocol": "IP"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusFailure, result.ProgressResult.OperationStatus)
	assert.Equal(t, resource.OperationErrorCodeInvalidRequest, result.ProgressResult.ErrorCode)
	assert.Equal(t, 1, cloud.CountCalls("POST network/createFirewallRule"))
}

func TestFirewallRule_List_SkipsSystemRules(t *testing.T) {
	cloud, c := newFakeClient(t)
	f := &FirewallRule{Client: c, Config: c.Config}

	cloud.Lock()
	cloud.FirewallRules["3b9c1e86-46a4-4b8e-a3e4-0fd8e4b1f8d1"] = &domain.FirewallRule{
		ID: "3b9c1e86-46a4-4b8e-a3e4-0fd8e4b1f8d1", NetworkDomainID: testutil.FakeDomainID, RuleType: "DEFAULT_RULE", State: domain.StateNormal,
	}
	cloud.FirewallRules["c6f4d2b1-9e2a-4a55-8f3c-2a7b9d0e1f42"] = &domain.FirewallRule{
		ID: "c6f4d2b1-9e2a-4a55-8f3c-2a7b9d0e1f42", NetworkDomainID: testutil.FakeDomainID, RuleType: "CLIENT_RULE", State: domain.StateNormal,
	}
	cloud.Unlock()

	result, err := f.List(context.Background(), listIn(testutil.FakeDomainID))
	require.NoError(t, err)
	assert.Equal(t, []string{"c6f4d2b1-9e2a-4a55-8f3c-2a7b9d0e1f42"}, result.NativeIDs)
}
