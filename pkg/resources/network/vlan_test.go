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

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/testutil"
)

func TestVlan_Create(t *testing.T) {
	cloud, c := newFakeClient(t)
	v := &Vlan{Client: c, Config: c.Config}

	result, err := v.Create(context.Background(), &resource.CreateRequest{
		ResourceType: ResourceTypeVlan,
		Properties: []byte(`{
			"networkDomainId": "` + testutil.FakeDomainID + `",
			"name": "backend",
			"privateIpv4BaseAddress": "10.0.4.0",
			"privateIpv4PrefixSize": 24
		}`),
	})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusSuccess, result.ProgressResult.OperationStatus)
	require.NotEmpty(t, result.ProgressResult.NativeID)

	cloud.Lock()
	defer cloud.Unlock()
	created := cloud.Vlans[result.ProgressResult.NativeID]
	require.NotNil(t, created)
	assert.Equal(t, testutil.FakeDomainID, created.NetworkDomain.ID)
	assert.Equal(t, "10.0.4.0", created.PrivateIPv4Range.Address)
	assert.Equal(t, 24, created.PrivateIPv4Range.PrefixSize)
}

func TestVlan_Create_InvalidProperties(t *testing.T) {
	tests := []struct {
		name  string
		props string
	}{
		{"missing name", `{"networkDomainId": "` + testutil.FakeDomainID + `", "privateIpv4BaseAddress": "10.0.4.0"}`},
		{"public base address", `{"networkDomainId": "` + testutil.FakeDomainID + `", "name": "x", "privateIpv4BaseAddress": "8.8.8.0"}`},
		{"ipv6 base address", `{"networkDomainId": "` + testutil.FakeDomainID + `", "name": "x", "privateIpv4BaseAddress": "fd00::"}`},
		{"prefix too small", `{"networkDomainId": "` + testutil.FakeDomainID + `", "name": "x", "privateIpv4BaseAddress": "10.0.4.0", "privateIpv4PrefixSize": 8}`},
		{"fractional prefix", `{"networkDomainId": "` + testutil.FakeDomainID + `", "name": "x", "privateIpv4BaseAddress": "10.0.4.0", "privateIpv4PrefixSize": 23.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cloud, c := newFakeClient(t)
			v := &Vlan{Client: c, Config: c.Config}

			result, err := v.Create(context.Background(), &resource.CreateRequest{Properties: []byte(tt.props)})
			require.NoError(t, err)
			assert.Equal(t, resource.OperationStatusFailure, result.ProgressResult.OperationStatus)
			assert.Equal(t, resource.OperationErrorCodeInvalidRequest, result.ProgressResult.ErrorCode)
			assert.Zero(t, cloud.CountCalls("POST network/deployVlan"))
		})
	}
}

func TestVlan_Create_UnknownDomain(t *testing.T) {
	_, c := newFakeClient(t)
	v := &Vlan{Client: c, Config: c.Config}

	result, err := v.Create(context.Background(), &resource.CreateRequest{
		Properties: []byte(`{
			"networkDomainId": "7a1d2c0f-21d5-4bd8-9b0e-8a4a0a7b1c11",
			"name": "backend",
			"privateIpv4BaseAddress": "10.0.4.0"
		}`),
	})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusFailure, result.ProgressResult.OperationStatus)
	assert.Equal(t, resource.OperationErrorCodeNotFound, result.ProgressResult.ErrorCode)
}

func TestVlan_ReadUpdateDelete(t *testing.T) {
	cloud, c := newFakeClient(t)
	v := &Vlan{Client: c, Config: c.Config}
	ctx := context.Background()

	props := readProperties(t, v.Read, testutil.FakeVlanID)
	assert.Equal(t, testutil.FakeDomainID, props["networkDomainId"])
	assert.Equal(t, "10.0.3.0", props["privateIpv4BaseAddress"])
	assert.EqualValues(t, 24, props["privateIpv4PrefixSize"])

	updated, err := v.Update(ctx, &resource.UpdateRequest{
		NativeID:          testutil.FakeVlanID,
		DesiredProperties: []byte(`{"name": "frontend", "description": "public facing"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusSuccess, updated.ProgressResult.OperationStatus)
	assert.Contains(t, string(updated.ProgressResult.ResourceProperties), `"description":"public facing"`)

	deleted, err := v.Delete(ctx, &resource.DeleteRequest{NativeID: testutil.FakeVlanID})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusSuccess, deleted.ProgressResult.OperationStatus)

	cloud.Lock()
	assert.Empty(t, cloud.Vlans)
	cloud.Unlock()

	status, err := v.Status(ctx, &resource.StatusRequest{NativeID: testutil.FakeVlanID})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationDelete, status.ProgressResult.Operation)
	assert.Equal(t, resource.OperationStatusSuccess, status.ProgressResult.OperationStatus)
}

func TestVlan_List(t *testing.T) {
	_, c := newFakeClient(t)
	v := &Vlan{Client: c, Config: c.Config}

	result, err := v.List(context.Background(), listIn(testutil.FakeDomainID))
	require.NoError(t, err)
	assert.Equal(t, []string{testutil.FakeVlanID}, result.NativeIDs)

	result, err = v.List(context.Background(), listIn("7a1d2c0f-21d5-4bd8-9b0e-8a4a0a7b1c11"))
	require.NoError(t, err)
	assert.Empty(t, result.NativeIDs)
}

func TestVlan_List_RequiresNetworkDomain(t *testing.T) {
	_, c := newFakeClient(t)
	v := &Vlan{Client: c, Config: c.Config}

	_, err := v.List(context.Background(), &resource.ListRequest{})
	assert.ErrorContains(t, err, "networkDomainId")
}
