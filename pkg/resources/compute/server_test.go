// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package compute

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/client"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/config"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/testutil"
)

func newTestServer(t *testing.T) (*testutil.FakeCloud, *Server) {
	t.Helper()
	testutil.SetFakeCredentials(t)

	cloud := testutil.NewFakeCloud()
	srv := cloud.Start(t)

	cfg, err := config.FromTargetConfig(testutil.TargetConfigFor(srv))
	require.NoError(t, err)
	c, err := client.NewClient(context.Background(), cfg, client.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	return cloud, &Server{Client: c, Config: cfg}
}

func serverProperties(extra string) []byte {
	return []byte(`{
		"group": "web",
		"imageId": "` + testutil.FakeImageID + `",
		"networkDomainId": "` + testutil.FakeDomainID + `",
		"vlanId": "` + testutil.FakeVlanID + `"` + extra + `
	}`)
}

func TestServer_Create(t *testing.T) {
	cloud, s := newTestServer(t)

	result, err := s.Create(context.Background(), &resource.CreateRequest{
		ResourceType: ResourceTypeServer,
		Label:        "web",
		Properties:   serverProperties(`, "inboundPorts": [22, 443]`),
	})
	require.NoError(t, err)
	require.Equal(t, resource.OperationStatusSuccess, result.ProgressResult.OperationStatus, result.ProgressResult.StatusMessage)

	var props map[string]interface{}
	require.NoError(t, json.Unmarshal(result.ProgressResult.ResourceProperties, &props))
	assert.Equal(t, "web", props["group"])
	assert.Equal(t, "RUNNING", props["status"])
	assert.Equal(t, "root", props["adminUser"])
	assert.NotContains(t, props, "adminPassword")
	assert.Equal(t, []interface{}{testutil.FakeBlockBaseIP}, props["publicAddresses"])

	cloud.Lock()
	defer cloud.Unlock()
	require.Len(t, cloud.Servers, 1)
	assert.Len(t, cloud.NatRules, 1)
	assert.Len(t, cloud.FirewallRules, 2)
	for id, server := range cloud.Servers {
		assert.Equal(t, result.ProgressResult.NativeID, id)
		assert.True(t, server.Started)
	}
}

func TestServer_Create_InvalidProperties(t *testing.T) {
	tests := []struct {
		name  string
		props []byte
	}{
		{"missing vlan", []byte(`{"group": "web", "imageId": "` + testutil.FakeImageID + `", "networkDomainId": "` + testutil.FakeDomainID + `"}`)},
		{"port out of range", serverProperties(`, "inboundPorts": [0]`)},
		{"ports not a list", serverProperties(`, "inboundPorts": "22"`)},
		{"negative memory", serverProperties(`, "memoryGb": -1`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cloud, s := newTestServer(t)

			result, err := s.Create(context.Background(), &resource.CreateRequest{Properties: tt.props})
			require.NoError(t, err)
			assert.Equal(t, resource.OperationErrorCodeInvalidRequest, result.ProgressResult.ErrorCode)
			assert.Zero(t, cloud.CountCalls("POST server/deployServer"))
		})
	}
}

func TestServer_UpdateStopsAndStarts(t *testing.T) {
	cloud, s := newTestServer(t)
	ctx := context.Background()

	created, err := s.Create(ctx, &resource.CreateRequest{Properties: serverProperties(`, "name": "web-fixed"`)})
	require.NoError(t, err)
	id := created.ProgressResult.NativeID

	stopped, err := s.Update(ctx, &resource.UpdateRequest{NativeID: id, DesiredProperties: []byte(`{"started": false}`)})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusSuccess, stopped.ProgressResult.OperationStatus)
	assert.Contains(t, string(stopped.ProgressResult.ResourceProperties), `"status":"SUSPENDED"`)
	assert.Equal(t, 1, cloud.CountCalls("POST server/shutdownServer"))

	started, err := s.Update(ctx, &resource.UpdateRequest{NativeID: id, DesiredProperties: []byte(`{"started": true}`)})
	require.NoError(t, err)
	assert.Contains(t, string(started.ProgressResult.ResourceProperties), `"status":"RUNNING"`)
	assert.Equal(t, 1, cloud.CountCalls("POST server/startServer"))
}

func TestServer_DeleteRemovesRules(t *testing.T) {
	cloud, s := newTestServer(t)
	ctx := context.Background()

	created, err := s.Create(ctx, &resource.CreateRequest{Properties: serverProperties(`, "inboundPorts": [80]`)})
	require.NoError(t, err)
	id := created.ProgressResult.NativeID

	deleted, err := s.Delete(ctx, &resource.DeleteRequest{NativeID: id})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusSuccess, deleted.ProgressResult.OperationStatus)

	cloud.Lock()
	assert.Empty(t, cloud.Servers)
	assert.Empty(t, cloud.NatRules)
	assert.Empty(t, cloud.FirewallRules)
	cloud.Unlock()

	again, err := s.Delete(ctx, &resource.DeleteRequest{NativeID: id})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusSuccess, again.ProgressResult.OperationStatus)

	read, err := s.Read(ctx, &resource.ReadRequest{NativeID: id})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationErrorCodeNotFound, read.ErrorCode)
}

func TestServer_CreateKeepsIDOfServerLeftBehind(t *testing.T) {
	cloud, s := newTestServer(t)
	cloud.DeployState = domain.StatePendingAdd

	result, err := s.Create(context.Background(), &resource.CreateRequest{Properties: serverProperties("")})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusFailure, result.ProgressResult.OperationStatus)
	assert.Equal(t, resource.OperationErrorCodeGeneralServiceException, result.ProgressResult.ErrorCode)

	cloud.Lock()
	defer cloud.Unlock()
	require.Len(t, cloud.Servers, 1)
	for id := range cloud.Servers {
		assert.Equal(t, id, result.ProgressResult.NativeID)
	}
}

func TestServer_Status(t *testing.T) {
	cloud, s := newTestServer(t)
	ctx := context.Background()

	created, err := s.Create(ctx, &resource.CreateRequest{Properties: serverProperties("")})
	require.NoError(t, err)
	id := created.ProgressResult.NativeID

	cloud.Lock()
	cloud.Servers[id].State = domain.StatePendingChange
	cloud.Unlock()

	status, err := s.Status(ctx, &resource.StatusRequest{NativeID: id})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationStatusInProgress, status.ProgressResult.OperationStatus)

	cloud.Lock()
	delete(cloud.Servers, id)
	cloud.Unlock()

	status, err = s.Status(ctx, &resource.StatusRequest{NativeID: id})
	require.NoError(t, err)
	assert.Equal(t, resource.OperationDelete, status.ProgressResult.Operation)
	assert.Equal(t, resource.OperationStatusSuccess, status.ProgressResult.OperationStatus)
}

func TestServer_List(t *testing.T) {
	cloud, s := newTestServer(t)
	ctx := context.Background()

	created, err := s.Create(ctx, &resource.CreateRequest{Properties: serverProperties("")})
	require.NoError(t, err)

	cloud.Lock()
	cloud.Servers["9d8f7e6a-5b4c-4d3e-8f2a-1b0c9d8e7f6a"] = &domain.Server{
		ID:          "9d8f7e6a-5b4c-4d3e-8f2a-1b0c9d8e7f6a",
		Name:        "elsewhere",
		NetworkInfo: domain.NetworkInfo{NetworkDomainID: "a4b3c2d1-0000-4000-8000-000000000001"},
		State:       domain.StateNormal,
	}
	cloud.Unlock()

	all, err := s.List(ctx, &resource.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all.NativeIDs, 2)

	scoped, err := s.List(ctx, &resource.ListRequest{
		AdditionalProperties: map[string]string{"networkDomainId": testutil.FakeDomainID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{created.ProgressResult.NativeID}, scoped.NativeIDs)
}
