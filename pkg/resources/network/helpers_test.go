// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package network

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"
	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/client"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/config"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/testutil"
)

// newFakeClient starts a fake organization and returns a client bound to it.
func newFakeClient(t *testing.T) (*testutil.FakeCloud, *client.Client) {
	t.Helper()
	testutil.SetFakeCredentials(t)

	cloud := testutil.NewFakeCloud()
	srv := cloud.Start(t)

	cfg, err := config.FromTargetConfig(testutil.TargetConfigFor(srv))
	require.NoError(t, err)

	c, err := client.NewClient(context.Background(), cfg, client.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return cloud, c
}

// readProperties calls read and decodes the returned properties.
func readProperties(t *testing.T, read func(context.Context, *resource.ReadRequest) (*resource.ReadResult, error), id string) map[string]interface{} {
	t.Helper()
	result, err := read(context.Background(), &resource.ReadRequest{NativeID: id})
	require.NoError(t, err)
	require.Empty(t, result.ErrorCode)

	var props map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Properties), &props))
	return props
}

func listIn(networkDomainID string) *resource.ListRequest {
	return &resource.ListRequest{
		AdditionalProperties: map[string]string{"networkDomainId": networkDomainID},
	}
}
