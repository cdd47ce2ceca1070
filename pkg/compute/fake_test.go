// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package compute

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/api"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/retry"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/testutil"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/transport/cloudcontrol"
)

const (
	testDomainID    = testutil.FakeDomainID
	testVlanID      = testutil.FakeVlanID
	testImageID     = testutil.FakeImageID
	testBlockBaseIP = testutil.FakeBlockBaseIP
)

func newTestService(t *testing.T, cloud *testutil.FakeCloud) *Service {
	t.Helper()
	srv := cloud.Start(t)

	client, err := cloudcontrol.NewClient(context.Background(), &cloudcontrol.Config{
		Endpoint:   testutil.Endpoint(srv),
		Username:   "user",
		Password:   "secret",
		OrgID:      testutil.FakeOrgID,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	return NewService(api.New(client, api.Options{
		Retry:               retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		PollInterval:        time.Millisecond,
		ProvisioningTimeout: time.Second,
	}))
}
