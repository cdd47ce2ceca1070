// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"
	"github.com/stretchr/testify/require"
)

var (
	// CloudControl configuration for integration tests - read from environment variables
	Region   = getEnvOrDefault("CLOUDCONTROL_REGION", "na")
	Username = os.Getenv("CLOUDCONTROL_USERNAME")
	Password = os.Getenv("CLOUDCONTROL_PASSWORD")

	// TestDatacenterID is where integration tests deploy network domains (MCP 2.0 only)
	TestDatacenterID = getEnvOrDefault("CLOUDCONTROL_TEST_DATACENTER", "NA9")
	// TestImageID is the OS image servers are deployed from (CentOS 7 64-bit in NA9)
	TestImageID = os.Getenv("CLOUDCONTROL_TEST_IMAGE_ID")

	// TargetConfig is the target config used by integration tests
	TargetConfig = json.RawMessage(fmt.Sprintf(`{"region": %q, "pollInterval": "10s", "provisioningTimeout": "30m"}`, Region))
)

// getEnvOrDefault returns the environment variable value or the default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsConfigured returns true if the CloudControl credentials are set
func IsConfigured() bool {
	return Username != "" && Password != ""
}

// SkipIfNotConfigured skips the test if CloudControl credentials are not set
func SkipIfNotConfigured(t interface{ Skip(...any) }) {
	if !IsConfigured() {
		t.Skip("Skipping test: CloudControl credentials not configured. Set CLOUDCONTROL_USERNAME and CLOUDCONTROL_PASSWORD environment variables.")
	}
}

// SkipIfNoImage skips the test if no server image is configured
func SkipIfNoImage(t interface{ Skip(...any) }) {
	SkipIfNotConfigured(t)
	if TestImageID == "" {
		t.Skip("Skipping test: CLOUDCONTROL_TEST_IMAGE_ID not set.")
	}
}

// SetFakeCredentials sets credentials accepted by FakeCloud for the duration of the test
func SetFakeCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("CLOUDCONTROL_USERNAME", "user")
	t.Setenv("CLOUDCONTROL_PASSWORD", "secret")
}

// StatusChecker defines the interface for checking operation status
type StatusChecker interface {
	Status(ctx context.Context, request *resource.StatusRequest) (*resource.StatusResult, error)
}

// PollConfig configures the polling behavior
type PollConfig struct {
	MaxAttempts   int
	CheckInterval time.Duration
	ResourceType  string
	OperationName string // "Create", "Delete", "Update" for better logging
}

// DefaultPollConfig returns sensible defaults for polling
func DefaultPollConfig() PollConfig {
	return PollConfig{
		MaxAttempts:   100,
		CheckInterval: 5 * time.Second,
		OperationName: "Operation",
	}
}

// PollUntilComplete polls Status until the resource leaves the in-progress state
func PollUntilComplete(
	t *testing.T,
	ctx context.Context,
	checker StatusChecker,
	nativeID string,
	targetConfig json.RawMessage,
	config PollConfig,
) (*resource.StatusResult, error) {
	t.Helper()

	if config.MaxAttempts == 0 {
		config.MaxAttempts = 30
	}
	if config.CheckInterval == 0 {
		config.CheckInterval = 2 * time.Second
	}

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		statusResult, err := checker.Status(ctx, &resource.StatusRequest{
			NativeID:     nativeID,
			RequestID:    nativeID,
			ResourceType: config.ResourceType,
			TargetConfig: targetConfig,
		})
		require.NoError(t, err, "%s status check should not return error", config.OperationName)
		require.NotNil(t, statusResult, "%s status result should not be nil", config.OperationName)
		require.NotNil(t, statusResult.ProgressResult, "%s progress result should not be nil", config.OperationName)

		t.Logf("%s status check attempt %d/%d: %s (status: %s)",
			config.OperationName,
			attempt+1,
			config.MaxAttempts,
			statusResult.ProgressResult.StatusMessage,
			statusResult.ProgressResult.OperationStatus)

		switch statusResult.ProgressResult.OperationStatus {
		case resource.OperationStatusSuccess:
			return statusResult, nil
		case resource.OperationStatusFailure:
			return statusResult, fmt.Errorf("%s operation failed: %s (error code: %s)",
				config.OperationName,
				statusResult.ProgressResult.StatusMessage,
				statusResult.ProgressResult.ErrorCode)
		}

		time.Sleep(config.CheckInterval)
	}

	return nil, fmt.Errorf("%s operation timed out after %d attempts", config.OperationName, config.MaxAttempts)
}
