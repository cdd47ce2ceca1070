// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/transport/cloudcontrol"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/waiter"
)

// NetworkDomainIDProperty is the AdditionalProperties key that scopes List
// calls of network domain children.
const NetworkDomainIDProperty = "networkDomainId"

// ParseProperties unmarshals JSON properties from a request into a map.
// Returns an error if the properties cannot be parsed.
func ParseProperties(data []byte) (map[string]interface{}, error) {
	var props map[string]interface{}
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("failed to parse resource properties: %w", err)
	}
	if props == nil {
		props = map[string]interface{}{}
	}
	return props, nil
}

// ValidateNativeID checks that the NativeID is a CloudControl resource id.
func ValidateNativeID(nativeID string) error {
	if nativeID == "" {
		return fmt.Errorf("nativeID is required")
	}
	if err := uuid.Validate(nativeID); err != nil {
		return fmt.Errorf("nativeID %q is not a valid id: %w", nativeID, err)
	}
	return nil
}

// MarshalProperties marshals a properties map to a JSON string.
// Returns an error if marshaling fails.
func MarshalProperties(props map[string]interface{}) (string, error) {
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("failed to marshal properties: %w", err)
	}
	return string(propsJSON), nil
}

// NewFailureResult creates a standardized failure ProgressResult.
func NewFailureResult(op resource.Operation, errCode resource.OperationErrorCode, nativeID string, message string) *resource.ProgressResult {
	return &resource.ProgressResult{
		Operation:       op,
		OperationStatus: resource.OperationStatusFailure,
		ErrorCode:       errCode,
		NativeID:        nativeID,
		StatusMessage:   message,
	}
}

// NewSuccessResult creates a success ProgressResult carrying props.
func NewSuccessResult(op resource.Operation, nativeID string, props map[string]interface{}) *resource.ProgressResult {
	result := &resource.ProgressResult{
		Operation:       op,
		OperationStatus: resource.OperationStatusSuccess,
		NativeID:        nativeID,
	}
	if props == nil {
		return result
	}
	propsJSON, err := MarshalProperties(props)
	if err != nil {
		return NewFailureResult(op, resource.OperationErrorCodeGeneralServiceException, nativeID, err.Error())
	}
	result.ResourceProperties = []byte(propsJSON)
	return result
}

// ErrorCode maps adapter errors to standard operation error codes.
func ErrorCode(err error) resource.OperationErrorCode {
	if err == nil {
		return ""
	}

	var stateErr *waiter.StateError
	var timeoutErr *waiter.TimeoutError
	switch {
	case errors.As(err, &stateErr):
		return resource.OperationErrorCodeServiceInternalError
	case errors.As(err, &timeoutErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return resource.OperationErrorCodeGeneralServiceException
	}

	code := cloudcontrol.ErrorCodeOf(err)
	if code == cloudcontrol.ErrorCodeUnknown {
		var e *cloudcontrol.Error
		if !errors.As(err, &e) {
			// Local validation errors never reach the vendor.
			return resource.OperationErrorCodeInvalidRequest
		}
	}
	return cloudcontrol.ToResourceErrorCode(code)
}

// StatusOf maps a resource state to an operation status.
func StatusOf(state domain.State) resource.OperationStatus {
	switch {
	case state == domain.StateNormal:
		return resource.OperationStatusSuccess
	case state.IsFailed():
		return resource.OperationStatusFailure
	default:
		return resource.OperationStatusInProgress
	}
}

// CheckStatus builds the Status result for a resource in state. A nil
// state means the resource is gone, which completes a delete.
func CheckStatus(nativeID string, state *domain.State, props map[string]interface{}) *resource.ProgressResult {
	if state == nil {
		return &resource.ProgressResult{
			Operation:       resource.OperationDelete,
			OperationStatus: resource.OperationStatusSuccess,
			NativeID:        nativeID,
		}
	}

	switch StatusOf(*state) {
	case resource.OperationStatusSuccess:
		return NewSuccessResult(resource.OperationCheckStatus, nativeID, props)
	case resource.OperationStatusFailure:
		return NewFailureResult(resource.OperationCheckStatus, resource.OperationErrorCodeServiceInternalError, nativeID,
			fmt.Sprintf("resource is in state %s", *state))
	default:
		return &resource.ProgressResult{
			Operation:       resource.OperationCheckStatus,
			OperationStatus: resource.OperationStatusInProgress,
			RequestID:       nativeID,
			NativeID:        nativeID,
			StatusMessage:   string(*state),
		}
	}
}

// String returns the string property key, or "".
func String(props map[string]interface{}, key string) string {
	s, _ := props[key].(string)
	return s
}

// OptionalString returns the string property key, or nil when it is absent.
func OptionalString(props map[string]interface{}, key string) *string {
	s, ok := props[key].(string)
	if !ok {
		return nil
	}
	return &s
}

// Int returns the integer property key. JSON numbers arrive as float64.
func Int(props map[string]interface{}, key string) (int, bool, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, true, fmt.Errorf("%s must be an integer", key)
	}
	return int(f), true, nil
}

// Ints returns the integer list property key.
func Ints(props map[string]interface{}, key string) ([]int, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return nil, nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be a list of integers", key)
	}
	out := make([]int, 0, len(arr))
	for _, item := range arr {
		f, ok := item.(float64)
		if !ok || f != math.Trunc(f) {
			return nil, fmt.Errorf("%s must be a list of integers", key)
		}
		out = append(out, int(f))
	}
	return out, nil
}

// Bool returns the boolean property key, or def when it is absent.
func Bool(props map[string]interface{}, key string, def bool) bool {
	b, ok := props[key].(bool)
	if !ok {
		return def
	}
	return b
}

// NetworkDomainID returns the network domain a List call is scoped to.
func NetworkDomainID(additional map[string]string) (string, error) {
	id := additional[NetworkDomainIDProperty]
	if id == "" {
		return "", fmt.Errorf("%s is required to list this resource type", NetworkDomainIDProperty)
	}
	return id, nil
}
