// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resources

import (
	"context"
	"fmt"

	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/api"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/paging"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/transport/cloudcontrol"
)

// DeleteFunc submits the delete of a resource. A nil operation means the
// resource was already gone.
type DeleteFunc func(ctx context.Context, id string) (*domain.Operation, error)

// GetStateFunc reads a resource and returns its state and properties.
type GetStateFunc func(ctx context.Context, id string) (domain.State, map[string]interface{}, error)

// DeleteAndWait runs del and waits until the resource is gone. A resource
// that is already gone is success.
func DeleteAndWait(ctx context.Context, a *api.API, kind api.Kind, request *resource.DeleteRequest, del DeleteFunc) *resource.DeleteResult {
	if err := ValidateNativeID(request.NativeID); err != nil {
		return &resource.DeleteResult{
			ProgressResult: NewFailureResult(resource.OperationDelete, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}
	}
	id := request.NativeID

	op, err := del(ctx, id)
	if err != nil {
		return &resource.DeleteResult{
			ProgressResult: NewFailureResult(resource.OperationDelete, ErrorCode(err), id,
				fmt.Sprintf("failed to delete %s: %v", kind, err)),
		}
	}
	if op != nil {
		if err := a.WaitForDeleted(ctx, kind, id); err != nil {
			return &resource.DeleteResult{
				ProgressResult: NewFailureResult(resource.OperationDelete, ErrorCode(err), id, err.Error()),
			}
		}
	}

	return &resource.DeleteResult{
		ProgressResult: NewSuccessResult(resource.OperationDelete, id, nil),
	}
}

// CheckResourceStatus reads the resource through get and maps its state.
// A missing resource completes a delete.
func CheckResourceStatus(ctx context.Context, request *resource.StatusRequest, get GetStateFunc) *resource.StatusResult {
	id := request.NativeID
	if id == "" {
		id = request.RequestID
	}
	if err := ValidateNativeID(id); err != nil {
		return &resource.StatusResult{
			ProgressResult: NewFailureResult(resource.OperationCheckStatus, resource.OperationErrorCodeInvalidRequest, "", err.Error()),
		}
	}

	state, props, err := get(ctx, id)
	if cloudcontrol.IsNotFound(err) {
		return &resource.StatusResult{ProgressResult: CheckStatus(id, nil, nil)}
	}
	if err != nil {
		return &resource.StatusResult{
			ProgressResult: NewFailureResult(resource.OperationCheckStatus, ErrorCode(err), id, err.Error()),
		}
	}
	return &resource.StatusResult{ProgressResult: CheckStatus(id, &state, props)}
}

// ListInDomain collects the ids of the items list returns for the network
// domain named in the request's additional properties. Items whose id is
// empty are skipped.
func ListInDomain[T any](ctx context.Context, request *resource.ListRequest, list func(networkDomainID string) *paging.Pager[T], id func(T) string) (*resource.ListResult, error) {
	domainID, err := NetworkDomainID(request.AdditionalProperties)
	if err != nil {
		return &resource.ListResult{}, err
	}

	nativeIDs := make([]string, 0)
	for item, err := range list(domainID).Concat(ctx) {
		if err != nil {
			return &resource.ListResult{}, fmt.Errorf("failed to list resources in network domain %s: %w", domainID, err)
		}
		if nativeID := id(item); nativeID != "" {
			nativeIDs = append(nativeIDs, nativeID)
		}
	}
	return &resource.ListResult{
		NativeIDs: nativeIDs,
	}, nil
}
