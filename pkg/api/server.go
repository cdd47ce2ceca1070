// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package api

import (
	"context"
	"errors"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/paging"
)

// ServerAPI covers server deployment and power management.
type ServerAPI struct {
	b *base
}

// ListServers lists servers matching opts.
func (s *ServerAPI) ListServers(opts ListOptions) *paging.Pager[domain.Server] {
	return newPager[domain.Server](s.b, KindServer.Path(), "server", opts)
}

// GetServer fetches a server by id.
func (s *ServerAPI) GetServer(ctx context.Context, id string) (*domain.Server, error) {
	var srv domain.Server
	if err := s.b.get(ctx, KindServer.Path()+"/"+id, &srv); err != nil {
		return nil, err
	}
	return &srv, nil
}

// DeployServer deploys a server from an image. The id is returned in the
// serverId info entry.
func (s *ServerAPI) DeployServer(ctx context.Context, req domain.DeployServer) (*domain.Operation, error) {
	if req.Name == "" || req.ImageID == "" {
		return nil, errors.New("name and imageId are required")
	}
	if req.NetworkInfo.NetworkDomainID == "" || req.NetworkInfo.PrimaryNIC.VlanID == "" {
		return nil, errors.New("networkDomainId and primary NIC vlanId are required")
	}
	return s.b.post(ctx, "server/deployServer", req)
}

// StartServer powers a stopped server on.
func (s *ServerAPI) StartServer(ctx context.Context, id string) (*domain.Operation, error) {
	return s.b.post(ctx, "server/startServer", idRequest{ID: id})
}

// ShutdownServer asks the guest OS to shut down.
func (s *ServerAPI) ShutdownServer(ctx context.Context, id string) (*domain.Operation, error) {
	return s.b.post(ctx, "server/shutdownServer", idRequest{ID: id})
}

// PowerOffServer cuts power to a server.
func (s *ServerAPI) PowerOffServer(ctx context.Context, id string) (*domain.Operation, error) {
	return s.b.post(ctx, "server/powerOffServer", idRequest{ID: id})
}

// RebootServer asks the guest OS to restart.
func (s *ServerAPI) RebootServer(ctx context.Context, id string) (*domain.Operation, error) {
	return s.b.post(ctx, "server/rebootServer", idRequest{ID: id})
}

// DeleteServer deletes a stopped server. Deleting a missing server returns a
// nil operation and no error.
func (s *ServerAPI) DeleteServer(ctx context.Context, id string) (*domain.Operation, error) {
	return s.b.remove(ctx, "server/deleteServer", id)
}
