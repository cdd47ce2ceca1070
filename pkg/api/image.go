// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package api

import (
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/paging"
)

// ImageAPI lists the images servers can be deployed from.
type ImageAPI struct {
	b *base
}

// ListOSImages lists vendor-provided images.
func (i *ImageAPI) ListOSImages(opts ListOptions) *paging.Pager[domain.OSImage] {
	return newPager[domain.OSImage](i.b, "image/osImage", "osImage", opts)
}

// ListCustomerImages lists images imported or cloned by the organization.
func (i *ImageAPI) ListCustomerImages(opts ListOptions) *paging.Pager[domain.OSImage] {
	return newPager[domain.OSImage](i.b, "image/customerImage", "customerImage", opts)
}

// InfrastructureAPI lists datacenters.
type InfrastructureAPI struct {
	b *base
}

// ListDatacenters lists the datacenters the organization can deploy to.
func (i *InfrastructureAPI) ListDatacenters(opts ListOptions) *paging.Pager[domain.Datacenter] {
	return newPager[domain.Datacenter](i.b, "infrastructure/datacenter", "datacenter", opts)
}
