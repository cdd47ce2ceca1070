// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package registry

import (
	"slices"
	"sort"
	"sync"

	"github.com/platform-engineering-labs/formae/pkg/model"
	"github.com/platform-engineering-labs/formae/pkg/plugin"
	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/client"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/config"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/prov"
)

// Factory creates a provisioner bound to a client
type Factory func(*client.Client, *config.Config) prov.Provisioner

// Registration describes a resource type
type Registration struct {
	Descriptor plugin.ResourceDescriptor
	Schema     model.Schema
	// Operations lists the operations the provisioner supports
	Operations []resource.Operation
	Factory    Factory
}

// DefaultOperations is the operation set of a fully managed resource type
var DefaultOperations = []resource.Operation{
	resource.OperationCreate,
	resource.OperationRead,
	resource.OperationUpdate,
	resource.OperationDelete,
	resource.OperationList,
	resource.OperationCheckStatus,
}

var (
	mu            sync.RWMutex
	registrations = make(map[string]Registration)
)

// Register adds a resource type to the registry
// Called by resource packages in their init() functions
func Register(name string, reg Registration) {
	mu.Lock()
	defer mu.Unlock()

	if reg.Operations == nil {
		reg.Operations = DefaultOperations
	}
	registrations[name] = reg
}

// Get retrieves a provisioner for the given resource type
func Get(name string, c *client.Client, cfg *config.Config) prov.Provisioner {
	mu.RLock()
	reg, ok := registrations[name]
	mu.RUnlock()

	if !ok {
		return nil
	}
	return reg.Factory(c, cfg)
}

// HasProvisioner checks if a provisioner is registered for the given resource type
func HasProvisioner(name string) bool {
	mu.RLock()
	defer mu.RUnlock()

	_, ok := registrations[name]
	return ok
}

// Supports reports whether the resource type supports op
func Supports(name string, op resource.Operation) bool {
	mu.RLock()
	defer mu.RUnlock()

	reg, ok := registrations[name]
	return ok && slices.Contains(reg.Operations, op)
}

// GetSchema retrieves the schema for a given resource type
func GetSchema(name string) (model.Schema, bool) {
	mu.RLock()
	defer mu.RUnlock()

	reg, ok := registrations[name]
	return reg.Schema, ok
}

// ResourceTypes returns all registered resource types, sorted
func ResourceTypes() []string {
	mu.RLock()
	defer mu.RUnlock()

	types := make([]string, 0, len(registrations))
	for name := range registrations {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// GetAllDescriptors returns all registered resource descriptors, ordered by type
func GetAllDescriptors() []plugin.ResourceDescriptor {
	types := ResourceTypes()

	mu.RLock()
	defer mu.RUnlock()

	descriptors := make([]plugin.ResourceDescriptor, 0, len(types))
	for _, name := range types {
		descriptors = append(descriptors, registrations[name].Descriptor)
	}
	return descriptors
}
